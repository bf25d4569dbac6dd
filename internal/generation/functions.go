package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"character-studio/backend/pkg/logger"
	"character-studio/backend/pkg/middleware"
)

// FunctionsClient calls the serverless generate-text, generate-image and
// generate-video functions
type FunctionsClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	log     *logger.Logger
}

func NewFunctionsClient(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *FunctionsClient {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &FunctionsClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     log,
	}
}

func (c *FunctionsClient) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	var res TextResult
	if err := c.post(ctx, "generate-text", req, &res); err != nil {
		return nil, err
	}
	return validateText(&res, req.SceneCount)
}

func (c *FunctionsClient) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	var res ImageResult
	if err := c.post(ctx, "generate-image", req, &res); err != nil {
		return nil, err
	}
	if res.ImageURL == "" {
		return nil, fmt.Errorf("%w: missing image_url", ErrInvalidResponse)
	}
	return &res, nil
}

func (c *FunctionsClient) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoResult, error) {
	var res VideoResult
	if err := c.post(ctx, "generate-video", req, &res); err != nil {
		return nil, err
	}
	if res.VideoURL == "" {
		return nil, fmt.Errorf("%w: missing video_url", ErrInvalidResponse)
	}
	if res.Duration == 0 {
		res.Duration = req.Duration
	}
	return &res, nil
}

func (c *FunctionsClient) post(ctx context.Context, fn string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", fn, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+fn, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", fn, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if id := middleware.GetRequestID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	c.log.Debug("Calling generation function", "function", fn)
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", fn, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", fn, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: fn, StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, fn, err)
	}
	return nil
}

// errorMessage pulls a readable message out of an error body
func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
