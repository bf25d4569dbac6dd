package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const textSystemPrompt = `You write short social-media status content for an AI character.
Answer with a JSON object only, shaped as:
{"overlays": {"now": string, "health": string}, "suggestions": [string], "video_scenes": [string]}
"now" says what the character is doing right now in under 8 words.
"health" is a playful one-line mood or energy reading.
"suggestions" are 3 short messages a fan could send in reply.
"video_scenes" are exactly the requested number of vivid, filmable scene descriptions, one shot each, all featuring the character.`

// OpenAIText generates status text with an OpenAI-compatible chat model in JSON mode
type OpenAIText struct {
	client *openai.Client
	model  string
}

// NewOpenAIText builds the text backend. baseURL may point at any
// OpenAI-compatible endpoint; empty means api.openai.com.
func NewOpenAIText(apiKey, baseURL, model string) (*OpenAIText, error) {
	if apiKey == "" {
		return nil, errors.New("openai text backend requires an API key")
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIText{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

func (o *OpenAIText) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: textSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.9,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &Error{Op: "generate-text", StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("generate-text request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}

	var res TextResult
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return validateText(&res, req.SceneCount)
}

func userPrompt(req TextRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Character: %s\n", req.CharacterName)
	if req.CharacterDescription != "" {
		fmt.Fprintf(&b, "About the character: %s\n", req.CharacterDescription)
	}
	fmt.Fprintf(&b, "Mood: %s\n", req.Mood)
	fmt.Fprintf(&b, "Status idea: %s\n", req.Description)
	fmt.Fprintf(&b, "Number of video scenes: %d\n", req.SceneCount)
	return b.String()
}
