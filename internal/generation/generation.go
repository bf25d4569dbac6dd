package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"character-studio/backend/internal/models"
)

// TextRequest asks for overlays, chat suggestions and video scenes
type TextRequest struct {
	Description          string      `json:"description"`
	Mood                 models.Mood `json:"mood"`
	SceneCount           int         `json:"scene_count"`
	CharacterName        string      `json:"character_name"`
	CharacterDescription string      `json:"character_description"`
}

type TextResult struct {
	Overlays    models.Overlays `json:"overlays"`
	Suggestions []string        `json:"suggestions"`
	VideoScenes []string        `json:"video_scenes"`
}

// ImageRequest asks for a starting frame based on the character's avatar
type ImageRequest struct {
	ReferenceImageURL string      `json:"reference_image_url"`
	Scene             string      `json:"scene"`
	Mood              models.Mood `json:"mood"`
}

type ImageResult struct {
	ImageURL string `json:"image_url"`
}

// VideoRequest asks for one scene video animated from the starting image
type VideoRequest struct {
	ImageURL string      `json:"image_url"`
	Scene    string      `json:"scene"`
	Mood     models.Mood `json:"mood"`
	Duration int         `json:"duration"`
}

type VideoResult struct {
	VideoURL string `json:"video_url"`
	Duration int    `json:"duration"`
	FileSize int64  `json:"file_size"`
}

type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (*TextResult, error)
}

// Generator is the generation gateway: three stateless calls whose binary
// output is stored remotely and returned as a public URL
type Generator interface {
	TextGenerator
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
	GenerateVideo(ctx context.Context, req VideoRequest) (*VideoResult, error)
}

var (
	// ErrUnavailable means calls are short-circuited after repeated failures
	ErrUnavailable = errors.New("generation service temporarily unavailable")
	// ErrInvalidResponse means the gateway answered 2xx with an unusable body
	ErrInvalidResponse = errors.New("invalid generation response")
)

// Error is a non-2xx answer from the gateway
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

// Temporary reports whether the failure is on the remote side
func (e *Error) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// WithText overrides the text backend of g
func WithText(g Generator, text TextGenerator) Generator {
	return &split{TextGenerator: text, media: g}
}

type split struct {
	TextGenerator
	media Generator
}

func (s *split) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	return s.media.GenerateImage(ctx, req)
}

func (s *split) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoResult, error) {
	return s.media.GenerateVideo(ctx, req)
}

// validateText checks a text result and trims scenes to the requested count
func validateText(res *TextResult, sceneCount int) (*TextResult, error) {
	if res == nil || len(res.VideoScenes) == 0 {
		return nil, fmt.Errorf("%w: no video scenes", ErrInvalidResponse)
	}
	if sceneCount > 0 && len(res.VideoScenes) > sceneCount {
		res.VideoScenes = res.VideoScenes[:sceneCount]
	}
	if res.Suggestions == nil {
		res.Suggestions = []string{}
	}
	return res, nil
}
