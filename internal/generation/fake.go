package generation

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a scriptable Generator for tests. Each call records its request,
// then blocks on Gate when set, then returns the configured result or error.
type Fake struct {
	mu sync.Mutex

	Text     *TextResult
	TextErr  error
	Image    *ImageResult
	ImageErr error
	Video    func(req VideoRequest) (*VideoResult, error)

	// Gate, when non-nil, must receive a value before a call returns
	Gate chan struct{}

	TextCalls  []TextRequest
	ImageCalls []ImageRequest
	VideoCalls []VideoRequest
}

func (f *Fake) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.Gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fake) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	f.mu.Lock()
	f.TextCalls = append(f.TextCalls, req)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TextErr != nil {
		return nil, f.TextErr
	}
	res := *f.Text
	res.VideoScenes = append([]string(nil), f.Text.VideoScenes...)
	res.Suggestions = append([]string(nil), f.Text.Suggestions...)
	return &res, nil
}

func (f *Fake) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	f.mu.Lock()
	f.ImageCalls = append(f.ImageCalls, req)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ImageErr != nil {
		return nil, f.ImageErr
	}
	res := *f.Image
	return &res, nil
}

func (f *Fake) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoResult, error) {
	f.mu.Lock()
	f.VideoCalls = append(f.VideoCalls, req)
	n := len(f.VideoCalls)
	video := f.Video
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if video != nil {
		return video(req)
	}
	return &VideoResult{VideoURL: fmt.Sprintf("https://cdn.test/video-%d.mp4", n), Duration: req.Duration, FileSize: 1024}, nil
}

// Calls returns the number of text, image and video calls made so far
func (f *Fake) Calls() (text, image, video int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.TextCalls), len(f.ImageCalls), len(f.VideoCalls)
}
