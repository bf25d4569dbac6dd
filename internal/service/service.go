// Package service implements the admin and consumer operations on top of the
// repositories, object storage and the status workflow.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"character-studio/backend/internal/repository"
	"character-studio/backend/internal/storage"
	"character-studio/backend/pkg/logger"
)

// ErrInvalid wraps request validation failures
var ErrInvalid = errors.New("invalid request")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// File is an uploaded binary
type File struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Services bundles every service the API needs
type Services struct {
	Characters      *CharacterService
	Statuses        *StatusService
	Prompts         *PromptService
	Assets          *AssetService
	Templates       *LookService
	Transformations *LookService
	Dashboard       *DashboardService
	Feed            *FeedService
	Onboarding      *OnboardingService
}

// allPages walks every page of a list query
func allPages[T any](ctx context.Context, list func(ctx context.Context, page int) ([]T, error)) ([]T, error) {
	var out []T
	for page := 1; ; page++ {
		items, err := list(ctx, page)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) < repository.PageSize {
			return out, nil
		}
	}
}

// removeObject deletes a stored file by its public URL. Failures are logged
// only; the row that referenced it is already gone.
func removeObject(ctx context.Context, files storage.Uploader, log *logger.Logger, bucket, objectPath string) {
	if objectPath == "" {
		return
	}
	if err := files.Delete(ctx, bucket, objectPath); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.LogError(err, "Failed to delete stored object", "bucket", bucket, "path", objectPath)
	}
}

// checkImage rejects uploads that are not images
func checkImage(f File) error {
	if storage.IsImage(f.Filename, f.ContentType) {
		return nil
	}
	return invalid("%s is not an image", f.Filename)
}
