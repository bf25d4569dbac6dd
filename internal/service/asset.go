package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"character-studio/backend/internal/models"
	"character-studio/backend/internal/repository"
	"character-studio/backend/internal/storage"
	"character-studio/backend/pkg/logger"
)

type AssetService struct {
	repo  repository.AssetRepository
	files storage.Uploader
	log   *logger.Logger
}

func NewAssetService(repo repository.AssetRepository, files storage.Uploader, log *logger.Logger) *AssetService {
	return &AssetService{repo: repo, files: files, log: log}
}

func (s *AssetService) List(ctx context.Context, opts repository.ListOptions) ([]models.Asset, error) {
	return s.repo.List(ctx, opts)
}

func (s *AssetService) Get(ctx context.Context, id string) (*models.Asset, error) {
	return s.repo.Get(ctx, id)
}

// Upload stores the file and records it. name defaults to the file name.
func (s *AssetService) Upload(ctx context.Context, name, category string, file File) (*models.Asset, error) {
	if strings.TrimSpace(name) == "" {
		name = file.Filename
	}
	if name == "" {
		return nil, invalid("name is required")
	}

	counter := &countingReader{r: file.Body}
	obj, err := s.files.Upload(ctx, storage.BucketAssets, file.Filename, counter, file.ContentType)
	if err != nil {
		return nil, fmt.Errorf("upload asset: %w", err)
	}

	asset := &models.Asset{
		Name:        name,
		Category:    category,
		URL:         obj.URL,
		StoragePath: obj.Path,
		ContentType: file.ContentType,
		SizeBytes:   counter.n,
	}
	if err := s.repo.Create(ctx, asset); err != nil {
		removeObject(ctx, s.files, s.log, storage.BucketAssets, obj.Path)
		return nil, fmt.Errorf("create asset: %w", err)
	}
	return asset, nil
}

// Delete removes the row, then the stored file
func (s *AssetService) Delete(ctx context.Context, id string) error {
	asset, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	removeObject(ctx, s.files, s.log, storage.BucketAssets, asset.StoragePath)
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
