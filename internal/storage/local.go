package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// LocalStorage writes objects under a directory served by the HTTP server
type LocalStorage struct {
	dir        string
	publicBase string
}

func NewLocalStorage(dir, publicBase string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{dir: dir, publicBase: publicBase}, nil
}

// Dir is the root directory, mounted at the public base URL
func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) Upload(_ context.Context, bucket, filename string, r io.Reader, contentType string) (*Object, error) {
	if err := checkBucket(bucket); err != nil {
		return nil, err
	}

	objectPath := ObjectPath(filename, time.Now())
	full := filepath.Join(s.dir, bucket, filepath.FromSlash(objectPath))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("failed to create local file: %w", err)
	}
	defer func() { _ = f.Close() }()

	n, err := io.Copy(f, r)
	if err != nil {
		_ = os.Remove(full)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &Object{
		Bucket:      bucket,
		Path:        objectPath,
		URL:         publicURL(s.publicBase, bucket, objectPath),
		ContentType: contentType,
		Size:        n,
	}, nil
}

func (s *LocalStorage) Delete(_ context.Context, bucket, objectPath string) error {
	if err := checkBucket(bucket); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, bucket, filepath.FromSlash(objectPath)))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
