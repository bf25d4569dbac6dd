package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStorage stores every logical bucket under a prefix of one GCS bucket
type GCSStorage struct {
	client     *storage.Client
	bucket     string
	publicBase string
}

// NewGCSStorage connects with application default credentials, or with
// credentialsFile when set. publicBase defaults to the storage.googleapis.com URL.
func NewGCSStorage(ctx context.Context, bucket, credentialsFile, publicBase string) (*GCSStorage, error) {
	if bucket == "" {
		return nil, errors.New("gcs storage requires a bucket name")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	if publicBase == "" {
		publicBase = "https://storage.googleapis.com/" + bucket
	}

	return &GCSStorage{
		client:     client,
		bucket:     bucket,
		publicBase: publicBase,
	}, nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) Upload(ctx context.Context, bucket, filename string, r io.Reader, contentType string) (*Object, error) {
	if err := checkBucket(bucket); err != nil {
		return nil, err
	}

	objectPath := ObjectPath(filename, time.Now())
	w := s.client.Bucket(s.bucket).Object(bucket + "/" + objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"

	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to upload object: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize object: %w", err)
	}

	return &Object{
		Bucket:      bucket,
		Path:        objectPath,
		URL:         publicURL(s.publicBase, bucket, objectPath),
		ContentType: contentType,
		Size:        n,
	}, nil
}

func (s *GCSStorage) Delete(ctx context.Context, bucket, objectPath string) error {
	if err := checkBucket(bucket); err != nil {
		return err
	}
	err := s.client.Bucket(s.bucket).Object(bucket + "/" + objectPath).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	return err
}
