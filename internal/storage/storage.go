package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logical buckets. Backends map them to a directory or an object prefix.
const (
	BucketAvatars     = "avatars"
	BucketAssets      = "assets"
	BucketStatusMedia = "status-media"
	BucketLookImages  = "look-images"
)

var (
	// ErrUnknownBucket is returned for a bucket name outside the known set
	ErrUnknownBucket = errors.New("unknown storage bucket")
	// ErrNotFound is returned when deleting a missing object
	ErrNotFound = errors.New("object not found")
)

var knownBuckets = map[string]bool{
	BucketAvatars:     true,
	BucketAssets:      true,
	BucketStatusMedia: true,
	BucketLookImages:  true,
}

// Object describes a stored file
type Object struct {
	Bucket      string `json:"bucket"`
	Path        string `json:"path"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Uploader stores binaries and hands back a public URL
type Uploader interface {
	Upload(ctx context.Context, bucket, filename string, r io.Reader, contentType string) (*Object, error)
	Delete(ctx context.Context, bucket, objectPath string) error
}

var unsafeExt = regexp.MustCompile(`[^a-z0-9]`)

// ObjectPath builds a collision-free object path, keeping the original extension
func ObjectPath(filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	ext = unsafeExt.ReplaceAllString(strings.TrimPrefix(ext, "."), "")
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	return path.Join(now.UTC().Format("2006/01"), name)
}

// IsImage reports whether an upload looks like an image, by content type or,
// for generic types, by extension
func IsImage(filename, contentType string) bool {
	if strings.HasPrefix(contentType, "image/") {
		return true
	}
	switch strings.ToLower(path.Ext(filename)) {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif":
		return true
	}
	return false
}

func checkBucket(bucket string) error {
	if !knownBuckets[bucket] {
		return fmt.Errorf("%w: %q", ErrUnknownBucket, bucket)
	}
	return nil
}

func publicURL(base, bucket, objectPath string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + objectPath
}
