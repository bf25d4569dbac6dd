package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	now := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	p := ObjectPath("My Clip.MP4", now)
	assert.True(t, strings.HasPrefix(p, "2026/03/"))
	assert.True(t, strings.HasSuffix(p, ".mp4"))

	p = ObjectPath("../../etc/passwd", now)
	assert.NotContains(t, p, "..")
}

func TestLocalStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://localhost:8081/uploads/")
	require.NoError(t, err)

	obj, err := s.Upload(context.Background(), BucketStatusMedia, "start.png", strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, int64(9), obj.Size)
	assert.True(t, strings.HasPrefix(obj.URL, "http://localhost:8081/uploads/status-media/"))

	data, err := os.ReadFile(filepath.Join(dir, BucketStatusMedia, filepath.FromSlash(obj.Path)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.Delete(context.Background(), BucketStatusMedia, obj.Path))
	assert.ErrorIs(t, s.Delete(context.Background(), BucketStatusMedia, obj.Path), ErrNotFound)
}

func TestUnknownBucketRejected(t *testing.T) {
	s := NewMemoryStorage("https://cdn")
	_, err := s.Upload(context.Background(), "secrets", "x.txt", strings.NewReader("x"), "text/plain")
	assert.ErrorIs(t, err, ErrUnknownBucket)
}
