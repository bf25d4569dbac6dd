package storage

import (
	"context"
	"io"
	"sync"
	"time"
)

// MemoryStorage keeps objects in memory. Used by tests.
type MemoryStorage struct {
	mu      sync.Mutex
	base    string
	objects map[string][]byte
	// Err, when set, fails every upload
	Err error
}

func NewMemoryStorage(publicBase string) *MemoryStorage {
	return &MemoryStorage{base: publicBase, objects: map[string][]byte{}}
}

func (s *MemoryStorage) Upload(_ context.Context, bucket, filename string, r io.Reader, contentType string) (*Object, error) {
	if err := checkBucket(bucket); err != nil {
		return nil, err
	}
	s.mu.Lock()
	failure := s.Err
	s.mu.Unlock()
	if failure != nil {
		return nil, failure
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	objectPath := ObjectPath(filename, time.Now())

	s.mu.Lock()
	s.objects[bucket+"/"+objectPath] = data
	s.mu.Unlock()

	return &Object{
		Bucket:      bucket,
		Path:        objectPath,
		URL:         publicURL(s.base, bucket, objectPath),
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

func (s *MemoryStorage) Delete(_ context.Context, bucket, objectPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bucket + "/" + objectPath
	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

// Get returns a stored object's bytes
func (s *MemoryStorage) Get(bucket, objectPath string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[bucket+"/"+objectPath]
	return b, ok
}

// Len counts stored objects
func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
