package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"character-studio/backend/pkg/cache"
)

// Sessions keeps one Editor per status so successive requests share a
// working copy. Idle editors expire and are reopened from the store.
type Sessions struct {
	deps    Deps
	editors *cache.Cache
	mu      sync.Mutex
}

func NewSessions(deps Deps, idle time.Duration) *Sessions {
	if idle <= 0 {
		idle = 2 * time.Hour
	}
	return &Sessions{
		deps: deps,
		editors: cache.NewCache(cache.Options{
			DefaultExpiration: idle,
			CleanupInterval:   idle / 4,
			MaxItems:          500,
			Sliding:           true,
		}),
	}
}

// Open returns the live editor of a status, loading it on first use
func (s *Sessions) Open(ctx context.Context, statusID string) (*Editor, error) {
	if ed, ok := s.lookup(statusID); ok {
		return ed, nil
	}

	status, err := s.deps.Store.Get(ctx, statusID)
	if err != nil {
		return nil, fmt.Errorf("open status %s: %w", statusID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// another request may have opened it while we were loading
	if ed, ok := s.lookup(statusID); ok {
		return ed, nil
	}
	ed := NewEditor(status, s.deps)
	s.editors.Set(statusID, ed)
	return ed, nil
}

func (s *Sessions) lookup(statusID string) (*Editor, bool) {
	v, ok := s.editors.Get(statusID)
	if !ok {
		return nil, false
	}
	ed, ok := v.(*Editor)
	return ed, ok
}

// Drop forgets the editor of a status, for example after it was changed or
// deleted outside the workflow
func (s *Sessions) Drop(statusID string) {
	s.editors.Delete(statusID)
}

// Len returns the number of open editors
func (s *Sessions) Len() int {
	return s.editors.Count()
}

// Close stops the expiry janitor
func (s *Sessions) Close() {
	s.editors.Close()
}
