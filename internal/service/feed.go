package service

import (
	"context"
	"errors"
	"time"

	"character-studio/backend/internal/models"
	"character-studio/backend/internal/repository"
	"character-studio/backend/internal/workflow"
	"character-studio/backend/pkg/cache"
	"character-studio/backend/pkg/logger"
)

const feedKey = "feed:v1"

// FeedService builds the consumer feed: every character that has a default
// status with a starting image, most recently updated first
type FeedService struct {
	characters repository.CharacterRepository
	statuses   repository.StatusRepository
	store      cache.Store
	ttl        time.Duration
	log        *logger.Logger
}

func NewFeedService(characters repository.CharacterRepository, statuses repository.StatusRepository, store cache.Store, ttl time.Duration, log *logger.Logger) *FeedService {
	return &FeedService{characters: characters, statuses: statuses, store: store, ttl: ttl, log: log}
}

func (s *FeedService) Feed(ctx context.Context) ([]models.FeedItem, error) {
	var items []models.FeedItem
	err := cache.GetJSON(ctx, s.store, feedKey, &items)
	if err == nil {
		return items, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.LogError(err, "Feed cache read failed")
	}

	items, err = s.build(ctx)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.store, feedKey, items, s.ttl); err != nil {
		s.log.LogError(err, "Feed cache write failed")
	}
	return items, nil
}

func (s *FeedService) build(ctx context.Context) ([]models.FeedItem, error) {
	defaults, err := s.statuses.Defaults(ctx)
	if err != nil {
		return nil, err
	}
	characters, err := allPages(ctx, func(ctx context.Context, page int) ([]models.Character, error) {
		return s.characters.List(ctx, repository.ListOptions{Page: page})
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Character, len(characters))
	for _, c := range characters {
		byID[c.ID] = c
	}

	items := []models.FeedItem{}
	seen := map[string]bool{}
	for i := range defaults {
		st := defaults[i]
		c, ok := byID[st.CharacterID]
		// a racing default switch can leave two defaults; the newest wins
		if !ok || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		items = append(items, models.FeedItem{Character: c, Status: &st})
	}
	return items, nil
}

// Invalidate drops the cached feed
func (s *FeedService) Invalidate(ctx context.Context) {
	if err := s.store.Delete(ctx, feedKey); err != nil {
		s.log.LogError(err, "Feed cache invalidation failed")
	}
}

// StatusStore wraps the status repository for the workflow editors. Every
// stored snapshot drops the cached feed, so a new starting image shows up
// without waiting for the TTL.
func (s *FeedService) StatusStore() workflow.StatusStore {
	return &feedStore{StatusRepository: s.statuses, feed: s}
}

type feedStore struct {
	repository.StatusRepository
	feed *FeedService
}

func (f *feedStore) Save(ctx context.Context, status *models.Status) error {
	if err := f.StatusRepository.Save(ctx, status); err != nil {
		return err
	}
	f.feed.Invalidate(ctx)
	return nil
}
