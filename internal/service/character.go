package service

import (
	"context"
	"fmt"

	"character-studio/backend/internal/models"
	"character-studio/backend/internal/repository"
	"character-studio/backend/internal/storage"
	"character-studio/backend/internal/workflow"
	"character-studio/backend/pkg/logger"
)

type CharacterService struct {
	repo     repository.CharacterRepository
	statuses repository.StatusRepository
	sessions *workflow.Sessions
	files    storage.Uploader
	feed     *FeedService
	log      *logger.Logger
}

func NewCharacterService(repo repository.CharacterRepository, statuses repository.StatusRepository, sessions *workflow.Sessions, files storage.Uploader, feed *FeedService, log *logger.Logger) *CharacterService {
	return &CharacterService{repo: repo, statuses: statuses, sessions: sessions, files: files, feed: feed, log: log}
}

func (s *CharacterService) List(ctx context.Context, page int) ([]models.Character, error) {
	return s.repo.List(ctx, repository.ListOptions{Page: page})
}

func (s *CharacterService) Get(ctx context.Context, id string) (*models.Character, error) {
	return s.repo.Get(ctx, id)
}

func (s *CharacterService) Create(ctx context.Context, req models.CharacterRequest) (*models.Character, error) {
	character := &models.Character{}
	req.Apply(character)
	if err := s.repo.Create(ctx, character); err != nil {
		return nil, fmt.Errorf("create character: %w", err)
	}
	s.log.Info("Character created", "character_id", character.ID)
	s.feed.Invalidate(ctx)
	return character, nil
}

func (s *CharacterService) Update(ctx context.Context, id string, req models.CharacterRequest) (*models.Character, error) {
	character, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(character)
	if err := s.repo.Update(ctx, character); err != nil {
		return nil, fmt.Errorf("update character: %w", err)
	}
	s.feed.Invalidate(ctx)
	return character, nil
}

// Delete removes the character. Its statuses go with it through the
// schema's cascade, and their open editors are dropped.
func (s *CharacterService) Delete(ctx context.Context, id string) error {
	statuses, err := allPages(ctx, func(ctx context.Context, page int) ([]models.Status, error) {
		return s.statuses.List(ctx, repository.StatusFilter{CharacterID: id, Page: page})
	})
	if err != nil {
		return fmt.Errorf("list statuses: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	for _, st := range statuses {
		s.sessions.Drop(st.ID)
	}
	s.log.Info("Character deleted", "character_id", id, "statuses", len(statuses))
	s.feed.Invalidate(ctx)
	return nil
}

// UploadAvatar stores an image and points the character's avatar at it
func (s *CharacterService) UploadAvatar(ctx context.Context, id string, file File) (*models.Character, error) {
	if err := checkImage(file); err != nil {
		return nil, err
	}
	character, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	obj, err := s.files.Upload(ctx, storage.BucketAvatars, file.Filename, file.Body, file.ContentType)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}

	character.AvatarURL = obj.URL
	if err := s.repo.Update(ctx, character); err != nil {
		return nil, fmt.Errorf("update character: %w", err)
	}
	s.feed.Invalidate(ctx)
	return character, nil
}
