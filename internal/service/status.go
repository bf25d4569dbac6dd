package service

import (
	"context"
	"fmt"

	"character-studio/backend/internal/models"
	"character-studio/backend/internal/repository"
	"character-studio/backend/internal/workflow"
	"character-studio/backend/pkg/logger"
)

type StatusService struct {
	repo       repository.StatusRepository
	characters repository.CharacterRepository
	sessions   *workflow.Sessions
	feed       *FeedService
	log        *logger.Logger
}

func NewStatusService(repo repository.StatusRepository, characters repository.CharacterRepository, sessions *workflow.Sessions, feed *FeedService, log *logger.Logger) *StatusService {
	return &StatusService{repo: repo, characters: characters, sessions: sessions, feed: feed, log: log}
}

func (s *StatusService) List(ctx context.Context, filter repository.StatusFilter) ([]models.Status, error) {
	if filter.GenerationStatus != "" {
		switch filter.GenerationStatus {
		case models.GenerationDraft, models.GenerationGenerating, models.GenerationCompleted, models.GenerationFailed:
		default:
			return nil, invalid("unknown generation status %q", filter.GenerationStatus)
		}
	}
	return s.repo.List(ctx, filter)
}

func (s *StatusService) Get(ctx context.Context, id string) (*models.Status, error) {
	return s.repo.Get(ctx, id)
}

// Create starts a new draft at step 0
func (s *StatusService) Create(ctx context.Context, req models.StatusRequest) (*models.Status, error) {
	if !req.Mood.Valid() {
		return nil, invalid("unknown mood %q", req.Mood)
	}
	if _, err := s.characters.Get(ctx, req.CharacterID); err != nil {
		return nil, fmt.Errorf("character %s: %w", req.CharacterID, err)
	}

	status := &models.Status{
		CharacterID:      req.CharacterID,
		Title:            req.Title,
		Mood:             req.Mood,
		Description:      req.Description,
		GenerationStep:   models.StepBasicInfo,
		GenerationStatus: models.GenerationDraft,
	}
	if err := s.repo.Create(ctx, status); err != nil {
		return nil, fmt.Errorf("create status: %w", err)
	}
	s.log.Info("Status created", "status_id", status.ID, "character_id", status.CharacterID)
	return status, nil
}

// Update replaces the basic info of a stored status outside the editor. Any
// open editor of the status is dropped so the next one starts from this row.
func (s *StatusService) Update(ctx context.Context, id string, req models.StatusRequest) (*models.Status, error) {
	if !req.Mood.Valid() {
		return nil, invalid("unknown mood %q", req.Mood)
	}
	status, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.CharacterID != status.CharacterID {
		if _, err := s.characters.Get(ctx, req.CharacterID); err != nil {
			return nil, fmt.Errorf("character %s: %w", req.CharacterID, err)
		}
	}

	status.CharacterID = req.CharacterID
	status.Title = req.Title
	status.Mood = req.Mood
	status.Description = req.Description
	status.GenerationStatus = models.GenerationStatusForStep(status.GenerationStep)
	if err := s.repo.Save(ctx, status); err != nil {
		return nil, fmt.Errorf("save status: %w", err)
	}
	s.sessions.Drop(id)
	s.feed.Invalidate(ctx)
	return status, nil
}

func (s *StatusService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.sessions.Drop(id)
	s.feed.Invalidate(ctx)
	return nil
}

// SetDefault makes id the default status of its character: first every
// status of the character is cleared, then the target is marked. The two
// writes are not atomic; a failure of the second leaves the character
// without a default.
func (s *StatusService) SetDefault(ctx context.Context, id string) (*models.Status, error) {
	status, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ClearDefault(ctx, status.CharacterID); err != nil {
		return nil, fmt.Errorf("clear default: %w", err)
	}
	defer s.feed.Invalidate(ctx)
	if err := s.repo.MarkDefault(ctx, id); err != nil {
		s.log.LogError(err, "Default cleared but not set", "character_id", status.CharacterID, "status_id", id)
		return nil, fmt.Errorf("mark default: %w", err)
	}

	status.IsDefault = true
	s.log.Info("Default status set", "character_id", status.CharacterID, "status_id", id)
	return status, nil
}

// Editor returns the shared working copy of a status
func (s *StatusService) Editor(ctx context.Context, id string) (*workflow.Editor, error) {
	return s.sessions.Open(ctx, id)
}

// Backfill rewrites generation_status from generation_step on every row where
// the two disagree and fills empty list columns. It returns the rows fixed.
func (s *StatusService) Backfill(ctx context.Context) (int, error) {
	statuses, err := allPages(ctx, func(ctx context.Context, page int) ([]models.Status, error) {
		return s.repo.List(ctx, repository.StatusFilter{Page: page})
	})
	if err != nil {
		return 0, fmt.Errorf("list statuses: %w", err)
	}

	fixed := 0
	for i := range statuses {
		st := &statuses[i]
		if !needsBackfill(st) {
			continue
		}
		st.GenerationStep = min(max(st.GenerationStep, models.StepBasicInfo), models.StepVideosReady)
		st.GenerationStatus = models.GenerationStatusForStep(st.GenerationStep)
		st.Normalize()
		if err := s.repo.Save(ctx, st); err != nil {
			return fixed, fmt.Errorf("save status %s: %w", st.ID, err)
		}
		s.sessions.Drop(st.ID)
		fixed++
	}
	if fixed > 0 {
		s.feed.Invalidate(ctx)
	}
	return fixed, nil
}

func needsBackfill(st *models.Status) bool {
	if st.GenerationStep < models.StepBasicInfo || st.GenerationStep > models.StepVideosReady {
		return true
	}
	switch st.GenerationStatus {
	case models.GenerationGenerating, models.GenerationFailed:
		// owned by external pipelines
		return false
	}
	return st.GenerationStatus != models.GenerationStatusForStep(st.GenerationStep) ||
		st.SuggestionsList == nil || st.VideoScenes == nil || st.VideosPlaylist == nil
}
