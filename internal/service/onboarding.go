package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"character-studio/backend/internal/models"
	"character-studio/backend/internal/onboarding"
	"character-studio/backend/internal/repository"
	"character-studio/backend/pkg/cache"
	"character-studio/backend/pkg/logger"

	"gorm.io/datatypes"
)

const onboardingKey = "onboarding:v1"

// OnboardingStep is one step as served to clients
type OnboardingStep struct {
	ID     string          `json:"id"`
	Config json.RawMessage `json:"config"`
}

type OnboardingService struct {
	repo  repository.OnboardingRepository
	store cache.Store
	ttl   time.Duration
	log   *logger.Logger
}

func NewOnboardingService(repo repository.OnboardingRepository, store cache.Store, ttl time.Duration, log *logger.Logger) *OnboardingService {
	return &OnboardingService{repo: repo, store: store, ttl: ttl, log: log}
}

// Steps returns all seven steps in playback order. Steps never configured
// use the built-in defaults.
func (s *OnboardingService) Steps(ctx context.Context) ([]OnboardingStep, error) {
	var steps []OnboardingStep
	err := cache.GetJSON(ctx, s.store, onboardingKey, &steps)
	if err == nil {
		return steps, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.LogError(err, "Onboarding cache read failed")
	}

	configs, err := s.Configs(ctx)
	if err != nil {
		return nil, err
	}
	steps = make([]OnboardingStep, 0, len(onboarding.Steps))
	for _, id := range onboarding.Steps {
		raw, err := json.Marshal(configs[id])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", id, err)
		}
		steps = append(steps, OnboardingStep{ID: id, Config: raw})
	}

	if err := cache.SetJSON(ctx, s.store, onboardingKey, steps, s.ttl); err != nil {
		s.log.LogError(err, "Onboarding cache write failed")
	}
	return steps, nil
}

// Configs returns the typed config of every step. A stored config that no
// longer validates is logged and replaced by the default.
func (s *OnboardingService) Configs(ctx context.Context) (map[string]any, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list onboarding steps: %w", err)
	}

	configs := onboarding.Defaults()
	for _, row := range rows {
		cfg, err := onboarding.Decode(row.StepID, row.Config)
		if err != nil {
			s.log.LogError(err, "Stored onboarding config rejected", "step", row.StepID)
			continue
		}
		configs[row.StepID] = cfg
	}
	return configs, nil
}

// Put validates and stores one step's config
func (s *OnboardingService) Put(ctx context.Context, stepID string, raw []byte) (*models.OnboardingStep, error) {
	cfg, err := onboarding.Decode(stepID, raw)
	if err != nil {
		return nil, err
	}
	// store the normalised form
	normalised, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", stepID, err)
	}

	step := &models.OnboardingStep{StepID: stepID, Config: datatypes.JSON(normalised)}
	if err := s.repo.Upsert(ctx, step); err != nil {
		return nil, fmt.Errorf("save onboarding step %s: %w", stepID, err)
	}
	s.Invalidate(ctx)
	s.log.Info("Onboarding step updated", "step", stepID)
	return step, nil
}

func (s *OnboardingService) Invalidate(ctx context.Context) {
	if err := s.store.Delete(ctx, onboardingKey); err != nil {
		s.log.LogError(err, "Onboarding cache invalidation failed")
	}
}
