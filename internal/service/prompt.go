package service

import (
	"context"
	"fmt"

	"character-studio/backend/internal/models"
	"character-studio/backend/internal/repository"
)

type PromptService struct {
	repo repository.PromptRepository
}

func NewPromptService(repo repository.PromptRepository) *PromptService {
	return &PromptService{repo: repo}
}

func (s *PromptService) List(ctx context.Context, opts repository.ListOptions) ([]models.Prompt, error) {
	return s.repo.List(ctx, opts)
}

func (s *PromptService) Get(ctx context.Context, id string) (*models.Prompt, error) {
	return s.repo.Get(ctx, id)
}

func (s *PromptService) Create(ctx context.Context, req models.PromptRequest) (*models.Prompt, error) {
	prompt := &models.Prompt{Name: req.Name, Category: req.Category, Content: req.Content}
	if err := s.repo.Create(ctx, prompt); err != nil {
		return nil, fmt.Errorf("create prompt: %w", err)
	}
	return prompt, nil
}

func (s *PromptService) Update(ctx context.Context, id string, req models.PromptRequest) (*models.Prompt, error) {
	prompt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prompt.Name = req.Name
	prompt.Category = req.Category
	prompt.Content = req.Content
	if err := s.repo.Update(ctx, prompt); err != nil {
		return nil, fmt.Errorf("update prompt: %w", err)
	}
	return prompt, nil
}

func (s *PromptService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
