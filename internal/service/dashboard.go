package service

import (
	"context"

	"character-studio/backend/internal/models"
	"character-studio/backend/internal/repository"

	"golang.org/x/sync/errgroup"
)

type DashboardService struct {
	repos *repository.Repositories
}

func NewDashboardService(repos *repository.Repositories) *DashboardService {
	return &DashboardService{repos: repos}
}

// Counts runs every count query concurrently
func (s *DashboardService) Counts(ctx context.Context) (*models.Counts, error) {
	var counts models.Counts
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		counts.Characters, err = s.repos.Characters.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		counts.Statuses, err = s.repos.Statuses.Count(ctx, repository.StatusFilter{})
		return err
	})
	g.Go(func() (err error) {
		counts.CompletedStatuses, err = s.repos.Statuses.Count(ctx, repository.StatusFilter{GenerationStatus: models.GenerationCompleted})
		return err
	})
	g.Go(func() (err error) {
		counts.Prompts, err = s.repos.Prompts.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		counts.Assets, err = s.repos.Assets.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		counts.Templates, err = s.repos.LookItems.Count(ctx, models.LookTemplate)
		return err
	})
	g.Go(func() (err error) {
		counts.Transformations, err = s.repos.LookItems.Count(ctx, models.LookTransformation)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &counts, nil
}
