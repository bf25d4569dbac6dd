package repository

import (
	"context"
	"errors"

	"character-studio/backend/internal/models"
)

// PageSize is the fixed page size of every list query
const PageSize = 100

var (
	// ErrNotFound is returned when no row matches
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken
	ErrDuplicate = errors.New("duplicate key")
)

// ListOptions selects a page and an optional exact-match category
type ListOptions struct {
	Category string
	Page     int
}

// Offset returns the row offset of the selected page (pages start at 1)
func (o ListOptions) Offset() int {
	if o.Page <= 1 {
		return 0
	}
	return (o.Page - 1) * PageSize
}

// StatusFilter narrows status queries
type StatusFilter struct {
	CharacterID      string
	GenerationStatus models.GenerationStatus
	Page             int
}

type CharacterRepository interface {
	List(ctx context.Context, opts ListOptions) ([]models.Character, error)
	Get(ctx context.Context, id string) (*models.Character, error)
	Create(ctx context.Context, character *models.Character) error
	Update(ctx context.Context, character *models.Character) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type StatusRepository interface {
	List(ctx context.Context, filter StatusFilter) ([]models.Status, error)
	Get(ctx context.Context, id string) (*models.Status, error)
	Create(ctx context.Context, status *models.Status) error
	// Save writes the full snapshot over the stored row, except is_default
	Save(ctx context.Context, status *models.Status) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, filter StatusFilter) (int64, error)
	// ClearDefault unsets is_default on every status of the character
	ClearDefault(ctx context.Context, characterID string) error
	// MarkDefault sets is_default on a single status
	MarkDefault(ctx context.Context, id string) error
	// Defaults returns every default status that has a starting image
	Defaults(ctx context.Context) ([]models.Status, error)
}

type PromptRepository interface {
	List(ctx context.Context, opts ListOptions) ([]models.Prompt, error)
	Get(ctx context.Context, id string) (*models.Prompt, error)
	Create(ctx context.Context, prompt *models.Prompt) error
	Update(ctx context.Context, prompt *models.Prompt) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type AssetRepository interface {
	List(ctx context.Context, opts ListOptions) ([]models.Asset, error)
	Get(ctx context.Context, id string) (*models.Asset, error)
	Create(ctx context.Context, asset *models.Asset) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type LookItemRepository interface {
	// List returns live items of a category ordered by display order
	List(ctx context.Context, category models.LookCategory, page int) ([]models.LookItem, error)
	Get(ctx context.Context, category models.LookCategory, id string) (*models.LookItem, error)
	Create(ctx context.Context, item *models.LookItem) error
	Update(ctx context.Context, item *models.LookItem) error
	// Delete soft-deletes the item
	Delete(ctx context.Context, category models.LookCategory, id string) error
	MaxDisplayOrder(ctx context.Context, category models.LookCategory) (int, error)
	// SetDisplayOrders writes each id's order; ids not in the category are ignored
	SetDisplayOrders(ctx context.Context, category models.LookCategory, orders map[string]int) error
	Count(ctx context.Context, category models.LookCategory) (int64, error)
}

type OnboardingRepository interface {
	List(ctx context.Context) ([]models.OnboardingStep, error)
	Get(ctx context.Context, stepID string) (*models.OnboardingStep, error)
	Upsert(ctx context.Context, step *models.OnboardingStep) error
}

// Repositories bundles one repository per entity
type Repositories struct {
	Characters CharacterRepository
	Statuses   StatusRepository
	Prompts    PromptRepository
	Assets     AssetRepository
	LookItems  LookItemRepository
	Onboarding OnboardingRepository
}
