package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"character-studio/backend/internal/models"
	"character-studio/backend/internal/repository"
	"character-studio/backend/internal/storage"

	"gorm.io/datatypes"
)

// orderStep is the gap between display orders, leaving room to insert
const orderStep = 10

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-_]*$`)

// LookService manages one category of look items
type LookService struct {
	category models.LookCategory
	repo     repository.LookItemRepository
	files    storage.Uploader
}

func NewLookService(category models.LookCategory, repo repository.LookItemRepository, files storage.Uploader) *LookService {
	return &LookService{category: category, repo: repo, files: files}
}

func (s *LookService) Category() models.LookCategory {
	return s.category
}

func (s *LookService) List(ctx context.Context, page int) ([]models.LookItem, error) {
	return s.repo.List(ctx, s.category, page)
}

func (s *LookService) Get(ctx context.Context, id string) (*models.LookItem, error) {
	return s.repo.Get(ctx, s.category, id)
}

// Create adds an item after the current last one
func (s *LookService) Create(ctx context.Context, req models.LookItemRequest) (*models.LookItem, error) {
	id := strings.TrimSpace(req.ID)
	if len(id) > 100 || !slugPattern.MatchString(id) {
		return nil, invalid("id %q must be lowercase letters, digits, '-' or '_' and start with a letter or digit", req.ID)
	}
	if err := s.checkImagePath(req.ImagePath); err != nil {
		return nil, err
	}

	top, err := s.repo.MaxDisplayOrder(ctx, s.category)
	if err != nil {
		return nil, fmt.Errorf("max display order: %w", err)
	}

	item := &models.LookItem{
		ID:           id,
		Category:     s.category,
		Name:         req.Name,
		Prompt:       datatypes.NewJSONType(models.LookPrompt{Prompt: req.Prompt, NegativePrompt: req.NegativePrompt}),
		DisplayOrder: top + orderStep,
		Enabled:      req.Enabled == nil || *req.Enabled,
		ImagePath:    req.ImagePath,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create %s %s: %w", s.category, id, err)
	}
	return item, nil
}

// Update edits everything but the id, category and display order
func (s *LookService) Update(ctx context.Context, id string, req models.LookItemRequest) (*models.LookItem, error) {
	if req.ID != "" && req.ID != id {
		return nil, invalid("id cannot be changed")
	}
	if err := s.checkImagePath(req.ImagePath); err != nil {
		return nil, err
	}
	item, err := s.repo.Get(ctx, s.category, id)
	if err != nil {
		return nil, err
	}

	item.Name = req.Name
	item.Prompt = datatypes.NewJSONType(models.LookPrompt{Prompt: req.Prompt, NegativePrompt: req.NegativePrompt})
	if req.Enabled != nil {
		item.Enabled = *req.Enabled
	}
	if req.ImagePath != nil {
		item.ImagePath = req.ImagePath
		if *req.ImagePath == "" {
			item.ImagePath = nil
		}
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", s.category, id, err)
	}
	return item, nil
}

// Delete soft-deletes the item. Its slug stays reserved.
func (s *LookService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, s.category, id)
}

// Reorder assigns display orders 10, 20, 30... in the order given
func (s *LookService) Reorder(ctx context.Context, ids []string) ([]models.LookItem, error) {
	if len(ids) == 0 {
		return nil, invalid("ids are required")
	}
	orders := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := orders[id]; dup {
			return nil, invalid("id %q listed twice", id)
		}
		orders[id] = (i + 1) * orderStep
	}
	if err := s.repo.SetDisplayOrders(ctx, s.category, orders); err != nil {
		return nil, fmt.Errorf("reorder %s: %w", s.category, err)
	}
	return allPages(ctx, func(ctx context.Context, page int) ([]models.LookItem, error) {
		return s.repo.List(ctx, s.category, page)
	})
}

// UploadImage stores a preview image for a template
func (s *LookService) UploadImage(ctx context.Context, id string, file File) (*models.LookItem, error) {
	if s.category != models.LookTemplate {
		return nil, invalid("only templates have images")
	}
	if err := checkImage(file); err != nil {
		return nil, err
	}
	item, err := s.repo.Get(ctx, s.category, id)
	if err != nil {
		return nil, err
	}

	obj, err := s.files.Upload(ctx, storage.BucketLookImages, file.Filename, file.Body, file.ContentType)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	item.ImagePath = &obj.URL
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", s.category, id, err)
	}
	return item, nil
}

func (s *LookService) checkImagePath(p *string) error {
	if p != nil && *p != "" && s.category != models.LookTemplate {
		return invalid("only templates have images")
	}
	return nil
}
