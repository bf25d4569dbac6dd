package repository

import (
	"context"
	"errors"
	"fmt"

	"character-studio/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewGormRepositories builds every repository on one connection
func NewGormRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Characters: NewGormCharacterRepository(db),
		Statuses:   NewGormStatusRepository(db),
		Prompts:    NewGormPromptRepository(db),
		Assets:     NewGormAssetRepository(db),
		LookItems:  NewGormLookItemRepository(db),
		Onboarding: NewGormOnboardingRepository(db),
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func affected(tx *gorm.DB) error {
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func page(db *gorm.DB, opts ListOptions) *gorm.DB {
	if opts.Category != "" {
		db = db.Where("category = ?", opts.Category)
	}
	return db.Limit(PageSize).Offset(opts.Offset())
}

type GormCharacterRepository struct {
	db *gorm.DB
}

func NewGormCharacterRepository(db *gorm.DB) *GormCharacterRepository {
	return &GormCharacterRepository{db: db}
}

func (r *GormCharacterRepository) List(ctx context.Context, opts ListOptions) ([]models.Character, error) {
	characters := []models.Character{}
	opts.Category = "" // characters have no category
	err := page(r.db.WithContext(ctx), opts).Order("created_at DESC").Find(&characters).Error
	return characters, err
}

func (r *GormCharacterRepository) Get(ctx context.Context, id string) (*models.Character, error) {
	var character models.Character
	if err := r.db.WithContext(ctx).First(&character, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &character, nil
}

func (r *GormCharacterRepository) Create(ctx context.Context, character *models.Character) error {
	return translate(r.db.WithContext(ctx).Create(character).Error)
}

func (r *GormCharacterRepository) Update(ctx context.Context, character *models.Character) error {
	return affected(r.db.WithContext(ctx).Model(character).
		Select("name", "description", "avatar_url").Updates(character))
}

// Delete removes the character; statuses go with it through ON DELETE CASCADE
func (r *GormCharacterRepository) Delete(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).Delete(&models.Character{}, "id = ?", id))
}

func (r *GormCharacterRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Character{}).Count(&n).Error
	return n, err
}

type GormStatusRepository struct {
	db *gorm.DB
}

func NewGormStatusRepository(db *gorm.DB) *GormStatusRepository {
	return &GormStatusRepository{db: db}
}

func (r *GormStatusRepository) filtered(ctx context.Context, filter StatusFilter) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&models.Status{})
	if filter.CharacterID != "" {
		db = db.Where("character_id = ?", filter.CharacterID)
	}
	if filter.GenerationStatus != "" {
		db = db.Where("generation_status = ?", filter.GenerationStatus)
	}
	return db
}

func (r *GormStatusRepository) List(ctx context.Context, filter StatusFilter) ([]models.Status, error) {
	statuses := []models.Status{}
	err := page(r.filtered(ctx, filter), ListOptions{Page: filter.Page}).
		Order("created_at DESC").Find(&statuses).Error
	return statuses, err
}

func (r *GormStatusRepository) Get(ctx context.Context, id string) (*models.Status, error) {
	var status models.Status
	if err := r.db.WithContext(ctx).First(&status, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &status, nil
}

func (r *GormStatusRepository) Create(ctx context.Context, status *models.Status) error {
	return translate(r.db.WithContext(ctx).Create(status).Error)
}

// Save overwrites every workflow column. There is no version check: last
// write wins. is_default is owned by ClearDefault and MarkDefault.
func (r *GormStatusRepository) Save(ctx context.Context, status *models.Status) error {
	status.Normalize()
	return affected(r.db.WithContext(ctx).Model(status).
		Select("*").Omit("id", "created_at", "is_default").Updates(status))
}

func (r *GormStatusRepository) Delete(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).Delete(&models.Status{}, "id = ?", id))
}

func (r *GormStatusRepository) Count(ctx context.Context, filter StatusFilter) (int64, error) {
	var n int64
	err := r.filtered(ctx, filter).Count(&n).Error
	return n, err
}

func (r *GormStatusRepository) ClearDefault(ctx context.Context, characterID string) error {
	return r.db.WithContext(ctx).Model(&models.Status{}).
		Where("character_id = ? AND is_default", characterID).
		Update("is_default", false).Error
}

func (r *GormStatusRepository) MarkDefault(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).Model(&models.Status{}).
		Where("id = ?", id).Update("is_default", true))
}

func (r *GormStatusRepository) Defaults(ctx context.Context) ([]models.Status, error) {
	statuses := []models.Status{}
	err := r.db.WithContext(ctx).
		Where("is_default AND starting_image_url IS NOT NULL AND starting_image_url <> ''").
		Order("updated_at DESC").Find(&statuses).Error
	return statuses, err
}

type GormPromptRepository struct {
	db *gorm.DB
}

func NewGormPromptRepository(db *gorm.DB) *GormPromptRepository {
	return &GormPromptRepository{db: db}
}

func (r *GormPromptRepository) List(ctx context.Context, opts ListOptions) ([]models.Prompt, error) {
	prompts := []models.Prompt{}
	err := page(r.db.WithContext(ctx), opts).Order("name").Find(&prompts).Error
	return prompts, err
}

func (r *GormPromptRepository) Get(ctx context.Context, id string) (*models.Prompt, error) {
	var prompt models.Prompt
	if err := r.db.WithContext(ctx).First(&prompt, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &prompt, nil
}

func (r *GormPromptRepository) Create(ctx context.Context, prompt *models.Prompt) error {
	return translate(r.db.WithContext(ctx).Create(prompt).Error)
}

func (r *GormPromptRepository) Update(ctx context.Context, prompt *models.Prompt) error {
	return affected(r.db.WithContext(ctx).Model(prompt).
		Select("name", "category", "content").Updates(prompt))
}

func (r *GormPromptRepository) Delete(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).Delete(&models.Prompt{}, "id = ?", id))
}

func (r *GormPromptRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Prompt{}).Count(&n).Error
	return n, err
}

type GormAssetRepository struct {
	db *gorm.DB
}

func NewGormAssetRepository(db *gorm.DB) *GormAssetRepository {
	return &GormAssetRepository{db: db}
}

func (r *GormAssetRepository) List(ctx context.Context, opts ListOptions) ([]models.Asset, error) {
	assets := []models.Asset{}
	err := page(r.db.WithContext(ctx), opts).Order("created_at DESC").Find(&assets).Error
	return assets, err
}

func (r *GormAssetRepository) Get(ctx context.Context, id string) (*models.Asset, error) {
	var asset models.Asset
	if err := r.db.WithContext(ctx).First(&asset, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &asset, nil
}

func (r *GormAssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	return translate(r.db.WithContext(ctx).Create(asset).Error)
}

func (r *GormAssetRepository) Delete(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).Delete(&models.Asset{}, "id = ?", id))
}

func (r *GormAssetRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Asset{}).Count(&n).Error
	return n, err
}

type GormLookItemRepository struct {
	db *gorm.DB
}

func NewGormLookItemRepository(db *gorm.DB) *GormLookItemRepository {
	return &GormLookItemRepository{db: db}
}

func (r *GormLookItemRepository) scoped(ctx context.Context, category models.LookCategory) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.LookItem{}).Where("category = ?", category)
}

func (r *GormLookItemRepository) List(ctx context.Context, category models.LookCategory, p int) ([]models.LookItem, error) {
	items := []models.LookItem{}
	err := page(r.scoped(ctx, category), ListOptions{Page: p}).
		Order("display_order, id").Find(&items).Error
	return items, err
}

func (r *GormLookItemRepository) Get(ctx context.Context, category models.LookCategory, id string) (*models.LookItem, error) {
	var item models.LookItem
	if err := r.scoped(ctx, category).First(&item, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

// Create fails with ErrDuplicate when the slug exists, including soft-deleted rows
func (r *GormLookItemRepository) Create(ctx context.Context, item *models.LookItem) error {
	return translate(r.db.WithContext(ctx).Create(item).Error)
}

func (r *GormLookItemRepository) Update(ctx context.Context, item *models.LookItem) error {
	return affected(r.scoped(ctx, item.Category).Where("id = ?", item.ID).
		Select("name", "prompt", "enabled", "image_path", "display_order").Updates(item))
}

func (r *GormLookItemRepository) Delete(ctx context.Context, category models.LookCategory, id string) error {
	return affected(r.db.WithContext(ctx).Where("category = ?", category).
		Delete(&models.LookItem{}, "id = ?", id))
}

func (r *GormLookItemRepository) MaxDisplayOrder(ctx context.Context, category models.LookCategory) (int, error) {
	var max int
	err := r.scoped(ctx, category).Select("COALESCE(MAX(display_order), 0)").Scan(&max).Error
	return max, err
}

func (r *GormLookItemRepository) SetDisplayOrders(ctx context.Context, category models.LookCategory, orders map[string]int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, order := range orders {
			err := tx.Model(&models.LookItem{}).
				Where("category = ? AND id = ?", category, id).
				Update("display_order", order).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormLookItemRepository) Count(ctx context.Context, category models.LookCategory) (int64, error) {
	var n int64
	err := r.scoped(ctx, category).Count(&n).Error
	return n, err
}

type GormOnboardingRepository struct {
	db *gorm.DB
}

func NewGormOnboardingRepository(db *gorm.DB) *GormOnboardingRepository {
	return &GormOnboardingRepository{db: db}
}

func (r *GormOnboardingRepository) List(ctx context.Context) ([]models.OnboardingStep, error) {
	steps := []models.OnboardingStep{}
	err := r.db.WithContext(ctx).Find(&steps).Error
	return steps, err
}

func (r *GormOnboardingRepository) Get(ctx context.Context, stepID string) (*models.OnboardingStep, error) {
	var step models.OnboardingStep
	if err := r.db.WithContext(ctx).First(&step, "step_id = ?", stepID).Error; err != nil {
		return nil, translate(err)
	}
	return &step, nil
}

func (r *GormOnboardingRepository) Upsert(ctx context.Context, step *models.OnboardingStep) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "step_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"config", "updated_at"}),
	}).Create(step).Error
}
