package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Prompt is a reusable named prompt text
type Prompt struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Category  string    `json:"category" gorm:"index"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PromptRequest struct {
	Name     string `json:"name" binding:"required,max=200"`
	Category string `json:"category" binding:"max=100"`
	Content  string `json:"content" binding:"required"`
}

// Asset is an uploaded media file referenced by URL
type Asset struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Category    string    `json:"category" gorm:"index"`
	URL         string    `json:"url" gorm:"not null"`
	StoragePath string    `json:"storage_path"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// LookCategory distinguishes the two kinds of look-generation item sharing one table
type LookCategory string

const (
	LookTemplate       LookCategory = "template"
	LookTransformation LookCategory = "transformation"
)

// Valid reports whether c is a known category
func (c LookCategory) Valid() bool {
	return c == LookTemplate || c == LookTransformation
}

// LookPrompt is the model prompt of a look item
type LookPrompt struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

// LookItem is a template or transformation. Its id is a human-chosen slug.
type LookItem struct {
	ID           string                         `json:"id" gorm:"primaryKey"`
	Category     LookCategory                   `json:"category" gorm:"not null;index"`
	Name         string                         `json:"name" gorm:"not null"`
	Prompt       datatypes.JSONType[LookPrompt] `json:"prompt"`
	DisplayOrder int                            `json:"display_order"`
	Enabled      bool                           `json:"enabled"`
	ImagePath    *string                        `json:"image_path"`
	DeletedAt    gorm.DeletedAt                 `json:"deleted_at,omitempty" gorm:"index"`
	CreatedAt    time.Time                      `json:"created_at"`
	UpdatedAt    time.Time                      `json:"updated_at"`
}

// LookItemRequest creates or updates a look item. ID is only read on create.
type LookItemRequest struct {
	ID             string  `json:"id"`
	Name           string  `json:"name" binding:"required,max=200"`
	Prompt         string  `json:"prompt" binding:"required"`
	NegativePrompt string  `json:"negative_prompt"`
	Enabled        *bool   `json:"enabled"`
	ImagePath      *string `json:"image_path"`
}

// Counts are the dashboard aggregates
type Counts struct {
	Characters        int64 `json:"characters"`
	Statuses          int64 `json:"statuses"`
	CompletedStatuses int64 `json:"completed_statuses"`
	Prompts           int64 `json:"prompts"`
	Assets            int64 `json:"assets"`
	Templates         int64 `json:"templates"`
	Transformations   int64 `json:"transformations"`
}

// FeedItem is a character paired with its default status
type FeedItem struct {
	Character Character `json:"character"`
	Status    *Status   `json:"status"`
}
