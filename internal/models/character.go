package models

import (
	"time"
)

// Character is an AI persona shown in the consumer app. Deleting one
// cascades to its statuses in the database.
type Character struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	AvatarURL   string    `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CharacterRequest struct {
	Name        string `json:"name" binding:"required,max=120"`
	Description string `json:"description" binding:"max=4000"`
	AvatarURL   string `json:"avatar_url" binding:"omitempty,url"`
}

// Apply copies the request onto c
func (r CharacterRequest) Apply(c *Character) {
	c.Name = r.Name
	c.Description = r.Description
	c.AvatarURL = r.AvatarURL
}

// HasAvatar reports whether an avatar image is available as a generation reference
func (c *Character) HasAvatar() bool {
	return c != nil && c.AvatarURL != ""
}
