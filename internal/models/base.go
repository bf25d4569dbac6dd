package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// BeforeCreate hooks give every UUID-keyed row an id when the caller did not

func (c *Character) BeforeCreate(*gorm.DB) error { assignID(&c.ID); return nil }
func (s *Status) BeforeCreate(*gorm.DB) error    { assignID(&s.ID); return nil }
func (p *Prompt) BeforeCreate(*gorm.DB) error    { assignID(&p.ID); return nil }
func (a *Asset) BeforeCreate(*gorm.DB) error     { assignID(&a.ID); return nil }

// BeforeSave keeps jsonb array columns as [] rather than null
func (s *Status) BeforeSave(*gorm.DB) error {
	s.Normalize()
	return nil
}

// Normalize replaces nil lists with empty ones
func (s *Status) Normalize() {
	if s.SuggestionsList == nil {
		s.SuggestionsList = datatypes.JSONSlice[string]{}
	}
	if s.VideoScenes == nil {
		s.VideoScenes = datatypes.JSONSlice[string]{}
	}
	if s.VideosPlaylist == nil {
		s.VideosPlaylist = datatypes.JSONSlice[PlaylistEntry]{}
	}
	if s.GenerationStatus == "" {
		s.GenerationStatus = GenerationStatusForStep(s.GenerationStep)
	}
}
