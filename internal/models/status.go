package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// Mood tags a status with the emotional tone used by every generation prompt
type Mood string

const (
	MoodHappy      Mood = "happy"
	MoodSad        Mood = "sad"
	MoodExcited    Mood = "excited"
	MoodCalm       Mood = "calm"
	MoodFlirty     Mood = "flirty"
	MoodMysterious Mood = "mysterious"
	MoodAngry      Mood = "angry"
	MoodTired      Mood = "tired"
)

// Moods lists every accepted mood in display order
var Moods = []Mood{MoodHappy, MoodSad, MoodExcited, MoodCalm, MoodFlirty, MoodMysterious, MoodAngry, MoodTired}

// Valid reports whether m is one of Moods
func (m Mood) Valid() bool {
	return slices.Contains(Moods, m)
}

// GenerationStatus is recorded for observability. Only draft and completed
// are written by the editor; generating and failed belong to external pipelines.
type GenerationStatus string

const (
	GenerationDraft      GenerationStatus = "draft"
	GenerationGenerating GenerationStatus = "generating"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationFailed     GenerationStatus = "failed"
)

// Workflow steps
const (
	StepBasicInfo      = 0
	StepTextGenerated  = 1
	StepImageGenerated = 2
	StepVideosReady    = 3
)

// ManualUploadPrompt marks playlist entries that were uploaded instead of generated
const ManualUploadPrompt = "Manual upload"

// GenerationStatusForStep is the save-time mapping applied by every persist
func GenerationStatusForStep(step int) GenerationStatus {
	if step >= StepVideosReady {
		return GenerationCompleted
	}
	return GenerationDraft
}

// Overlays are the two short captions drawn over a status video
type Overlays struct {
	Now    string `json:"now"`
	Health string `json:"health"`
}

// PlaylistEntry is one video attached to a status
type PlaylistEntry struct {
	SceneIndex  int    `json:"scene_index"`
	VideoURL    string `json:"video_url"`
	ScenePrompt string `json:"scene_prompt"`
	Duration    int    `json:"duration"`
}

// Status is a character's content unit, built through the four-step
// generation workflow
type Status struct {
	ID               string                            `json:"id" gorm:"type:uuid;primaryKey"`
	CharacterID      string                            `json:"character_id" gorm:"type:uuid;not null;index"`
	Title            string                            `json:"title"`
	Mood             Mood                              `json:"mood"`
	Description      string                            `json:"description"`
	GenerationStep   int                               `json:"generation_step"`
	GenerationStatus GenerationStatus                  `json:"generation_status"`
	OverlaysContent  datatypes.JSONType[Overlays]      `json:"overlays_content"`
	SuggestionsList  datatypes.JSONSlice[string]       `json:"suggestions_list"`
	VideoScenes      datatypes.JSONSlice[string]       `json:"video_scenes"`
	StartingImageURL *string                           `json:"starting_image_url"`
	VideosPlaylist   datatypes.JSONSlice[PlaylistEntry] `json:"videos_playlist"`
	IsDefault        bool                              `json:"is_default"`
	CreatedAt        time.Time                         `json:"created_at"`
	UpdatedAt        time.Time                         `json:"updated_at"`
}

// Overlays returns the decoded overlay captions
func (s *Status) Overlays() Overlays {
	return s.OverlaysContent.Data()
}

// SetOverlays replaces the overlay captions
func (s *Status) SetOverlays(o Overlays) {
	s.OverlaysContent = datatypes.NewJSONType(o)
}

// HasStartingImage reports whether step 2 has been reached by either path
func (s *Status) HasStartingImage() bool {
	return s.StartingImageURL != nil && *s.StartingImageURL != ""
}

// Clone returns a deep copy so a working copy never shares slices with the stored row
func (s *Status) Clone() *Status {
	c := *s
	c.SuggestionsList = slices.Clone(s.SuggestionsList)
	c.VideoScenes = slices.Clone(s.VideoScenes)
	c.VideosPlaylist = slices.Clone(s.VideosPlaylist)
	if s.StartingImageURL != nil {
		u := *s.StartingImageURL
		c.StartingImageURL = &u
	}
	return &c
}

// StatusRequest carries the basic-info fields editable outside the workflow
type StatusRequest struct {
	CharacterID string `json:"character_id" binding:"required,uuid"`
	Title       string `json:"title" binding:"max=200"`
	Mood        Mood   `json:"mood" binding:"required"`
	Description string `json:"description" binding:"max=4000"`
}
