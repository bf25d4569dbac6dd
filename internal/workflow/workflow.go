// Package workflow implements the four-step status generation editor:
// basic info, text, starting image and per-scene videos.
package workflow

import (
	"context"
	"errors"
	"io"

	"character-studio/backend/internal/generation"
	"character-studio/backend/internal/models"
	"character-studio/backend/internal/storage"
	"character-studio/backend/pkg/logger"
)

var (
	// ErrValidation wraps every precondition failure. No remote call was made.
	ErrValidation = errors.New("validation failed")
	// ErrBusy is returned when the same action is already running
	ErrBusy = errors.New("action already in progress")
	// ErrSceneGenerated is returned when a scene already has a playlist video
	// and duplicates are not allowed
	ErrSceneGenerated = errors.New("scene already has a video")
	// ErrGeneration wraps failures of the generation gateway
	ErrGeneration = errors.New("generation failed")
)

// StatusStore is the part of the status repository the editor writes through
type StatusStore interface {
	Get(ctx context.Context, id string) (*models.Status, error)
	Save(ctx context.Context, status *models.Status) error
}

type CharacterLookup interface {
	Get(ctx context.Context, id string) (*models.Character, error)
}

// Event types delivered to the Notifier
const (
	EventActionCompleted = "status.action_completed"
	EventActionFailed    = "status.action_failed"
	EventSaved           = "status.saved"
	EventSaveFailed      = "status.save_failed"
)

// Event reports the outcome of an editor action to operators
type Event struct {
	Type     string `json:"type"`
	StatusID string `json:"status_id"`
	Action   string `json:"action,omitempty"`
	Step     int    `json:"step"`
	Scene    *int   `json:"scene,omitempty"`
	Message  string `json:"message,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, event Event)

func (f NotifierFunc) Notify(ctx context.Context, event Event) { f(ctx, event) }

var discardNotifier = NotifierFunc(func(context.Context, Event) {})

// Options tune the editor
type Options struct {
	// SceneCount is how many video scenes text generation asks for
	SceneCount int
	// VideoDuration is the requested length of each generated video in seconds
	VideoDuration int
	// AllowDuplicateSceneVideos lets GenerateSceneVideo run for a scene that
	// already has a playlist entry
	AllowDuplicateSceneVideos bool
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{SceneCount: 4, VideoDuration: 5}
}

// Deps are the collaborators shared by every editor
type Deps struct {
	Store      StatusStore
	Characters CharacterLookup
	Generator  generation.Generator
	Uploader   storage.Uploader
	Notifier   Notifier
	Options    Options
	Logger     *logger.Logger
}

// Upload is a file handed to one of the manual-upload paths
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
	// Duration in seconds, videos only. Zero means Options.VideoDuration.
	Duration int
}

// BasicInfo holds the step 0 fields. Empty fields are left unchanged.
type BasicInfo struct {
	CharacterID string      `json:"character_id"`
	Title       *string     `json:"title"`
	Mood        models.Mood `json:"mood"`
	Description *string     `json:"description"`
}

// Edit is a partial update of the working copy. Nil fields are left alone.
type Edit struct {
	BasicInfo   *BasicInfo       `json:"basic_info"`
	Overlays    *models.Overlays `json:"overlays"`
	Suggestions []string         `json:"suggestions"`
	Scenes      []string         `json:"scenes"`
}

// SceneControl describes the generate control of one scene
type SceneControl struct {
	Index     int    `json:"index"`
	Scene     string `json:"scene"`
	Generated bool   `json:"generated"`
	Busy      bool   `json:"busy"`
	Disabled  bool   `json:"disabled"`
}

// View is a consistent snapshot of an editor
type View struct {
	Status   *models.Status `json:"status"`
	ViewStep int            `json:"view_step"`
	Scenes   []SceneControl `json:"scenes"`
	Busy     []string       `json:"busy"`
}
