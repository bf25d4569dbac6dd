// Package onboarding holds the typed configuration of the seven consumer
// onboarding steps and a sequencer that plays them in order.
package onboarding

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Step ids in playback order
const (
	StepWelcome     = "welcome"
	StepName        = "name"
	StepAppearance  = "appearance"
	StepPersonality = "personality"
	StepPreview     = "preview"
	StepFinalizing  = "finalizing"
	StepEntry       = "entry"
)

// Steps is the fixed playback order
var Steps = []string{StepWelcome, StepName, StepAppearance, StepPersonality, StepPreview, StepFinalizing, StepEntry}

var (
	ErrUnknownStep   = errors.New("unknown onboarding step")
	ErrInvalidConfig = errors.New("invalid onboarding config")
)

// IsStep reports whether id names one of Steps
func IsStep(id string) bool {
	return slices.Contains(Steps, id)
}

type WelcomeConfig struct {
	Title              string `json:"title" yaml:"title" validate:"required,max=120"`
	Subtitle           string `json:"subtitle,omitempty" yaml:"subtitle" validate:"max=240"`
	BackgroundVideoURL string `json:"background_video_url,omitempty" yaml:"background_video_url" validate:"omitempty,url"`
	ButtonLabel        string `json:"button_label" yaml:"button_label" validate:"required,max=40"`
}

type NameConfig struct {
	Prompt      string `json:"prompt" yaml:"prompt" validate:"required,max=200"`
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder" validate:"max=80"`
	MinLength   int    `json:"min_length" yaml:"min_length" validate:"gte=1"`
	MaxLength   int    `json:"max_length" yaml:"max_length" validate:"gtefield=MinLength,lte=64"`
}

type AppearanceOption struct {
	ID         string `json:"id" yaml:"id" validate:"required"`
	Label      string `json:"label" yaml:"label" validate:"required,max=60"`
	ImageURL   string `json:"image_url,omitempty" yaml:"image_url" validate:"omitempty,url"`
	TemplateID string `json:"template_id,omitempty" yaml:"template_id"`
}

type AppearanceConfig struct {
	Title   string             `json:"title" yaml:"title" validate:"required,max=120"`
	Options []AppearanceOption `json:"options" yaml:"options" validate:"min=1,max=24,dive"`
}

type PersonalityConfig struct {
	Title         string   `json:"title" yaml:"title" validate:"required,max=120"`
	Traits        []string `json:"traits" yaml:"traits" validate:"min=1,max=24,dive,required,max=40"`
	MaxSelections int      `json:"max_selections" yaml:"max_selections" validate:"gte=1,lte=24"`
}

type PreviewConfig struct {
	Title    string `json:"title" yaml:"title" validate:"required,max=120"`
	Caption  string `json:"caption,omitempty" yaml:"caption" validate:"max=240"`
	VideoURL string `json:"video_url,omitempty" yaml:"video_url" validate:"omitempty,url"`
}

// FinalizingConfig shows each message for DelayMS then completes
type FinalizingConfig struct {
	Messages []string `json:"messages" yaml:"messages" validate:"min=1,max=20,dive,required,max=120"`
	DelayMS  int      `json:"delay_ms" yaml:"delay_ms" validate:"gte=100,lte=30000"`
}

// EntryConfig completes on the first input after GraceMS
type EntryConfig struct {
	Title   string `json:"title" yaml:"title" validate:"required,max=120"`
	Prompt  string `json:"prompt" yaml:"prompt" validate:"required,max=120"`
	GraceMS int    `json:"grace_ms" yaml:"grace_ms" validate:"gte=0,lte=5000"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// New returns an empty config value for a step
func New(stepID string) (any, error) {
	switch stepID {
	case StepWelcome:
		return &WelcomeConfig{}, nil
	case StepName:
		return &NameConfig{}, nil
	case StepAppearance:
		return &AppearanceConfig{}, nil
	case StepPersonality:
		return &PersonalityConfig{}, nil
	case StepPreview:
		return &PreviewConfig{}, nil
	case StepFinalizing:
		return &FinalizingConfig{}, nil
	case StepEntry:
		return &EntryConfig{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStep, stepID)
}

// Decode parses raw JSON strictly into the step's typed config and validates it
func Decode(stepID string, raw []byte) (any, error) {
	cfg, err := New(stepID)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, stepID, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: %s: trailing data after config object", ErrInvalidConfig, stepID)
	}

	if err := Validate(stepID, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a typed config
func Validate(stepID string, cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, stepID, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, stepID, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "url":
		return field + " must be a URL"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be less than %s", field, strings.ToLower(fe.Param()))
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// Defaults returns a valid config for every step
func Defaults() map[string]any {
	return map[string]any{
		StepWelcome: &WelcomeConfig{
			Title:       "Meet your companion",
			Subtitle:    "A few quick questions and you're in.",
			ButtonLabel: "Get started",
		},
		StepName: &NameConfig{Prompt: "What should we call you?", Placeholder: "Your name", MinLength: 1, MaxLength: 32},
		StepAppearance: &AppearanceConfig{
			Title: "Pick a look",
			Options: []AppearanceOption{
				{ID: "natural", Label: "Natural"},
				{ID: "stylized", Label: "Stylized"},
			},
		},
		StepPersonality: &PersonalityConfig{
			Title:         "What vibe do you like?",
			Traits:        []string{"playful", "calm", "curious", "bold"},
			MaxSelections: 2,
		},
		StepPreview: &PreviewConfig{Title: "Here's a sneak peek"},
		StepFinalizing: &FinalizingConfig{
			Messages: []string{"Setting things up", "Picking a soundtrack", "Almost there"},
			DelayMS:  1200,
		},
		StepEntry: &EntryConfig{Title: "All set", Prompt: "Tap anywhere to continue", GraceMS: 600},
	}
}
