package models

import (
	"time"

	"gorm.io/datatypes"
)

// OnboardingStep stores one step's JSON configuration keyed by step id
type OnboardingStep struct {
	StepID    string         `json:"step_id" gorm:"primaryKey"`
	Config    datatypes.JSON `json:"config"`
	UpdatedAt time.Time      `json:"updated_at"`
}
