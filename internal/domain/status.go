package domain

import "time"

// GenerationState enumerates per-item pipeline states.
type GenerationState string

const (
	StateQueued     GenerationState = "queued"
	StateProcessing GenerationState = "processing"
	StateCompleted  GenerationState = "completed"
	StateFailed     GenerationState = "failed"
	StateSkipped    GenerationState = "skipped"
	StateBlocked    GenerationState = "blocked"
)

// Terminal reports whether no further automatic transition happens for the
// attempt.
func (s GenerationState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateSkipped, StateBlocked:
		return true
	}
	return false
}

// ItemGenerationStatus is the single, overwritten progress row per item.
// Last write wins; there is no transition log.
type ItemGenerationStatus struct {
	ItemID    string
	State     GenerationState
	Message   string
	AssetID   *string
	UpdatedAt time.Time
}
