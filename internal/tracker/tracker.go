// Package tracker records per-item generation progress as a single overwritten
// row. It deliberately keeps no history; the requirement is "observe current
// progress", not an audit trail.
package tracker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/contentgecko/imagegecko/internal/domain"
)

// Tracker persists item state transitions.
type Tracker struct {
	statuses domain.StatusRepository
	logger   zerolog.Logger
}

// New constructs a Tracker over the given status repository.
func New(statuses domain.StatusRepository, logger zerolog.Logger) *Tracker {
	return &Tracker{statuses: statuses, logger: logger}
}

// Set overwrites the item's status row with the given state and message.
func (t *Tracker) Set(ctx context.Context, itemID string, state domain.GenerationState, message string) error {
	return t.SetWithAsset(ctx, itemID, state, message, nil)
}

// SetWithAsset overwrites the item's status row including the id of the most
// recently generated asset.
func (t *Tracker) SetWithAsset(ctx context.Context, itemID string, state domain.GenerationState, message string, assetID *string) error {
	err := t.statuses.Upsert(ctx, &domain.ItemGenerationStatus{
		ItemID:    itemID,
		State:     state,
		Message:   message,
		AssetID:   assetID,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.logger.Error().Err(err).Str("item_id", itemID).Str("state", string(state)).Msg("tracker: status write failed")
		return err
	}

	evt := t.logger.Debug()
	if state == domain.StateFailed {
		evt = t.logger.Warn()
	}
	evt.Str("item_id", itemID).Str("state", string(state)).Str("message", message).Msg("tracker: status updated")
	return nil
}

// Get returns the current status row for an item.
func (t *Tracker) Get(ctx context.Context, itemID string) (*domain.ItemGenerationStatus, error) {
	return t.statuses.Get(ctx, itemID)
}
