// Package generation drives catalog items through the enhancement pipeline:
// eligibility, source selection, the remote call, the credit charge, and
// persistence, with every outcome recorded on the status tracker.
package generation

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/contentgecko/imagegecko/internal/domain"
	"github.com/contentgecko/imagegecko/internal/ledger"
	"github.com/contentgecko/imagegecko/internal/media"
	"github.com/contentgecko/imagegecko/internal/providers/genimage"
	"github.com/contentgecko/imagegecko/internal/targeting"
	"github.com/contentgecko/imagegecko/internal/tracker"
)

// RemoteGenerator is the contract the orchestrator needs from the mediator
// client.
type RemoteGenerator interface {
	Generate(ctx context.Context, req genimage.Request) (*genimage.Result, error)
}

// Settings holds the per-process generation configuration.
type Settings struct {
	APIKey        string
	DefaultPrompt string
	Targeting     targeting.Config
}

// Overrides carries per-attempt adjustments. Force bypasses the targeting
// check; Categories replaces the configured category filter snapshot.
type Overrides struct {
	Prompt     string
	Categories []string
	Force      bool
}

// Outcome is the terminal result of one generation attempt.
type Outcome struct {
	ItemID           string
	Status           domain.GenerationState
	Message          string
	AssetID          *string
	RemainingCredits *int
}

// Orchestrator composes the ledger, media store, remote client, resolver, and
// tracker into a single per-item operation.
type Orchestrator struct {
	catalog  domain.CatalogRepository
	media    *media.Store
	remote   RemoteGenerator
	ledger   *ledger.Ledger
	resolver *targeting.Resolver
	tracker  *tracker.Tracker
	settings Settings
	logger   zerolog.Logger
}

// NewOrchestrator wires the generation pipeline.
func NewOrchestrator(
	catalog domain.CatalogRepository,
	mediaStore *media.Store,
	remote RemoteGenerator,
	creditLedger *ledger.Ledger,
	resolver *targeting.Resolver,
	statusTracker *tracker.Tracker,
	settings Settings,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		catalog:  catalog,
		media:    mediaStore,
		remote:   remote,
		ledger:   creditLedger,
		resolver: resolver,
		tracker:  statusTracker,
		settings: settings,
		logger:   logger,
	}
}

// StartRun resolves the current targeting rules into the run's item list and
// seeds a queued status for each, returning id/label pairs for progress
// rendering.
func (o *Orchestrator) StartRun(ctx context.Context) ([]domain.ItemSummary, error) {
	ids, err := o.resolver.Resolve(ctx, o.settings.Targeting)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	summaries, err := o.catalog.ListSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.ItemSummary, len(summaries))
	for _, s := range summaries {
		byID[s.ID] = s
	}

	// Preserve resolution order and drop ids the catalog no longer knows.
	ordered := make([]domain.ItemSummary, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			continue
		}
		if s.Label == "" {
			s.Label = "Item " + id
		}
		_ = o.tracker.Set(ctx, id, domain.StateQueued, "")
		ordered = append(ordered, s)
	}
	return ordered, nil
}

// GenerateNow runs the full pipeline for one item and returns its terminal
// outcome. Every failure is converted into a tracker state plus message;
// nothing propagates to the caller as an error.
func (o *Orchestrator) GenerateNow(ctx context.Context, itemID string, ov Overrides) Outcome {
	if strings.TrimSpace(itemID) == "" {
		return Outcome{ItemID: itemID, Status: domain.StateFailed, Message: "Invalid item identifier."}
	}

	if strings.TrimSpace(o.settings.APIKey) == "" {
		return o.terminal(ctx, itemID, domain.StateBlocked, "Add your API key before running the workflow.", nil, nil)
	}

	item, err := o.catalog.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return o.terminal(ctx, itemID, domain.StateFailed, "Unknown catalog item.", nil, nil)
		}
		return o.terminal(ctx, itemID, domain.StateFailed, messageFor(err), nil, nil)
	}

	cfg := o.settings.Targeting
	if ov.Categories != nil {
		cfg.CategoryIDs = ov.Categories
	}
	if !ov.Force && !o.resolver.ShouldProcess(item, cfg) {
		o.logger.Debug().Str("item_id", itemID).Msg("generation: item skipped by targeting rules")
		return o.terminal(ctx, itemID, domain.StateSkipped, "Item skipped by targeting rules.", nil, nil)
	}

	_ = o.tracker.Set(ctx, itemID, domain.StateProcessing, "")

	source, err := o.media.SelectSource(ctx, item)
	if err != nil {
		if errors.Is(err, domain.ErrNoEligibleSource) {
			return o.terminal(ctx, itemID, domain.StateFailed, "Item has no original image to work from.", nil, nil)
		}
		return o.terminal(ctx, itemID, domain.StateFailed, messageFor(err), nil, nil)
	}

	sourceData, err := o.media.ReadAsset(ctx, source)
	if err != nil {
		return o.terminal(ctx, itemID, domain.StateFailed, messageFor(err), nil, nil)
	}

	promptText := ov.Prompt
	if strings.TrimSpace(promptText) == "" {
		promptText = o.settings.DefaultPrompt
	}
	promptText = genimage.BuildPrompt(promptText, item)

	result, err := o.remote.Generate(ctx, genimage.Request{
		Prompt: promptText,
		Image: genimage.InlineImage{
			Data:     sourceData,
			MIME:     source.MIME,
			FileName: path.Base(source.StorageKey),
		},
		Metadata: genimage.Metadata{
			SourceImageID: source.ID,
			CategoryIDs:   cfg.CategoryIDs,
			SKU:           item.SKU,
		},
	})
	if err != nil {
		// The ledger is untouched: a failed remote call costs nothing.
		o.logger.Error().Err(err).Str("item_id", itemID).Msg("generation: remote call failed")
		return o.terminal(ctx, itemID, domain.StateFailed, messageFor(err), nil, nil)
	}

	remaining, err := o.ledger.Charge(ctx, o.settings.APIKey)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientCredit):
			return o.terminal(ctx, itemID, domain.StateFailed, "Generation credits exhausted; top up to continue.", nil, nil)
		case errors.Is(err, domain.ErrInvalidCredential):
			return o.terminal(ctx, itemID, domain.StateFailed, "API key is not recognized.", nil, nil)
		default:
			return o.terminal(ctx, itemID, domain.StateFailed, messageFor(err), nil, nil)
		}
	}

	asset, err := o.media.PersistGenerated(ctx, item, domain.GeneratedMedia{
		Data:      result.Data,
		SourceURL: result.SourceURL,
		MIME:      result.MIME,
		FileName:  result.FileName,
		Prompt:    promptText,
	})
	if err != nil {
		return o.terminal(ctx, itemID, domain.StateFailed, messageFor(err), nil, &remaining)
	}

	o.logger.Info().Str("item_id", itemID).Str("asset_id", asset.ID).Int("remaining_credits", remaining).Msg("generation: item enhanced")
	return o.terminal(ctx, itemID, domain.StateCompleted, "Item enhanced successfully.", &asset.ID, &remaining)
}

func (o *Orchestrator) terminal(ctx context.Context, itemID string, state domain.GenerationState, message string, assetID *string, remaining *int) Outcome {
	_ = o.tracker.SetWithAsset(ctx, itemID, state, message, assetID)
	return Outcome{
		ItemID:           itemID,
		Status:           state,
		Message:          message,
		AssetID:          assetID,
		RemainingCredits: remaining,
	}
}

// messageFor produces the operator-facing text for an error. Typed rejection
// errors already carry the remote's own message; everything else is shown as
// formatted.
func messageFor(err error) string {
	if err == nil {
		return ""
	}
	var rejection *genimage.RejectionError
	if errors.As(err, &rejection) {
		return rejection.Message
	}
	return err.Error()
}
