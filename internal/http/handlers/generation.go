package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/contentgecko/imagegecko/internal/domain"
	"github.com/contentgecko/imagegecko/internal/generation"
)

type runItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type startRunResponse struct {
	Items   []runItem `json:"items"`
	Total   int       `json:"total"`
	Message string    `json:"message,omitempty"`
}

// StartRun resolves the configured targeting rules and seeds queued statuses
// so the driver can process items one by one.
func (a *App) StartRun(w http.ResponseWriter, r *http.Request) {
	if a.APIKey == "" {
		a.error(w, http.StatusBadRequest, "missing_api_key", "Add your API key before running the workflow.")
		return
	}

	summaries, err := a.Orchestrator.StartRun(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: start run failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to resolve targets")
		return
	}

	resp := startRunResponse{Items: make([]runItem, 0, len(summaries)), Total: len(summaries)}
	for _, s := range summaries {
		resp.Items = append(resp.Items, runItem{ID: s.ID, Label: s.Label})
	}
	if resp.Total == 0 {
		resp.Message = "No items match your current targeting rules."
	}
	a.json(w, http.StatusOK, resp)
}

type processItemRequest struct {
	Prompt     string   `json:"prompt"`
	Categories []string `json:"categories"`
	// Force defaults to true: the driver already resolved targets before
	// dispatching individual items.
	Force *bool `json:"force"`
}

type processItemResponse struct {
	ItemID           string `json:"item_id"`
	Status           string `json:"status"`
	Message          string `json:"message"`
	AssetID          *string `json:"asset_id,omitempty"`
	RemainingCredits *int    `json:"remaining_credits,omitempty"`
}

// ProcessItem runs the full generation pipeline for one item and reports its
// terminal outcome. Per-item failures are payload content, not HTTP errors.
func (a *App) ProcessItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	if itemID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "item id required")
		return
	}

	var req processItemRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
	}

	force := true
	if req.Force != nil {
		force = *req.Force
	}

	outcome := a.Orchestrator.GenerateNow(r.Context(), itemID, generation.Overrides{
		Prompt:     req.Prompt,
		Categories: req.Categories,
		Force:      force,
	})
	a.json(w, http.StatusOK, processItemResponse{
		ItemID:           outcome.ItemID,
		Status:           string(outcome.Status),
		Message:          outcome.Message,
		AssetID:          outcome.AssetID,
		RemainingCredits: outcome.RemainingCredits,
	})
}

type runBatchRequest struct {
	ItemIDs  []string `json:"item_ids"`
	Prompt   string   `json:"prompt"`
	WaveSize int      `json:"wave_size"`
}

type runBatchResponse struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Blocked   int `json:"blocked"`
}

// RunBatch executes a server-side batch run: waves of bounded concurrency
// with a barrier between them, item ids taken from the request or resolved
// from the configured targeting rules.
func (a *App) RunBatch(w http.ResponseWriter, r *http.Request) {
	if a.APIKey == "" {
		a.error(w, http.StatusBadRequest, "missing_api_key", "Add your API key before running the workflow.")
		return
	}

	var req runBatchRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
	}

	ids := req.ItemIDs
	if len(ids) == 0 {
		summaries, err := a.Orchestrator.StartRun(r.Context())
		if err != nil {
			a.Logger.Error().Err(err).Msg("handlers: batch target resolution failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to resolve targets")
			return
		}
		for _, s := range summaries {
			ids = append(ids, s.ID)
		}
	}

	waveSize := req.WaveSize
	if waveSize <= 0 {
		waveSize = a.WaveSize
	}
	runner := generation.NewRunner(a.Orchestrator, waveSize, a.Logger)
	summary := runner.Run(r.Context(), ids, generation.Overrides{Prompt: req.Prompt, Force: true})

	a.json(w, http.StatusOK, runBatchResponse{
		Total:     summary.Total,
		Completed: summary.Completed,
		Failed:    summary.Failed,
		Skipped:   summary.Skipped,
		Blocked:   summary.Blocked,
	})
}

type itemStatusResponse struct {
	ItemID  string  `json:"item_id"`
	State   string  `json:"state"`
	Message string  `json:"message"`
	AssetID *string `json:"asset_id,omitempty"`
}

// ItemStatus returns the current progress row for an item.
func (a *App) ItemStatus(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	st, err := a.Tracker.Get(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "no status recorded for item")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load status")
		return
	}
	a.json(w, http.StatusOK, itemStatusResponse{
		ItemID:  st.ItemID,
		State:   string(st.State),
		Message: st.Message,
		AssetID: st.AssetID,
	})
}

// Credits reports the remaining balance for the configured credential.
func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	remaining, err := a.Ledger.Balance(r.Context(), a.APIKey)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredential) {
			a.error(w, http.StatusBadRequest, "invalid_credential", "API key is missing or not recognized.")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load balance")
		return
	}
	a.json(w, http.StatusOK, map[string]int{"remaining_credits": remaining})
}
