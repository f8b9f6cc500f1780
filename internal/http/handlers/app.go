package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/contentgecko/imagegecko/internal/generation"
	"github.com/contentgecko/imagegecko/internal/ledger"
	"github.com/contentgecko/imagegecko/internal/media"
	"github.com/contentgecko/imagegecko/internal/tracker"
)

// App bundles the wired collaborators the HTTP layer needs. Everything is
// injected; there is no ambient lookup.
type App struct {
	Orchestrator *generation.Orchestrator
	Media        *media.Store
	Ledger       *ledger.Ledger
	Tracker      *tracker.Tracker
	APIKey       string
	WaveSize     int
	Logger       zerolog.Logger
}

// NewApp constructs the handler container.
func NewApp(
	orch *generation.Orchestrator,
	mediaStore *media.Store,
	creditLedger *ledger.Ledger,
	statusTracker *tracker.Tracker,
	apiKey string,
	waveSize int,
	logger zerolog.Logger,
) *App {
	return &App{
		Orchestrator: orch,
		Media:        mediaStore,
		Ledger:       creditLedger,
		Tracker:      statusTracker,
		APIKey:       apiKey,
		WaveSize:     waveSize,
		Logger:       logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error":   errCode,
		"message": message,
	})
}
