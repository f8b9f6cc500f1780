package generation

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/contentgecko/imagegecko/internal/domain"
)

const (
	// DefaultWaveSize bounds concurrent remote calls per wave.
	DefaultWaveSize = 10
	// MaxWaveSize is the hard cap regardless of configuration.
	MaxWaveSize = 20
)

// Summary aggregates a batch run.
type Summary struct {
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Blocked   int       `json:"blocked"`
	Outcomes  []Outcome `json:"-"`
}

// ItemProcessor is the single-item operation the runner fans out. The
// orchestrator satisfies it.
type ItemProcessor interface {
	GenerateNow(ctx context.Context, itemID string, ov Overrides) Outcome
}

// Runner dispatches per-item generation in waves with a full barrier between
// them: no item of wave n+1 starts before every item of wave n has settled.
// Item outcomes are independent; one failure never stops the run.
type Runner struct {
	proc     ItemProcessor
	waveSize int
	logger   zerolog.Logger
}

// NewRunner constructs a Runner with the given wave size, clamped to
// [1, MaxWaveSize]. Zero or negative selects the default.
func NewRunner(proc ItemProcessor, waveSize int, logger zerolog.Logger) *Runner {
	if waveSize <= 0 {
		waveSize = DefaultWaveSize
	}
	if waveSize > MaxWaveSize {
		waveSize = MaxWaveSize
	}
	return &Runner{proc: proc, waveSize: waveSize, logger: logger}
}

// WaveSize returns the effective per-wave concurrency.
func (r *Runner) WaveSize() int {
	return r.waveSize
}

// Run processes the item ids wave by wave and returns the aggregate summary.
// Cancelling ctx stops further waves from dispatching but never aborts items
// already in flight; their attempts run to a terminal state on an undying
// context.
func (r *Runner) Run(ctx context.Context, itemIDs []string, ov Overrides) Summary {
	summary := Summary{Total: len(itemIDs)}
	if len(itemIDs) == 0 {
		return summary
	}

	var mu sync.Mutex
	detached := context.WithoutCancel(ctx)

	for start := 0; start < len(itemIDs); start += r.waveSize {
		if ctx.Err() != nil {
			r.logger.Warn().Int("dispatched", start).Msg("runner: run cancelled, remaining waves not dispatched")
			break
		}

		end := start + r.waveSize
		if end > len(itemIDs) {
			end = len(itemIDs)
		}
		wave := itemIDs[start:end]
		r.logger.Info().Int("wave_size", len(wave)).Int("offset", start).Msg("runner: dispatching wave")

		g := new(errgroup.Group)
		for _, id := range wave {
			id := id
			g.Go(func() error {
				out := r.proc.GenerateNow(detached, id, ov)
				mu.Lock()
				summary.record(out)
				mu.Unlock()
				return nil
			})
		}
		// Wave barrier: every attempt settles before the next wave starts.
		_ = g.Wait()
	}

	r.logger.Info().
		Int("total", summary.Total).
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("blocked", summary.Blocked).
		Msg("runner: run finished")
	return summary
}

func (s *Summary) record(out Outcome) {
	s.Outcomes = append(s.Outcomes, out)
	switch out.Status {
	case domain.StateCompleted:
		s.Completed++
	case domain.StateSkipped:
		s.Skipped++
	case domain.StateBlocked:
		s.Blocked++
	default:
		s.Failed++
	}
}
