// Package ledger arbitrates the prepaid generation budget. It is the only
// component allowed to decrement credit balances.
package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/contentgecko/imagegecko/internal/domain"
)

// Ledger charges and inspects credit accounts keyed by API key.
type Ledger struct {
	credits domain.CreditRepository
	logger  zerolog.Logger
}

// New constructs a Ledger over the given credit repository.
func New(credits domain.CreditRepository, logger zerolog.Logger) *Ledger {
	return &Ledger{credits: credits, logger: logger}
}

// Charge consumes exactly one credit for the credential and returns the
// post-charge balance. The decrement is a single conditional statement in the
// repository, so concurrent charges within a wave cannot overdraw the account.
// Callers must invoke Charge only after the remote generation succeeded.
func (l *Ledger) Charge(ctx context.Context, apiKey string) (int, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return 0, domain.ErrInvalidCredential
	}

	remaining, err := l.credits.ChargeOne(ctx, apiKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrInvalidCredential
		}
		if errors.Is(err, domain.ErrInsufficientCredit) {
			l.logger.Warn().Msg("ledger: charge refused, balance exhausted")
			return 0, domain.ErrInsufficientCredit
		}
		return 0, err
	}

	l.logger.Debug().Int("remaining", remaining).Msg("ledger: credit consumed")
	return remaining, nil
}

// Balance returns the remaining credit count for display purposes.
func (l *Ledger) Balance(ctx context.Context, apiKey string) (int, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return 0, domain.ErrInvalidCredential
	}

	acc, err := l.credits.FindByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrInvalidCredential
		}
		return 0, err
	}
	return acc.RemainingCredits, nil
}
