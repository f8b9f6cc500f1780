package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contentgecko/imagegecko/internal/domain"
)

// CreditRepositoryPG implements domain.CreditRepository using PostgreSQL.
type CreditRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCreditRepository constructs a new credit repository instance.
func NewCreditRepository(pool *pgxpool.Pool) *CreditRepositoryPG {
	return &CreditRepositoryPG{pool: pool}
}

// FindByAPIKey resolves a credit account by its API key.
func (r *CreditRepositoryPG) FindByAPIKey(ctx context.Context, apiKey string) (*domain.CreditAccount, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, api_key, email, remaining_credits, created_at, updated_at
FROM credit_accounts
WHERE api_key = $1;
`, apiKey)

	var acc domain.CreditAccount
	err := row.Scan(&acc.ID, &acc.APIKey, &acc.Email, &acc.RemainingCredits, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// ChargeOne consumes one credit in a single conditional UPDATE. Concurrent
// charges against the same key serialize on the row, so with R credits and
// K >= R attempts exactly R succeed and the balance never goes below zero.
func (r *CreditRepositoryPG) ChargeOne(ctx context.Context, apiKey string) (int, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE credit_accounts
SET remaining_credits = remaining_credits - 1,
    updated_at = NOW()
WHERE api_key = $1
  AND remaining_credits > 0
RETURNING remaining_credits;
`, apiKey)

	var remaining int
	if err := row.Scan(&remaining); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
		// No row matched: either the key is unknown or the balance hit zero.
		if _, lookupErr := r.FindByAPIKey(ctx, apiKey); lookupErr != nil {
			return 0, lookupErr
		}
		return 0, domain.ErrInsufficientCredit
	}
	return remaining, nil
}

var _ domain.CreditRepository = (*CreditRepositoryPG)(nil)
