package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contentgecko/imagegecko/internal/domain"
)

// StatusRepositoryPG implements domain.StatusRepository using PostgreSQL.
type StatusRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewStatusRepository constructs a new status repository instance.
func NewStatusRepository(pool *pgxpool.Pool) *StatusRepositoryPG {
	return &StatusRepositoryPG{pool: pool}
}

// Get returns the current progress row for an item.
func (r *StatusRepositoryPG) Get(ctx context.Context, itemID string) (*domain.ItemGenerationStatus, error) {
	row := r.pool.QueryRow(ctx, `
SELECT item_id, state, message, asset_id, updated_at
FROM item_generation_status
WHERE item_id = $1::uuid;
`, itemID)

	var st domain.ItemGenerationStatus
	err := row.Scan(&st.ItemID, &st.State, &st.Message, &st.AssetID, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

// Upsert overwrites the item's progress row. Last write wins.
func (r *StatusRepositoryPG) Upsert(ctx context.Context, status *domain.ItemGenerationStatus) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO item_generation_status (item_id, state, message, asset_id, updated_at)
VALUES ($1::uuid, $2, $3, $4::uuid, NOW())
ON CONFLICT (item_id) DO UPDATE
SET state = EXCLUDED.state,
    message = EXCLUDED.message,
    asset_id = EXCLUDED.asset_id,
    updated_at = NOW();
`, status.ItemID, status.State, status.Message, status.AssetID)
	return err
}

var _ domain.StatusRepository = (*StatusRepositoryPG)(nil)
