package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contentgecko/imagegecko/internal/domain"
)

// AssetRepositoryPG implements domain.AssetRepository using PostgreSQL.
type AssetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAssetRepository constructs a new asset repository instance.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepositoryPG {
	return &AssetRepositoryPG{pool: pool}
}

// Get fetches a single asset by id.
func (r *AssetRepositoryPG) Get(ctx context.Context, id string) (*domain.ImageAsset, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, item_id, storage_key, mime, bytes, generated, prompt, generated_at, created_at
FROM image_assets
WHERE id = $1::uuid;
`, id)

	var asset domain.ImageAsset
	err := row.Scan(
		&asset.ID,
		&asset.ItemID,
		&asset.StorageKey,
		&asset.MIME,
		&asset.Bytes,
		&asset.Generated,
		&asset.Prompt,
		&asset.GeneratedAt,
		&asset.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// Create persists a new asset row.
func (r *AssetRepositoryPG) Create(ctx context.Context, asset *domain.ImageAsset) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO image_assets (id, item_id, storage_key, mime, bytes, generated, prompt, generated_at)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8);
`, asset.ID, asset.ItemID, asset.StorageKey, asset.MIME, asset.Bytes, asset.Generated, asset.Prompt, asset.GeneratedAt)
	return err
}

// Delete removes an asset row.
func (r *AssetRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM image_assets WHERE id = $1::uuid;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.AssetRepository = (*AssetRepositoryPG)(nil)
