package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contentgecko/imagegecko/internal/domain"
)

// CatalogRepositoryPG implements domain.CatalogRepository using PostgreSQL.
type CatalogRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository constructs a new catalog repository instance.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepositoryPG {
	return &CatalogRepositoryPG{pool: pool}
}

const itemColumns = `id, sku, label, visibility, featured_asset_id, gallery, category_ids, generated_asset_ids, last_generated_asset_id, created_at, updated_at`

// GetItem fetches a catalog item by id.
func (r *CatalogRepositoryPG) GetItem(ctx context.Context, id string) (*domain.CatalogItem, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+itemColumns+`
FROM catalog_items
WHERE id = $1::uuid;
`, id)
	return scanItem(row)
}

// ListSummaries returns id/label pairs for the given item ids.
func (r *CatalogRepositoryPG) ListSummaries(ctx context.Context, ids []string) ([]domain.ItemSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, label
FROM catalog_items
WHERE id = ANY($1::uuid[]);
`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.ItemSummary
	for rows.Next() {
		var s domain.ItemSummary
		if err := rows.Scan(&s.ID, &s.Label); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// ListPublishedIDs returns every published item id in insertion order.
func (r *CatalogRepositoryPG) ListPublishedIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id
FROM catalog_items
WHERE visibility = 'published'
ORDER BY created_at ASC;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ListIDsByCategories returns published items belonging to any of the given
// categories.
func (r *CatalogRepositoryPG) ListIDsByCategories(ctx context.Context, categoryIDs []string) ([]string, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id
FROM catalog_items
WHERE visibility = 'published'
  AND category_ids && $1::text[]
ORDER BY created_at ASC;
`, categoryIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// UpdateImages replaces the item's image references in one statement so that
// concurrent readers never observe a half-applied update.
func (r *CatalogRepositoryPG) UpdateImages(ctx context.Context, itemID string, update domain.ItemImageUpdate) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE catalog_items
SET featured_asset_id = $2::uuid,
    gallery = $3::text[],
    generated_asset_ids = $4::text[],
    last_generated_asset_id = $5::uuid,
    updated_at = NOW()
WHERE id = $1::uuid;
`, itemID, update.FeaturedAssetID, update.Gallery, update.GeneratedAssetIDs, update.LastGeneratedID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (*domain.CatalogItem, error) {
	var item domain.CatalogItem
	err := row.Scan(
		&item.ID,
		&item.SKU,
		&item.Label,
		&item.Visibility,
		&item.FeaturedAssetID,
		&item.Gallery,
		&item.CategoryIDs,
		&item.GeneratedAssetIDs,
		&item.LastGeneratedID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ domain.CatalogRepository = (*CatalogRepositoryPG)(nil)
