package domain

import "context"

// CatalogRepository defines read access to items plus the single-statement
// image reference update used by the media store.
type CatalogRepository interface {
	GetItem(ctx context.Context, id string) (*CatalogItem, error)
	ListSummaries(ctx context.Context, ids []string) ([]ItemSummary, error)
	ListPublishedIDs(ctx context.Context) ([]string, error)
	ListIDsByCategories(ctx context.Context, categoryIDs []string) ([]string, error)
	UpdateImages(ctx context.Context, itemID string, update ItemImageUpdate) error
}

// AssetRepository handles persistence for image asset metadata.
type AssetRepository interface {
	Get(ctx context.Context, id string) (*ImageAsset, error)
	Create(ctx context.Context, asset *ImageAsset) error
	Delete(ctx context.Context, id string) error
}

// CreditRepository backs the credit ledger. ChargeOne must be an atomic
// conditional decrement: it either consumes one credit and returns the
// post-charge balance, or fails without mutating the account.
type CreditRepository interface {
	FindByAPIKey(ctx context.Context, apiKey string) (*CreditAccount, error)
	ChargeOne(ctx context.Context, apiKey string) (int, error)
}

// StatusRepository persists the per-item progress row.
type StatusRepository interface {
	Get(ctx context.Context, itemID string) (*ItemGenerationStatus, error)
	Upsert(ctx context.Context, status *ItemGenerationStatus) error
}
