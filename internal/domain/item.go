package domain

import "time"

// ItemVisibility enumerates catalog publication states.
type ItemVisibility string

const (
	ItemPublished ItemVisibility = "published"
	ItemDraft     ItemVisibility = "draft"
)

// CatalogItem is a product whose imagery the service enhances. The catalog is
// the system of record for everything here; the generation pipeline only reads
// identifiers and images and writes image references back.
type CatalogItem struct {
	ID              string
	SKU             string
	Label           string
	Visibility      ItemVisibility
	FeaturedAssetID *string
	// Gallery holds asset ids in display order.
	Gallery     []string
	CategoryIDs []string
	// GeneratedAssetIDs records every asset this service produced for the
	// item. Source selection consults it so a generated image is never fed
	// back into the mediator.
	GeneratedAssetIDs []string
	LastGeneratedID   *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasGenerated reports whether the given asset id is in the item's generated
// history.
func (i *CatalogItem) HasGenerated(assetID string) bool {
	for _, id := range i.GeneratedAssetIDs {
		if id == assetID {
			return true
		}
	}
	return false
}

// ItemImageUpdate describes a full replacement of an item's image references.
// Repositories apply it as a single statement so readers never observe a
// partially updated item.
type ItemImageUpdate struct {
	FeaturedAssetID   *string
	Gallery           []string
	GeneratedAssetIDs []string
	LastGeneratedID   *string
}

// ItemSummary is the projection returned when enumerating a run.
type ItemSummary struct {
	ID    string
	Label string
}
