// Package media decides which of an item's assets count as originals and
// persists generated output without losing prior imagery. It is the only
// component that mutates an item's featured/gallery references.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/contentgecko/imagegecko/internal/domain"
	"github.com/contentgecko/imagegecko/internal/storage"
)

const maxDownloadBytes = 64 << 20

// ErrNotGenerated is returned when deletion is requested for an asset the
// service did not produce. Originals are never deleted through this path.
var ErrNotGenerated = errors.New("media: asset is not system-generated")

// Options tunes store behavior.
type Options struct {
	// SetFeatured controls whether a freshly generated asset is promoted to
	// the item's featured image. The previous featured image is preserved in
	// the gallery either way.
	SetFeatured bool
	HTTPClient  *http.Client
}

// Store composes asset metadata, binary storage, and catalog references.
type Store struct {
	catalog     domain.CatalogRepository
	assets      domain.AssetRepository
	files       *storage.FileStore
	httpClient  *http.Client
	setFeatured bool
	logger      zerolog.Logger
}

// NewStore constructs a media store.
func NewStore(catalog domain.CatalogRepository, assets domain.AssetRepository, files *storage.FileStore, opts Options, logger zerolog.Logger) *Store {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Store{
		catalog:     catalog,
		assets:      assets,
		files:       files,
		httpClient:  client,
		setFeatured: opts.SetFeatured,
		logger:      logger,
	}
}

// SelectSource picks the asset used as the stylistic basis for generation:
// the featured image when it qualifies, otherwise the first qualifying
// gallery asset. An asset qualifies only if it exists, is not flagged
// generated, and is absent from the item's generated history. The featured
// image is tried first so the "main" photo drives the result.
func (s *Store) SelectSource(ctx context.Context, item *domain.CatalogItem) (*domain.ImageAsset, error) {
	var candidates []string
	if item.FeaturedAssetID != nil {
		candidates = append(candidates, *item.FeaturedAssetID)
	}
	candidates = append(candidates, item.Gallery...)

	for _, id := range candidates {
		if item.HasGenerated(id) {
			continue
		}
		asset, err := s.assets.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if asset.Generated {
			continue
		}
		return asset, nil
	}

	return nil, domain.ErrNoEligibleSource
}

// ReadAsset loads the binary for an asset from the file store.
func (s *Store) ReadAsset(ctx context.Context, asset *domain.ImageAsset) ([]byte, error) {
	data, err := s.files.Read(ctx, asset.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAssetPersistence, err)
	}
	return data, nil
}

// PersistGenerated materializes the remote output, registers it as a
// generated asset, and rewires the item's image references in one catalog
// statement: the previous featured image is copied into the gallery, the new
// asset optionally becomes featured, joins the gallery, and is recorded in
// the generated history. Failures before the catalog update leave the item
// untouched; a failed catalog update unwinds the asset row and file.
func (s *Store) PersistGenerated(ctx context.Context, item *domain.CatalogItem, payload domain.GeneratedMedia) (*domain.ImageAsset, error) {
	data := payload.Data
	if len(data) == 0 && payload.SourceURL != "" {
		fetched, err := s.download(ctx, payload.SourceURL)
		if err != nil {
			return nil, err
		}
		data = fetched
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no image data to persist", domain.ErrAssetPersistence)
	}

	mime := payload.MIME
	if mime == "" {
		mime = "image/webp"
	}

	assetID := uuid.NewString()
	key, err := s.files.Write(ctx, fmt.Sprintf("items/%s/gen-%s%s", item.ID, assetID, extensionFor(mime)), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAssetPersistence, err)
	}

	now := time.Now().UTC()
	asset := &domain.ImageAsset{
		ID:          assetID,
		ItemID:      &item.ID,
		StorageKey:  key,
		MIME:        mime,
		Bytes:       int64(len(data)),
		Generated:   true,
		Prompt:      payload.Prompt,
		GeneratedAt: &now,
		CreatedAt:   now,
	}
	if err := s.assets.Create(ctx, asset); err != nil {
		s.discardFile(ctx, key)
		return nil, fmt.Errorf("%w: register asset: %v", domain.ErrAssetPersistence, err)
	}

	update := s.buildImageUpdate(item, assetID)
	if err := s.catalog.UpdateImages(ctx, item.ID, update); err != nil {
		if delErr := s.assets.Delete(ctx, assetID); delErr != nil {
			s.logger.Error().Err(delErr).Str("asset_id", assetID).Msg("media: orphaned asset row after failed catalog update")
		}
		s.discardFile(ctx, key)
		return nil, fmt.Errorf("%w: update item references: %v", domain.ErrAssetPersistence, err)
	}

	s.logger.Info().Str("item_id", item.ID).Str("asset_id", assetID).Int64("bytes", asset.Bytes).Msg("media: generated asset stored")
	return asset, nil
}

// Delete removes a generated asset. When the deleted asset was the featured
// image, source selection runs again over the pruned item and the result is
// restored as featured. Reports whether a featured image was restored.
func (s *Store) Delete(ctx context.Context, assetID string) (bool, error) {
	asset, err := s.assets.Get(ctx, assetID)
	if err != nil {
		return false, err
	}
	if !asset.Generated {
		return false, ErrNotGenerated
	}

	restored := false
	if asset.ItemID != nil {
		item, err := s.catalog.GetItem(ctx, *asset.ItemID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return false, err
		}
		if item != nil {
			pruned := pruneItem(item, assetID)
			wasFeatured := item.FeaturedAssetID != nil && *item.FeaturedAssetID == assetID
			if wasFeatured {
				if source, err := s.SelectSource(ctx, pruned); err == nil {
					pruned.FeaturedAssetID = &source.ID
					restored = true
				} else if !errors.Is(err, domain.ErrNoEligibleSource) {
					return false, err
				}
			}
			update := domain.ItemImageUpdate{
				FeaturedAssetID:   pruned.FeaturedAssetID,
				Gallery:           pruned.Gallery,
				GeneratedAssetIDs: pruned.GeneratedAssetIDs,
				LastGeneratedID:   pruned.LastGeneratedID,
			}
			if err := s.catalog.UpdateImages(ctx, item.ID, update); err != nil {
				return false, err
			}
		}
	}

	if err := s.assets.Delete(ctx, assetID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return restored, err
	}
	s.discardFile(ctx, asset.StorageKey)

	s.logger.Info().Str("asset_id", assetID).Bool("featured_restored", restored).Msg("media: generated asset deleted")
	return restored, nil
}

// buildImageUpdate computes the post-generation image references. The order
// matters: preserve the old featured image before anything else changes.
func (s *Store) buildImageUpdate(item *domain.CatalogItem, newAssetID string) domain.ItemImageUpdate {
	gallery := append([]string(nil), item.Gallery...)
	if item.FeaturedAssetID != nil && !containsID(gallery, *item.FeaturedAssetID) {
		gallery = append(gallery, *item.FeaturedAssetID)
	}
	if !containsID(gallery, newAssetID) {
		gallery = append(gallery, newAssetID)
	}

	featured := item.FeaturedAssetID
	if s.setFeatured {
		featured = &newAssetID
	}

	generated := append([]string(nil), item.GeneratedAssetIDs...)
	if !containsID(generated, newAssetID) {
		generated = append(generated, newAssetID)
	}

	return domain.ItemImageUpdate{
		FeaturedAssetID:   featured,
		Gallery:           gallery,
		GeneratedAssetIDs: generated,
		LastGeneratedID:   &newAssetID,
	}
}

func pruneItem(item *domain.CatalogItem, assetID string) *domain.CatalogItem {
	pruned := *item
	pruned.Gallery = removeID(item.Gallery, assetID)
	pruned.GeneratedAssetIDs = removeID(item.GeneratedAssetIDs, assetID)
	if pruned.FeaturedAssetID != nil && *pruned.FeaturedAssetID == assetID {
		pruned.FeaturedAssetID = nil
	}
	if pruned.LastGeneratedID != nil && *pruned.LastGeneratedID == assetID {
		pruned.LastGeneratedID = nil
	}
	return &pruned
}

func (s *Store) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAssetPersistence, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download image: %v", domain.ErrAssetPersistence, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: download image: HTTP %d", domain.ErrAssetPersistence, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: download image: %v", domain.ErrAssetPersistence, err)
	}
	return data, nil
}

func (s *Store) discardFile(ctx context.Context, key string) {
	if err := s.files.Remove(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("media: failed to remove stored file")
	}
}

func extensionFor(mime string) string {
	switch mime {
	case "image/webp":
		return ".webp"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	default:
		return ".img"
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
