package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/contentgecko/imagegecko/internal/domain"
	"github.com/contentgecko/imagegecko/internal/media"
)

type deleteAssetResponse struct {
	Success          bool `json:"success"`
	FeaturedRestored bool `json:"featured_restored"`
}

// DeleteAsset removes a generated asset, restoring the previous featured
// image when the deleted asset held that slot.
func (a *App) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "id")
	if assetID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "asset id required")
		return
	}

	restored, err := a.Media.Delete(r.Context(), assetID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "asset not found")
		case errors.Is(err, media.ErrNotGenerated):
			a.error(w, http.StatusBadRequest, "not_generated", "only system-generated assets can be deleted here")
		default:
			a.Logger.Error().Err(err).Str("asset_id", assetID).Msg("handlers: asset deletion failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to delete asset")
		}
		return
	}

	a.json(w, http.StatusOK, deleteAssetResponse{Success: true, FeaturedRestored: restored})
}
