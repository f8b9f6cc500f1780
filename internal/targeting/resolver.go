// Package targeting computes which catalog items a generation run covers.
package targeting

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/contentgecko/imagegecko/internal/domain"
)

// Config captures the targeting rules for a run: an explicit item allow-list
// and a set of category ids. Both empty means "all published items".
type Config struct {
	ItemIDs     []string
	CategoryIDs []string
}

// Empty reports whether no targeting rules are configured.
func (c Config) Empty() bool {
	return len(c.ItemIDs) == 0 && len(c.CategoryIDs) == 0
}

// Resolver expands a targeting config into a concrete item id list.
type Resolver struct {
	catalog domain.CatalogRepository
	logger  zerolog.Logger
}

// NewResolver constructs a Resolver over the catalog repository.
func NewResolver(catalog domain.CatalogRepository, logger zerolog.Logger) *Resolver {
	return &Resolver{catalog: catalog, logger: logger}
}

// Resolve returns the union of the explicit allow-list and all published
// members of the configured categories, deduplicated in first-seen order.
// When the union is empty it falls back to every published item so that an
// unconfigured run still does something bounded.
func (r *Resolver) Resolve(ctx context.Context, cfg Config) ([]string, error) {
	ids := append([]string(nil), cfg.ItemIDs...)

	if len(cfg.CategoryIDs) > 0 {
		fromCategories, err := r.catalog.ListIDsByCategories(ctx, cfg.CategoryIDs)
		if err != nil {
			return nil, err
		}
		ids = append(ids, fromCategories...)
	}

	if len(ids) == 0 {
		r.logger.Warn().Msg("targeting: no rules configured, falling back to all published items")
		all, err := r.catalog.ListPublishedIDs(ctx)
		if err != nil {
			return nil, err
		}
		ids = all
	}

	return dedupe(ids), nil
}

// ShouldProcess applies the per-item eligibility rule: an explicit allow-list
// excludes items outside it, and configured categories require membership in
// at least one. An empty config accepts everything.
func (r *Resolver) ShouldProcess(item *domain.CatalogItem, cfg Config) bool {
	if len(cfg.ItemIDs) > 0 && !contains(cfg.ItemIDs, item.ID) {
		return false
	}
	if len(cfg.CategoryIDs) == 0 {
		return true
	}
	for _, cat := range item.CategoryIDs {
		if contains(cfg.CategoryIDs, cat) {
			return true
		}
	}
	return false
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
