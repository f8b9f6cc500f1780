package generation

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/contentgecko/imagegecko/internal/domain"
	"github.com/contentgecko/imagegecko/internal/ledger"
	"github.com/contentgecko/imagegecko/internal/media"
	"github.com/contentgecko/imagegecko/internal/providers/genimage"
	"github.com/contentgecko/imagegecko/internal/storage"
	"github.com/contentgecko/imagegecko/internal/targeting"
	"github.com/contentgecko/imagegecko/internal/tracker"
)

type memCatalog struct {
	mu    sync.Mutex
	items map[string]*domain.CatalogItem
}

func (c *memCatalog) GetItem(_ context.Context, id string) (*domain.CatalogItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (c *memCatalog) ListSummaries(_ context.Context, ids []string) ([]domain.ItemSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.ItemSummary
	for _, id := range ids {
		if item, ok := c.items[id]; ok {
			out = append(out, domain.ItemSummary{ID: item.ID, Label: item.Label})
		}
	}
	return out, nil
}

func (c *memCatalog) ListPublishedIDs(context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for id, item := range c.items {
		if item.Visibility == domain.ItemPublished {
			out = append(out, id)
		}
	}
	return out, nil
}

func (c *memCatalog) ListIDsByCategories(context.Context, []string) ([]string, error) {
	return nil, nil
}

func (c *memCatalog) UpdateImages(_ context.Context, itemID string, update domain.ItemImageUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[itemID]
	if !ok {
		return domain.ErrNotFound
	}
	item.FeaturedAssetID = update.FeaturedAssetID
	item.Gallery = update.Gallery
	item.GeneratedAssetIDs = update.GeneratedAssetIDs
	item.LastGeneratedID = update.LastGeneratedID
	return nil
}

type memAssets struct {
	mu     sync.Mutex
	assets map[string]*domain.ImageAsset
}

func (a *memAssets) Get(_ context.Context, id string) (*domain.ImageAsset, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	asset, ok := a.assets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *asset
	return &copied, nil
}

func (a *memAssets) Create(_ context.Context, asset *domain.ImageAsset) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	copied := *asset
	a.assets[asset.ID] = &copied
	return nil
}

func (a *memAssets) Delete(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.assets, id)
	return nil
}

type memCredits struct {
	mu       sync.Mutex
	accounts map[string]int
}

func (c *memCredits) FindByAPIKey(_ context.Context, apiKey string) (*domain.CreditAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	balance, ok := c.accounts[apiKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.CreditAccount{APIKey: apiKey, RemainingCredits: balance}, nil
}

func (c *memCredits) ChargeOne(_ context.Context, apiKey string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	balance, ok := c.accounts[apiKey]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if balance <= 0 {
		return 0, domain.ErrInsufficientCredit
	}
	c.accounts[apiKey] = balance - 1
	return balance - 1, nil
}

type memStatuses struct {
	mu   sync.Mutex
	rows map[string]*domain.ItemGenerationStatus
}

func (s *memStatuses) Get(_ context.Context, itemID string) (*domain.ItemGenerationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[itemID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (s *memStatuses) Upsert(_ context.Context, status *domain.ItemGenerationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *status
	s.rows[status.ItemID] = &copied
	return nil
}

type stubRemote struct {
	mu     sync.Mutex
	calls  int
	result *genimage.Result
	err    error
}

func (r *stubRemote) Generate(context.Context, genimage.Request) (*genimage.Result, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func (r *stubRemote) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type pipeline struct {
	orch     *Orchestrator
	catalog  *memCatalog
	assets   *memAssets
	credits  *memCredits
	statuses *memStatuses
	remote   *stubRemote
}

func newPipeline(t *testing.T, credits int, settings Settings, remote *stubRemote) *pipeline {
	t.Helper()

	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := files.Write(context.Background(), "src.jpg", []byte("source image bytes")); err != nil {
		t.Fatalf("seed source file: %v", err)
	}

	src := "src"
	catalog := &memCatalog{items: map[string]*domain.CatalogItem{
		"item-1": {
			ID:              "item-1",
			SKU:             "SKU-1",
			Label:           "test widget",
			Visibility:      domain.ItemPublished,
			FeaturedAssetID: &src,
		},
	}}
	assets := &memAssets{assets: map[string]*domain.ImageAsset{
		"src": {ID: "src", StorageKey: "src.jpg", MIME: "image/jpeg"},
	}}
	creditRepo := &memCredits{accounts: map[string]int{"sk-test": credits}}
	statuses := &memStatuses{rows: map[string]*domain.ItemGenerationStatus{}}

	if remote == nil {
		remote = &stubRemote{result: &genimage.Result{Data: []byte("generated"), MIME: "image/webp"}}
	}

	log := zerolog.Nop()
	mediaStore := media.NewStore(catalog, assets, files, media.Options{SetFeatured: true, HTTPClient: &http.Client{}}, log)
	orch := NewOrchestrator(
		catalog,
		mediaStore,
		remote,
		ledger.New(creditRepo, log),
		targeting.NewResolver(catalog, log),
		tracker.New(statuses, log),
		settings,
		log,
	)

	return &pipeline{orch: orch, catalog: catalog, assets: assets, credits: creditRepo, statuses: statuses, remote: remote}
}

func defaultSettings() Settings {
	return Settings{APIKey: "sk-test", DefaultPrompt: "Studio shot"}
}

func (p *pipeline) status(t *testing.T, itemID string) *domain.ItemGenerationStatus {
	t.Helper()
	row, err := p.statuses.Get(context.Background(), itemID)
	if err != nil {
		t.Fatalf("status for %s: %v", itemID, err)
	}
	return row
}

func TestGenerateNowCompletes(t *testing.T) {
	p := newPipeline(t, 1, defaultSettings(), nil)

	out := p.orch.GenerateNow(context.Background(), "item-1", Overrides{Force: true})
	if out.Status != domain.StateCompleted {
		t.Fatalf("status = %s (%s)", out.Status, out.Message)
	}
	if out.Message != "Item enhanced successfully." {
		t.Fatalf("message = %q", out.Message)
	}
	if out.AssetID == nil {
		t.Fatal("no asset id on completed outcome")
	}
	if out.RemainingCredits == nil || *out.RemainingCredits != 0 {
		t.Fatalf("remaining = %v, want 0", out.RemainingCredits)
	}
	if p.remote.callCount() != 1 {
		t.Fatalf("remote calls = %d", p.remote.callCount())
	}

	item, _ := p.catalog.GetItem(context.Background(), "item-1")
	if item.FeaturedAssetID == nil || *item.FeaturedAssetID != *out.AssetID {
		t.Fatalf("featured = %v, want %s", item.FeaturedAssetID, *out.AssetID)
	}
	if !item.HasGenerated(*out.AssetID) {
		t.Fatal("generated history not recorded")
	}

	if st := p.status(t, "item-1"); st.State != domain.StateCompleted {
		t.Fatalf("tracked state = %s", st.State)
	}
}

// One credit, two attempts: the first completes, the second fails at the
// charge with the exhaustion message. The remote succeeds both times; only
// successful attempts are billed.
func TestGenerateNowSingleCreditExhaustion(t *testing.T) {
	p := newPipeline(t, 1, defaultSettings(), nil)

	first := p.orch.GenerateNow(context.Background(), "item-1", Overrides{Force: true})
	if first.Status != domain.StateCompleted {
		t.Fatalf("first status = %s (%s)", first.Status, first.Message)
	}

	second := p.orch.GenerateNow(context.Background(), "item-1", Overrides{Force: true})
	if second.Status != domain.StateFailed {
		t.Fatalf("second status = %s", second.Status)
	}
	if second.Message != "Generation credits exhausted; top up to continue." {
		t.Fatalf("second message = %q", second.Message)
	}

	// The failed attempt persisted nothing: only the first generated asset
	// plus the original are present.
	p.assets.mu.Lock()
	count := len(p.assets.assets)
	p.assets.mu.Unlock()
	if count != 2 {
		t.Fatalf("asset count = %d, want 2", count)
	}
}

func TestGenerateNowBlockedWithoutKey(t *testing.T) {
	settings := defaultSettings()
	settings.APIKey = ""
	p := newPipeline(t, 1, settings, nil)

	out := p.orch.GenerateNow(context.Background(), "item-1", Overrides{Force: true})
	if out.Status != domain.StateBlocked {
		t.Fatalf("status = %s", out.Status)
	}
	if p.remote.callCount() != 0 {
		t.Fatal("remote called despite missing key")
	}
	if st := p.status(t, "item-1"); st.State != domain.StateBlocked {
		t.Fatalf("tracked state = %s", st.State)
	}
}

func TestGenerateNowSkippedByTargeting(t *testing.T) {
	settings := defaultSettings()
	settings.Targeting = targeting.Config{ItemIDs: []string{"other-item"}}
	p := newPipeline(t, 1, settings, nil)

	out := p.orch.GenerateNow(context.Background(), "item-1", Overrides{})
	if out.Status != domain.StateSkipped {
		t.Fatalf("status = %s", out.Status)
	}
	if p.remote.callCount() != 0 {
		t.Fatal("remote called for skipped item")
	}
	if balance, _ := p.credits.FindByAPIKey(context.Background(), "sk-test"); balance.RemainingCredits != 1 {
		t.Fatalf("ledger touched for skipped item: %d", balance.RemainingCredits)
	}
}

func TestGenerateNowForceBypassesTargeting(t *testing.T) {
	settings := defaultSettings()
	settings.Targeting = targeting.Config{ItemIDs: []string{"other-item"}}
	p := newPipeline(t, 1, settings, nil)

	out := p.orch.GenerateNow(context.Background(), "item-1", Overrides{Force: true})
	if out.Status != domain.StateCompleted {
		t.Fatalf("status = %s (%s)", out.Status, out.Message)
	}
}

func TestGenerateNowRemoteRejection(t *testing.T) {
	remote := &stubRemote{err: &genimage.RejectionError{Code: 402, Message: "quota exceeded"}}
	p := newPipeline(t, 1, defaultSettings(), remote)

	out := p.orch.GenerateNow(context.Background(), "item-1", Overrides{Force: true})
	if out.Status != domain.StateFailed {
		t.Fatalf("status = %s", out.Status)
	}
	if out.Message != "quota exceeded" {
		t.Fatalf("message = %q, want %q", out.Message, "quota exceeded")
	}
	// A failed remote call costs nothing.
	if balance, _ := p.credits.FindByAPIKey(context.Background(), "sk-test"); balance.RemainingCredits != 1 {
		t.Fatalf("ledger charged for failed call: %d", balance.RemainingCredits)
	}
	if st := p.status(t, "item-1"); st.State != domain.StateFailed || st.Message != "quota exceeded" {
		t.Fatalf("tracked = %s %q", st.State, st.Message)
	}
}

func TestGenerateNowUnknownItem(t *testing.T) {
	p := newPipeline(t, 1, defaultSettings(), nil)

	out := p.orch.GenerateNow(context.Background(), "ghost", Overrides{Force: true})
	if out.Status != domain.StateFailed {
		t.Fatalf("status = %s", out.Status)
	}
	if out.Message != "Unknown catalog item." {
		t.Fatalf("message = %q", out.Message)
	}
}

func TestGenerateNowNoSource(t *testing.T) {
	p := newPipeline(t, 1, defaultSettings(), nil)
	p.catalog.items["bare"] = &domain.CatalogItem{ID: "bare", Visibility: domain.ItemPublished}

	out := p.orch.GenerateNow(context.Background(), "bare", Overrides{Force: true})
	if out.Status != domain.StateFailed {
		t.Fatalf("status = %s", out.Status)
	}
	if out.Message != "Item has no original image to work from." {
		t.Fatalf("message = %q", out.Message)
	}
	if p.remote.callCount() != 0 {
		t.Fatal("remote called without a source image")
	}
}

func TestGenerateNowEmptyID(t *testing.T) {
	p := newPipeline(t, 1, defaultSettings(), nil)

	out := p.orch.GenerateNow(context.Background(), "  ", Overrides{Force: true})
	if out.Status != domain.StateFailed {
		t.Fatalf("status = %s", out.Status)
	}
}

func TestStartRunSeedsQueuedStatuses(t *testing.T) {
	p := newPipeline(t, 1, defaultSettings(), nil)

	summaries, err := p.orch.StartRun(context.Background())
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "item-1" {
		t.Fatalf("summaries = %+v", summaries)
	}
	if summaries[0].Label != "test widget" {
		t.Fatalf("label = %q", summaries[0].Label)
	}
	if st := p.status(t, "item-1"); st.State != domain.StateQueued {
		t.Fatalf("tracked state = %s", st.State)
	}
}

func TestStartRunDropsUnknownIDs(t *testing.T) {
	settings := defaultSettings()
	settings.Targeting = targeting.Config{ItemIDs: []string{"item-1", "ghost"}}
	p := newPipeline(t, 1, settings, nil)

	summaries, err := p.orch.StartRun(context.Background())
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "item-1" {
		t.Fatalf("summaries = %+v", summaries)
	}
	if _, err := p.statuses.Get(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ghost status err = %v", err)
	}
}
