package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/contentgecko/imagegecko/internal/adapter/repo"
	"github.com/contentgecko/imagegecko/internal/database"
	"github.com/contentgecko/imagegecko/internal/generation"
	"github.com/contentgecko/imagegecko/internal/http/handlers"
	"github.com/contentgecko/imagegecko/internal/http/httpapi"
	"github.com/contentgecko/imagegecko/internal/infra"
	"github.com/contentgecko/imagegecko/internal/ledger"
	"github.com/contentgecko/imagegecko/internal/media"
	"github.com/contentgecko/imagegecko/internal/providers/genimage"
	"github.com/contentgecko/imagegecko/internal/storage"
	"github.com/contentgecko/imagegecko/internal/targeting"
	"github.com/contentgecko/imagegecko/internal/tracker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	if err := database.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	catalogRepo := repo.NewCatalogRepository(pool)
	assetRepo := repo.NewAssetRepository(pool)
	creditRepo := repo.NewCreditRepository(pool)
	statusRepo := repo.NewStatusRepository(pool)

	creditLedger := ledger.New(creditRepo, logger)
	statusTracker := tracker.New(statusRepo, logger)
	resolver := targeting.NewResolver(catalogRepo, logger)
	mediaStore := media.NewStore(catalogRepo, assetRepo, fileStore, media.Options{SetFeatured: cfg.SetFeatured}, logger)

	remote := genimage.NewClient(genimage.Options{
		BaseURL: cfg.GeckoBaseURL,
		APIKey:  cfg.GeckoAPIKey,
		Timeout: cfg.GeckoTimeout,
		Logger:  logger,
	})

	if cfg.GeckoAPIKey == "" {
		logger.Warn().Msg("GECKO_API_KEY not set; generation requests will be blocked")
	}

	orch := generation.NewOrchestrator(
		catalogRepo,
		mediaStore,
		remote,
		creditLedger,
		resolver,
		statusTracker,
		generation.Settings{
			APIKey:        cfg.GeckoAPIKey,
			DefaultPrompt: cfg.DefaultPrompt,
			Targeting: targeting.Config{
				ItemIDs:     cfg.TargetItemIDs,
				CategoryIDs: cfg.TargetCategories,
			},
		},
		logger,
	)

	app := handlers.NewApp(orch, mediaStore, creditLedger, statusTracker, cfg.GeckoAPIKey, cfg.WaveSize, logger)
	router := httpapi.NewRouter(app, cfg)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
