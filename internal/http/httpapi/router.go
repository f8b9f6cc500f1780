package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/contentgecko/imagegecko/internal/http/handlers"
	"github.com/contentgecko/imagegecko/internal/infra"
	"github.com/contentgecko/imagegecko/internal/middleware"
)

// NewRouter assembles the service routes. The generation control surface is
// admin-only and rate limited; health and static assets are public.
func NewRouter(app *handlers.App, cfg *infra.Config) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(app.Logger))

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.AdminToken))
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))

		r.Route("/v1/generation", func(r chi.Router) {
			r.Post("/start", app.StartRun)
			r.Post("/run", app.RunBatch)
			r.Post("/items/{id}", app.ProcessItem)
		})

		r.Get("/v1/items/{id}/status", app.ItemStatus)
		r.Get("/v1/credits", app.Credits)
		r.Delete("/v1/assets/{id}", app.DeleteAsset)
	})

	if cfg.StoragePath != "" {
		fs := stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.Dir(cfg.StoragePath)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
