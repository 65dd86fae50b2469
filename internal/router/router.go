package router

import (
	"net/http"

	"boxshop-api/internal/handler"
	"boxshop-api/internal/middleware"
	"boxshop-api/pkg/apierror"
	"boxshop-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	ShopHandler    *handler.ShopHandler
	AdminHandler   *handler.AdminHandler
	AuthMiddleware func(http.Handler) http.Handler
	AdminKey       string
	Limiter        *middleware.LimiterStore
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key", "X-Admin-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.NotFound(""))
	})

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// AUTHENTICATED routes (use Group to apply auth middleware only to these)
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}
		r.Use(middleware.RateLimit(cfg.Limiter))

		r.Route("/api/v1", func(r chi.Router) {
			// Health check endpoints
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			// Shop endpoints
			if cfg.ShopHandler != nil {
				r.Post("/purchases", cfg.ShopHandler.Purchase)
				r.Get("/stock", cfg.ShopHandler.GetStock)
				r.Get("/stock/{category}", cfg.ShopHandler.GetCategoryStock)
				r.Get("/actors/{actor}/quota", cfg.ShopHandler.GetQuota)
				r.Get("/gate", cfg.ShopHandler.GetGate)
			}

			// Admin endpoints
			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Use(middleware.RequireAdmin(cfg.AdminKey))
					r.Post("/restock", cfg.AdminHandler.Restock)
					r.Put("/gate", cfg.AdminHandler.SetGate)
					r.Post("/cooldowns/reset", cfg.AdminHandler.ResetCooldowns)
					r.Post("/orders/clear", cfg.AdminHandler.ClearOrders)
					r.Post("/display/refresh", cfg.AdminHandler.RefreshDisplay)
					r.Get("/stats", cfg.AdminHandler.GetStats)
				})
			}
		})
	})

	return r
}
