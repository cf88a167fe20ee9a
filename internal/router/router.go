package router

import (
	"net/http"

	"tradehub-rest-api/internal/handler"
	"tradehub-rest-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler            *handler.Handler
	UserHandler        *handler.UserHandler
	TransactionHandler *handler.TransactionHandler
	AdminHandler       *handler.AdminHandler
	AuthMiddleware     func(http.Handler) http.Handler
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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// AUTHENTICATED routes
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			if cfg.UserHandler != nil {
				r.Route("/users", func(r chi.Router) {
					r.Post("/", cfg.UserHandler.Register)
					r.Get("/", cfg.UserHandler.ByCity)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", cfg.UserHandler.Get)
						r.Get("/transactions", cfg.UserHandler.CurrentTransactions)
						r.Get("/history", cfg.UserHandler.History)
						r.Get("/holdings", cfg.UserHandler.Holdings)
						r.Get("/thresholds", cfg.UserHandler.Thresholds)
						r.Put("/thresholds", cfg.UserHandler.ChangeThreshold)
						r.Put("/password", cfg.UserHandler.ChangePassword)
						r.Post("/items", cfg.UserHandler.RegisterItem)
						r.Put("/items/{item_id}", cfg.UserHandler.AddItem)
						r.Delete("/items/{item_id}", cfg.UserHandler.RemoveItem)
					})
				})
			}

			if cfg.TransactionHandler != nil {
				r.Route("/transactions", func(r chi.Router) {
					r.Post("/", cfg.TransactionHandler.Create)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", cfg.TransactionHandler.Get)
						r.Delete("/", cfg.TransactionHandler.Remove)
						r.Put("/meetings/{n}", cfg.TransactionHandler.EditMeeting)
						r.Post("/actions", cfg.TransactionHandler.Action)
					})
				})
			}

			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Get("/flagged", cfg.AdminHandler.Flagged)
					r.Get("/frozen", cfg.AdminHandler.Frozen)
					r.Get("/stats", cfg.AdminHandler.Stats)
					r.Post("/users/{id}/freeze", cfg.AdminHandler.Freeze)
					r.Post("/users/{id}/unfreeze", cfg.AdminHandler.Unfreeze)
					r.Post("/users/{id}/vacation", cfg.AdminHandler.Vacation)
				})
			}
		})
	})

	return r
}
