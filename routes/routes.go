package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/llm-cascade/app"
	"github.com/upb/llm-cascade/handlers"
	"github.com/upb/llm-cascade/middleware"
	"github.com/upb/llm-cascade/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)

	// Covers the whole cascade, not a single provider call
	if cfg.Server.WriteTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.WriteTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var attemptLog handlers.AttemptLogStats
	if deps.AttemptLogger != nil {
		attemptLog = deps.AttemptLogger
	}
	health := handlers.NewHealthHandler(deps.SQLDB(), attemptLog, deps.Catalog, cfg.Credentials, deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	chat := handlers.NewChatHandler(deps.Cascade, cfg.Credentials, deps.Logger)
	providerList := handlers.NewProvidersHandler(deps.Catalog, cfg.Credentials, deps.Metrics, deps.Logger)
	attempts := handlers.NewAttemptsHandler(deps.Attempts, deps.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		if deps.AuthMiddleware != nil {
			r.Use(deps.AuthMiddleware.RequireAuth)
		}

		r.Post("/chat", chat.HandleChat)
		r.Get("/providers", providerList.HandleList)

		r.Get("/attempts", attempts.HandleList)
		r.Get("/cascades/{id}/attempts", attempts.HandleByCascade)
		r.Get("/requests/{id}/attempts", attempts.HandleByRequest)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
