package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/api/middleware"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/handlers"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, adminSecret string) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024)) // 64KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - the diagnostic surface is read from internal dashboards
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Admin-Secret"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	auth := middleware.NewAuthorizer(adminSecret)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	// Worker invocation: the push scheduler's event signature is verified
	// upstream, before jobs are admitted
	r.Post("/worker", h.Dispatch)

	// Diagnostic and administrative routes (require the shared secret)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSecret)

		r.Post("/jobs", h.Enqueue)
		r.Get("/jobs", h.ListWaiting)
		r.Post("/jobs/inject", h.Inject)
		r.Get("/diag/inspect", h.Inspect)
		r.Get("/diag/validate", h.Validate)
		r.Get("/diag/deliveries", h.Deliveries)
		r.Post("/admin", h.Admin)
	})

	return r
}
