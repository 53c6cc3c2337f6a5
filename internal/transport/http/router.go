package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/streamsaavy/streamsaavy-go/internal/config"
	"github.com/streamsaavy/streamsaavy-go/internal/transport/http/middleware"
)

// RateLimiters holds the limiters for the two endpoint classes: writes are
// throttled hard, status polling stays permissive.
type RateLimiters struct {
	Download *middleware.RateLimiter
	Status   *middleware.RateLimiter
}

// NewRouter creates a chi router with all routes and middleware configured.
func NewRouter(cfg *config.Config, handlers *Handlers, limiters *RateLimiters) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(chimiddleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/api/health", handlers.HealthHandler)

	r.Route("/api", func(r chi.Router) {
		// Read endpoints: polled by UIs, so the limit stays loose.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(limiters.Status))
			r.Get("/status", handlers.StatusHandler)
			r.Get("/modes", handlers.ModesHandler)
			r.Get("/jobs", handlers.JobsHandler)
			r.Get("/jobs/{job_id}", handlers.JobHandler)
		})

		// Write endpoints and the probe, which invokes the engine.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(limiters.Download))
			r.Post("/download", handlers.DownloadHandler)
			r.Post("/cancel", handlers.CancelHandler)
			r.Get("/probe", handlers.ProbeHandler)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND", "")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED", "")
	})

	return r
}

// NewServer creates an HTTP server with timeouts suited to a polling API.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
