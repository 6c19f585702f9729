package api

import (
	"driver-schedule-service/internal/api/handlers"
	"driver-schedule-service/internal/metrics"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Service handlers.ScheduleService
	// Optional; enables the database check in /health.
	DB      handlers.Pinger
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	AllowedOrigins []string
	// Per client IP. Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d RouterDeps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(observeMiddleware(logger, d.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{"Location", requestIDHeader},
		MaxAge:         300,
	}))

	health := handlers.NewHealthHandler(d.DB, logger)
	schedules := handlers.NewScheduleHandler(d.Service, logger)

	r.Get("/health", health.Health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	limiter := newRateLimiter(d.RateLimitRPS, d.RateLimitBurst)
	r.Group(func(r chi.Router) {
		r.Use(limiter.middleware)

		r.Post("/schedules", schedules.Create)
		r.Get("/schedules", schedules.List)
		r.Get("/schedules/{id}", schedules.Get)
		r.Post("/routes/schedule", schedules.CreateFromRoute)
	})

	return r
}
