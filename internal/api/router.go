// Package api exposes the telemetry store over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"telemetry/internal/clock"
	"telemetry/internal/config"
	"telemetry/internal/domain"
	"telemetry/internal/ingest"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Store is the store surface used by HTTP handlers.
type Store interface {
	ingest.EventSink
	Services() []string
	QueryMetrics(q domain.MetricQuery) ([]domain.Point, error)
	QueryLogs(q domain.LogQuery) domain.LogPage
	Rules() []domain.Rule
	CreateRule(input domain.RuleInput) (domain.Rule, error)
	UpdateRule(id string, patch domain.RulePatch) bool
	DeleteRule(id string) bool
	ActiveAlerts() []domain.Alert
	AcknowledgeAlert(id string)
}

// Generator produces synthetic events for the mock endpoint.
type Generator interface {
	Generate(now time.Time) []domain.RawEvent
}

// Options configures router construction.
// Params: HTTP config, store, logger, optional mock generator (nil disables /mock/generate),
// readiness probe (nil = always ready), and clock.
// Returns: router settings.
type Options struct {
	HTTP      config.HTTPConfig
	Store     Store
	Logger    *slog.Logger
	Generator Generator
	Ready     func() bool
	Clock     clock.Clock
}

// Server holds handler dependencies.
type Server struct {
	store        Store
	logger       *slog.Logger
	generator    Generator
	ready        func() bool
	clock        clock.Clock
	maxBodyBytes int64
}

// NewRouter builds chi router with middleware and all telemetry routes.
// Params: router options.
// Returns: http handler.
func NewRouter(opts Options) http.Handler {
	s := &Server{
		store:        opts.Store,
		logger:       opts.Logger,
		generator:    opts.Generator,
		ready:        opts.Ready,
		clock:        opts.Clock,
		maxBodyBytes: opts.HTTP.MaxBodyBytes,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = clock.RealClock{}
	}
	if s.ready == nil {
		s.ready = func() bool { return true }
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(prometheusMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get(opts.HTTP.HealthPath, s.handleHealth)
	r.Get(opts.HTTP.ReadyPath, s.handleReady)
	r.Get(opts.HTTP.StatusPath, s.handleStatus)
	r.Method(http.MethodGet, opts.HTTP.PrometheusPath, promhttp.Handler())

	r.Group(func(r chi.Router) {
		if opts.HTTP.IngestRatePerSec > 0 {
			limiter := rate.NewLimiter(rate.Limit(opts.HTTP.IngestRatePerSec), opts.HTTP.IngestBurst)
			r.Use(rateLimit(limiter))
		}
		r.Post("/ingest", s.handleIngest)
		r.Post("/ingest/batch", s.handleIngest)
	})

	r.Get("/services", s.handleServices)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/logs", s.handleLogs)

	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", s.handleListAlerts)
		r.Post("/ack", s.handleAckAlert)
	})

	r.Route("/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handleCreateRule)
		r.Put("/{id}", s.handleUpdateRule)
		r.Delete("/{id}", s.handleDeleteRule)
	})

	if s.generator != nil {
		r.Post("/mock/generate", s.handleMockGenerate)
	}

	return r
}
