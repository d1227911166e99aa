// Package api provides the HTTP chassis: a chi router with the
// cross-cutting middleware chain (panic recovery, request correlation,
// structured request logging) and the handlers that map HTTP requests onto
// the analysis service.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fairweather/internal/analysis"
	"fairweather/internal/presets"
	"fairweather/internal/types"
)

// Server bundles the router and the handler dependencies.
type Server struct {
	analysis    analysis.Service
	catalog     *presets.Catalog
	validate    *validator.Validate
	logger      *slog.Logger
	clock       types.Clock
	serviceName string
	environment string

	router *chi.Mux
}

// NewServer constructs the Server. The caller mounts routes afterwards so
// tests can customize registration.
func NewServer(
	svc analysis.Service,
	catalog *presets.Catalog,
	serviceName, environment string,
	logger *slog.Logger,
	clock types.Clock,
) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("analysis service must not be nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("preset catalog must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}

	return &Server{
		analysis:    svc,
		catalog:     catalog,
		validate:    newValidator(),
		logger:      logger,
		clock:       clock,
		serviceName: serviceName,
		environment: environment,
		router:      chi.NewRouter(),
	}, nil
}

// MountRoutes registers the middleware chain and all endpoints. Middleware
// order matters: the recoverer is outermost so it also catches middleware
// panics, and request IDs must exist before anything logs.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.logger))

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/analysis", s.HandleAnalyze)
		r.Get("/presets", s.HandleListPresets)
		r.Route("/locations/{key}", func(r chi.Router) {
			r.Get("/models", s.HandleModelStates)
			r.Post("/train", s.HandleRequestTraining)
		})
	})

	s.router.Get("/healthz", s.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
