// Package scheduleapi exposes schedule generation over HTTP.
package scheduleapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	slopesadvisor "github.com/c360studio/skitrip/processor/slopes-advisor"
	tripplanner "github.com/c360studio/skitrip/processor/trip-planner"
	"github.com/c360studio/skitrip/trip"
)

// maxRequestBodySize limits POST body sizes.
const maxRequestBodySize = 1 << 20 // 1 MB

// ScheduleService runs and stores schedule pipelines.
type ScheduleService interface {
	Generate(ctx context.Context, req tripplanner.GenerateRequest) (*trip.GeneratedSchedule, error)
	Regenerate(ctx context.Context, req tripplanner.RegenerateRequest) (*trip.GeneratedSchedule, error)
	PlanAccommodation(ctx context.Context, req tripplanner.AccommodationRequest) ([]trip.AccommodationOption, error)
	Get(ctx context.Context, planID string) (*trip.GeneratedSchedule, error)
}

// SlopesAdvisor assesses a rider and suggests resorts.
type SlopesAdvisor interface {
	Advise(ctx context.Context, preferences json.RawMessage) (*slopesadvisor.Result, error)
}

// Server is the HTTP API.
type Server struct {
	schedules ScheduleService
	advisor   SlopesAdvisor
	config    Config
	limiter   *RateLimiter
	metrics   *Metrics
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	handler   http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records request counts.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithGatherer serves g at GET /metrics. Without it /metrics is not mounted.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewServer builds the API around the schedule service and slopes advisor.
func NewServer(schedules ScheduleService, advisor SlopesAdvisor, config Config, opts ...Option) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schedule api config: %w", err)
	}

	s := &Server{
		schedules: schedules,
		advisor:   advisor,
		config:    config,
		limiter:   NewRateLimiter(config.RateLimit, config.RateBurst),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	router := s.routes()
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(router)

	s.handler = logging(s.logger, securityHeaders(corsHandler))
	return s, nil
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// routes registers every endpoint:
//
//	GET  /health
//	GET  /metrics
//	POST /schedule/generate
//	POST /schedule/regenerate
//	POST /schedule/accommodation
//	GET  /schedule/:planId
//	POST /agents/slopes
func (s *Server) routes() *httprouter.Router {
	router := httprouter.New()
	router.GET("/health", s.handleHealth)
	if s.gatherer != nil {
		router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.handle(router, http.MethodPost, "/schedule/generate", s.handleGenerate)
	s.handle(router, http.MethodPost, "/schedule/regenerate", s.handleRegenerate)
	s.handle(router, http.MethodPost, "/schedule/accommodation", s.handleAccommodation)
	s.handle(router, http.MethodGet, "/schedule/:planId", s.handleGet)
	s.handle(router, http.MethodPost, "/agents/slopes", s.handleSlopes)

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found", nil)
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", nil)
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		s.logger.Error("Handler panic", "method", r.Method, "path", r.URL.Path, "panic", v)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
	}
	return router
}

// handle mounts a rate limited, counted route.
func (s *Server) handle(router *httprouter.Router, method, path string, h httprouter.Handle) {
	limited := s.limiter.Limit(h)
	router.Handle(method, path, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		rec := &statusRecorder{ResponseWriter: w}
		limited(rec, r, ps)
		s.metrics.observe(path, method, rec.code())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail logs err and writes its classified response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "status", status, "code", body.Code, "error", err)
	} else {
		s.logger.Debug("Request rejected", "path", r.URL.Path, "status", status, "code", body.Code, "error", err)
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into dst. It writes the error response and
// returns false when the body cannot be used.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, err)
			return false
		}
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body", err.Error())
		return false
	}
	return true
}
