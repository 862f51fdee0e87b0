package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wind-explorer/internal/domain"
	"github.com/couchcryptid/wind-explorer/internal/heatmap"
	"github.com/couchcryptid/wind-explorer/internal/observability"
	"github.com/couchcryptid/wind-explorer/internal/pipeline"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultWriteTimeout = 10 * time.Second

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ReadinessGroup is ready when every member is.
type ReadinessGroup []ReadinessChecker

// CheckReadiness returns the first member error.
func (g ReadinessGroup) CheckReadiness(ctx context.Context) error {
	for _, c := range g {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Selection is the region-selection session the API drives.
type Selection interface {
	State() domain.SelectionState
	Region() (domain.Region, bool)
	ApplyAll(events []domain.Event) (domain.SelectionState, []domain.Region)
}

// Analyses runs and looks up wind analyses.
type Analyses interface {
	Analyze(ctx context.Context, req pipeline.Request) (*domain.Analysis, error)
	Current() (*domain.Analysis, error)
	Lookup(ctx context.Context, id string) (*domain.Analysis, error)
}

// History lists archived analyses, newest first.
type History interface {
	Recent(ctx context.Context, limit int) ([]*domain.Analysis, error)
}

// Heatmap serves the overview samples.
type Heatmap interface {
	Current() heatmap.Snapshot
}

// Deps are the components behind the API routes.
type Deps struct {
	Selection Selection
	Analyses  Analyses
	Heatmap   Heatmap
	// History is nil when the archive is disabled.
	History History
	Ready   ReadinessChecker
	// AnalysisTimeout is how long POST /api/analysis may take. The write
	// timeout is raised to cover it.
	AnalysisTimeout time.Duration
}

// Server exposes the explorer API plus health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(addr string, deps Deps, logger *slog.Logger, metrics *observability.Metrics) *Server {
	router := mux.NewRouter()

	writeTimeout := defaultWriteTimeout
	if t := deps.AnalysisTimeout + defaultWriteTimeout; t > writeTimeout {
		writeTimeout = t
	}
	if deps.Ready == nil {
		deps.Ready = ReadinessGroup{}
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		deps:    deps,
		logger:  logger,
		metrics: metrics,
	}

	router.HandleFunc("/healthz", sharedobs.LivenessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/readyz", sharedobs.ReadinessHandler(deps.Ready)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.registerRoutes(router.PathPrefix("/api").Subrouter())
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// errorResponse is the body of every non-2xx API response.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func writeError(w http.ResponseWriter, status int, msg string, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
