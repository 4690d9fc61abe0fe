package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/energy-forecast/internal/artifact"
	"github.com/couchcryptid/energy-forecast/internal/domain"
	"github.com/couchcryptid/energy-forecast/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker = sharedobs.ReadinessChecker

// Forecasts reads the artifacts behind the forecast routes.
type Forecasts interface {
	MunicipalityNumbers(ctx context.Context) ([]int64, error)
	Branches(ctx context.Context) ([]int64, error)
	Prediction(ctx context.Context, municipality, branch int) (artifact.PredictionSeries, error)
	MonitorPrediction(ctx context.Context, municipality, branch int) (artifact.MonitorSeries, error)
	Metrics(ctx context.Context) (artifact.MetricSeries, error)
}

// APIInfo identifies the API in the health payload and route prefix.
type APIInfo struct {
	Name    string
	Version string
}

// Server exposes the forecast API under /api/<version> plus health,
// readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	info       APIInfo
	forecasts  Forecasts
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates the HTTP server and registers every route.
func NewServer(addr string, info APIInfo, forecasts Forecasts, ready ReadinessChecker, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      withCORS(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		info:      info,
		forecasts: forecasts,
		logger:    logger,
		metrics:   metrics,
	}

	prefix := "/api/" + info.Version
	s.route(mux, prefix+"/health", s.handleAPIHealth)
	s.route(mux, prefix+"/municipality_number_values", s.handleMunicipalityNumbers)
	s.route(mux, prefix+"/branch_values", s.handleBranches)
	s.route(mux, prefix+"/prediction/{municipality_number}/{branch}", s.handlePrediction)
	s.route(mux, prefix+"/monitor/metrics", s.handleMonitorMetrics)
	s.route(mux, prefix+"/monitor/prediction/{municipality_number}/{branch}", s.handleMonitorPrediction)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr, "api_version", s.info.Version)
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

// route registers a GET handler and counts its responses by status.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc("GET "+pattern, func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		s.metrics.APIRequests.WithLabelValues(pattern, strconv.Itoa(sw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// withCORS allows cross-origin GETs from any origin and answers preflights.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]string{
		"name":        s.info.Name,
		"api_version": s.info.Version,
		"status":      "OK",
	})
}

func (s *Server) handleMunicipalityNumbers(w http.ResponseWriter, r *http.Request) {
	values, err := s.forecasts.MunicipalityNumbers(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]int64{"values": values})
}

func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	values, err := s.forecasts.Branches(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]int64{"values": values})
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	m, b, ok := seriesParams(w, r)
	if !ok {
		return
	}
	series, err := s.forecasts.Prediction(r.Context(), m, b)
	if err != nil {
		s.seriesError(w, r, m, b, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, series)
}

func (s *Server) handleMonitorPrediction(w http.ResponseWriter, r *http.Request) {
	m, b, ok := seriesParams(w, r)
	if !ok {
		return
	}
	series, err := s.forecasts.MonitorPrediction(r.Context(), m, b)
	if err != nil {
		s.seriesError(w, r, m, b, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, series)
}

func (s *Server) handleMonitorMetrics(w http.ResponseWriter, r *http.Request) {
	series, err := s.forecasts.Metrics(r.Context())
	if errors.Is(err, artifact.ErrNoMetrics) {
		writeDetail(w, http.StatusNotFound, "Data not found or either performance metrics has not been generated.")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, series)
}

// seriesParams parses the municipality and branch path values, answering
// 422 when either is not an integer.
func seriesParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	m, err := strconv.Atoi(r.PathValue("municipality_number"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "municipality_number must be an integer")
		return 0, 0, false
	}
	b, err := strconv.Atoi(r.PathValue("branch"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "branch must be an integer")
		return 0, 0, false
	}
	return m, b, true
}

func (s *Server) seriesError(w http.ResponseWriter, r *http.Request, m, b int, err error) {
	var lookup *domain.LookupError
	if errors.As(err, &lookup) {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf(
			"Data not found for the provided municipality number: %d and branch: %d.\nError detail: %v",
			m, b, lookup.Err))
		return
	}
	s.internalError(w, r, err)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeDetail(w, http.StatusInternalServerError, "internal server error")
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	sharedobs.WriteJSON(w, status, map[string]string{"detail": detail})
}
