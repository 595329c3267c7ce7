// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/stcurve/internal/adapters/repository"
	service "github.com/okian/stcurve/internal/app"
	"github.com/okian/stcurve/internal/domain/model"
)

const (
	defaultMaxListLimit = 100
	defaultListLimit    = 10
	maxBodyBytes        = 64 << 20
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider

	// Compress runs compression synchronously.
	Compress(ctx context.Context, points []model.Point, tolerance float64) (service.CompressOutput, error)

	// Submit queues a trajectory. duplicate is true when its id was seen before.
	Submit(ctx context.Context, t model.Trajectory, tolerance float64) (jobID string, duplicate bool, err error)

	Result(ctx context.Context, trajectoryID string) (model.Result, error)
	Results(ctx context.Context, limit int) ([]model.Result, error)
	Delete(ctx context.Context, trajectoryID string) error

	// DefaultTolerance is used when a request omits tolerance.
	DefaultTolerance() float64
}

// Server wires HTTP routes for the compression API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	compressHandler     *CompressHandler
	trajectoriesHandler *TrajectoriesHandler
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	maxListLimit int
}

// WithMaxListLimit caps the limit accepted by GET /trajectories.
func WithMaxListLimit(n int) ServerOption {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxListLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	cfg := serverConfig{maxListLimit: defaultMaxListLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(deps),
		compressHandler:     NewCompressHandler(deps),
		trajectoriesHandler: NewTrajectoriesHandler(deps, cfg.maxListLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/compress", MetricsMiddleware(s.compressHandler.HandleCompress, "compress"))
	mux.HandleFunc("/trajectories", MetricsMiddleware(s.trajectoriesHandler.HandleCollection, "trajectories"))
	mux.HandleFunc("/trajectories/", MetricsMiddleware(s.trajectoriesHandler.HandleItem, "trajectory"))
}

// pointDTO mirrors the OpenAPI schema for a trajectory point.
type pointDTO struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	T  int64   `json:"t"`
}

func toPoints(in []pointDTO) []model.Point {
	if in == nil {
		return nil
	}
	out := make([]model.Point, len(in))
	for i, p := range in {
		out[i] = model.Point{ID: p.ID, X: p.X, Y: p.Y, T: p.T}
	}
	return out
}

func tolerance(requested *float64, deps Dependencies) float64 {
	if requested == nil {
		return deps.DefaultTolerance()
	}
	return *requested
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service and store errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTolerance):
		writeError(w, http.StatusBadRequest, "invalid_tolerance", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrTooManyPoints):
		writeError(w, http.StatusBadRequest, "too_many_points", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrUnorderedTimestamps):
		writeError(w, http.StatusBadRequest, "unordered_timestamps", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrMissingTrajectoryID),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, repository.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
