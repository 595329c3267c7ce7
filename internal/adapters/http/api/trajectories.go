package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/stcurve/internal/domain/model"
)

// submitRequest mirrors the OpenAPI schema for POST /trajectories.
type submitRequest struct {
	TrajectoryID string     `json:"trajectory_id"`
	Tolerance    *float64   `json:"tolerance"`
	Points       []pointDTO `json:"points"`
}

func (s submitRequest) validate() error {
	if strings.TrimSpace(s.TrajectoryID) == "" {
		return errors.New("missing trajectory_id")
	}
	if strings.Contains(s.TrajectoryID, "/") {
		return errors.New("trajectory_id must not contain '/'")
	}
	return nil
}

type ackResponse struct {
	Status       string `json:"status"`
	Duplicate    bool   `json:"duplicate"`
	TrajectoryID string `json:"trajectory_id"`
	JobID        string `json:"job_id,omitempty"`
}

// TrajectoriesHandler handles asynchronous submissions and result reads.
type TrajectoriesHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewTrajectoriesHandler creates a new trajectories handler.
func NewTrajectoriesHandler(deps Dependencies, maxLimit int) *TrajectoriesHandler {
	return &TrajectoriesHandler{deps: deps, maxLimit: maxLimit}
}

// HandleCollection handles POST and GET on /trajectories.
func (h *TrajectoriesHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.submit(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.NotFound(w, r)
	}
}

// HandleItem handles GET and DELETE on /trajectories/{id}.
func (h *TrajectoriesHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	const op = "api.trajectory"
	id := strings.TrimPrefix(r.URL.Path, "/trajectories/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	switch r.Method {
	case http.MethodGet:
		res, err := h.deps.Result(r.Context(), id)
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case http.MethodDelete:
		if err := h.deps.Delete(r.Context(), id); err != nil {
			writeServiceError(w, op, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (h *TrajectoriesHandler) submit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_trajectory"
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	t := model.Trajectory{ID: strings.TrimSpace(req.TrajectoryID), Points: toPoints(req.Points)}
	jobID, duplicate, err := h.deps.Submit(r.Context(), t, tolerance(req.Tolerance, h.deps))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, TrajectoryID: t.ID})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", TrajectoryID: t.ID, JobID: jobID})
}

func (h *TrajectoriesHandler) list(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_trajectories"
	n := min(defaultListLimit, h.maxLimit)
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrLimitExceeded))
		return
	}

	results, err := h.deps.Results(r.Context(), n)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
