package api

import (
	"net/http"
)

// compressRequest mirrors the OpenAPI schema for POST /compress.
type compressRequest struct {
	Tolerance *float64   `json:"tolerance"`
	Points    []pointDTO `json:"points"`
}

// CompressHandler compresses a trajectory in the request goroutine.
type CompressHandler struct {
	deps Dependencies
}

// NewCompressHandler creates a new compress handler.
func NewCompressHandler(deps Dependencies) *CompressHandler {
	return &CompressHandler{deps: deps}
}

// HandleCompress handles POST /compress requests.
func (h *CompressHandler) HandleCompress(w http.ResponseWriter, r *http.Request) {
	const op = "api.compress"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req compressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	out, err := h.deps.Compress(r.Context(), toPoints(req.Points), tolerance(req.Tolerance, h.deps))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
