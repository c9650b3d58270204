package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/btafoya/pbxprobe/internal/history"
	"github.com/btafoya/pbxprobe/internal/models"
)

// RunHandler serves persisted probe runs.
type RunHandler struct {
	deps *Dependencies
}

// NewRunHandler creates a new RunHandler
func NewRunHandler(deps *Dependencies) *RunHandler {
	return &RunHandler{deps: deps}
}

// List returns recent probe runs, newest first. The limit query parameter
// defaults to 10 and is capped at 500.
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > 500 {
		limit = 500
	}

	runs, err := h.deps.Store.Recent(r.Context(), limit)
	if err != nil {
		WriteInternalError(w)
		return
	}
	if runs == nil {
		runs = []*models.ProbeRun{}
	}
	WriteJSON(w, http.StatusOK, runs)
}

// Latest returns the most recent probe run.
func (h *RunHandler) Latest(w http.ResponseWriter, r *http.Request) {
	run, err := h.deps.Store.Latest(r.Context())
	if errors.Is(err, history.ErrRunNotFound) {
		WriteNotFoundError(w, "probe run")
		return
	}
	if err != nil {
		WriteInternalError(w)
		return
	}
	WriteJSON(w, http.StatusOK, run)
}
