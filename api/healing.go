package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/siamlabs/siam/internal/healing"
)

// defaultRecentAttempts caps the list endpoint when no limit is given.
const defaultRecentAttempts = 20

// HealingHandler exposes the selector healing demo.
//
// Endpoints:
//   - POST /api/healing/attempts - run one healing attempt
//   - GET  /api/healing/attempts - recent attempts, newest first
type HealingHandler struct {
	runner *healing.Runner
	logger *slog.Logger
}

// NewHealingHandler creates a new healing handler.
func NewHealingHandler(runner *healing.Runner, logger *slog.Logger) *HealingHandler {
	return &HealingHandler{runner: runner, logger: logger}
}

// RegisterRoutes registers healing routes on the given mux.
func (h *HealingHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.runner == nil {
		h.logger.Warn("HealingHandler: runner is nil, healing endpoints not registered")
		return
	}
	mux.HandleFunc("POST /api/healing/attempts", h.handleRun)
	mux.HandleFunc("GET /api/healing/attempts", h.handleRecent)
}

// HealRequest is the request body for POST /api/healing/attempts.
type HealRequest struct {
	BaselineHTML string `json:"baseline_html"`
	CurrentHTML  string `json:"current_html"`
	Selector     string `json:"selector"`
}

// handleRun executes one healing attempt. A failed attempt is still a
// 200: the attempt record carries its terminal status and error.
func (h *HealingHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req HealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.BaselineHTML == "" || req.CurrentHTML == "" || req.Selector == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "baseline_html, current_html and selector are required")
		return
	}

	attempt := h.runner.Run(req.BaselineHTML, req.CurrentHTML, req.Selector)
	writeJSON(w, http.StatusOK, attempt)
}

// handleRecent lists recent attempts, newest first. The optional limit
// query parameter caps the count.
func (h *HealingHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentAttempts
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer")
			return
		}
		limit = n
	}

	attempts := h.runner.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"attempts": attempts,
		"count":    len(attempts),
	})
}
