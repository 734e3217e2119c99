package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/internal/engine"
	"github.com/quantumalpha/backend/internal/scheduler"
	"github.com/quantumalpha/backend/pkg/logger"
)

// Scanner is the pipeline surface the handlers call.
type Scanner interface {
	Scan(ctx context.Context, universe []string, mode engine.Mode) (*contracts.RankedResult, error)
	Diagnose(ctx context.Context, symbol string, withReasoning bool) (*contracts.DeepDiveResult, error)
}

// ResultReader reads the latest published cycle.
type ResultReader interface {
	Get() (*contracts.RankedResult, bool)
}

// Cycle is the scheduler surface the handlers call.
type Cycle interface {
	Trigger()
	State() contracts.RunContext
	History() []scheduler.RunRecord
}

// AlphaHandler handles scan cycle API endpoints
// ⭐ SSOT: scan cycle API handlers live only in this struct
type AlphaHandler struct {
	scanner Scanner
	results ResultReader
	cycle   Cycle
	logger  *logger.Logger
}

// NewAlphaHandler creates a new alpha handler. cycle may be nil when the
// process runs without the scheduler.
func NewAlphaHandler(scanner Scanner, results ResultReader, cycle Cycle, log *logger.Logger) *AlphaHandler {
	return &AlphaHandler{
		scanner: scanner,
		results: results,
		cycle:   cycle,
		logger:  log,
	}
}

// Health returns server health and the current cycle phase
// GET /health
func (h *AlphaHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "ok",
		"service": "quantumalpha-api",
	}
	if h.cycle != nil {
		state := h.cycle.State()
		body["phase"] = string(state.Phase)
		body["degraded"] = state.Degraded
	}
	respondJSON(w, http.StatusOK, body)
}

// ScanRequest selects what one ad-hoc scan covers.
type ScanRequest struct {
	Universe []string `json:"universe,omitempty"`
	Mode     string   `json:"mode,omitempty"` // full (default) or quick
}

// Scan runs one ad-hoc scan synchronously and returns the ranked result
// POST /api/alpha/scan
func (h *AlphaHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	mode := engine.ModeFull
	switch req.Mode {
	case "", string(engine.ModeFull):
	case string(engine.ModeQuick):
		mode = engine.ModeQuick
	default:
		respondError(w, http.StatusBadRequest, "mode must be full or quick")
		return
	}

	result, err := h.scanner.Scan(r.Context(), req.Universe, mode)
	if err != nil {
		h.logger.WithError(err).Error("Ad-hoc scan failed")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Morning triggers the full two-phase pre-market pipeline
// POST /api/alpha/morning
func (h *AlphaHandler) Morning(w http.ResponseWriter, r *http.Request) {
	if h.cycle == nil {
		respondError(w, http.StatusServiceUnavailable, "scheduler is not running in this process")
		return
	}
	h.cycle.Trigger()
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"triggered": true,
		"state":     h.cycle.State(),
	})
}

// Recommendations returns the latest published cycle, possibly stale-flagged
// GET /api/recommendations
func (h *AlphaHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	result, ok := h.results.Get()
	if !ok {
		respondError(w, http.StatusNotFound, "no completed cycle yet")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// SchedulerStatus returns the cycle state and recent phase history
// GET /api/scheduler/status
func (h *AlphaHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.cycle == nil {
		respondError(w, http.StatusServiceUnavailable, "scheduler is not running in this process")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"state":   h.cycle.State(),
		"history": h.cycle.History(),
	})
}
