package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/quantumalpha/backend/pkg/logger"
)

// StockHandler handles per-symbol diagnosis endpoints
// ⭐ SSOT: per-symbol API handlers live only in this struct
type StockHandler struct {
	scanner Scanner
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(scanner Scanner, log *logger.Logger) *StockHandler {
	return &StockHandler{scanner: scanner, logger: log}
}

// DiagnoseRequest names the symbol to deep dive.
type DiagnoseRequest struct {
	Symbol string `json:"symbol"`
}

// Diagnose runs a full deep dive with AI reasoning
// POST /api/stock/diagnose
func (h *StockHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	var req DiagnoseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	result, err := h.scanner.Diagnose(r.Context(), req.Symbol, true)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", req.Symbol).Error("Diagnosis failed")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// QuickScan runs the rule-engine-only diagnosis
// GET /api/stock/scan?symbol=600519
func (h *StockHandler) QuickScan(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}

	result, err := h.scanner.Diagnose(r.Context(), symbol, false)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Quick scan failed")
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
