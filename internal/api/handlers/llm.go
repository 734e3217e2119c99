package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/quantumalpha/backend/pkg/logger"
)

// ProviderSwitcher is the reasoning factory surface the handlers call.
type ProviderSwitcher interface {
	SwitchProvider(name string) error
	Active() string
	Available() []string
}

// LLMHandler handles reasoning provider control endpoints
type LLMHandler struct {
	factory ProviderSwitcher
	logger  *logger.Logger
}

// NewLLMHandler creates a new LLM handler
func NewLLMHandler(factory ProviderSwitcher, log *logger.Logger) *LLMHandler {
	return &LLMHandler{factory: factory, logger: log}
}

// SwitchRequest names the provider to activate.
type SwitchRequest struct {
	Provider string `json:"provider"`
}

// Switch activates a reasoning provider at runtime; the change applies
// from the next cycle
// POST /api/llm/switch
func (h *LLMHandler) Switch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Provider == "" {
		respondError(w, http.StatusBadRequest, "provider is required")
		return
	}

	if err := h.factory.SwitchProvider(req.Provider); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.WithField("provider", req.Provider).Info("Reasoning provider switched")
	respondJSON(w, http.StatusOK, map[string]string{
		"active": h.factory.Active(),
	})
}

// Providers lists the registered reasoning providers
// GET /api/config/providers
func (h *LLMHandler) Providers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"active":    h.factory.Active(),
		"available": h.factory.Available(),
	})
}
