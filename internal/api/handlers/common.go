package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/quantumalpha/backend/internal/contracts"
)

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondDomainError maps pipeline errors to {kind, message} with a status
// derived from the kind.
func respondDomainError(w http.ResponseWriter, err error) {
	kind := contracts.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case contracts.KindSourceUnavailable:
		status = http.StatusBadGateway
	case contracts.KindInsufficientData, contracts.KindCapitalInsufficient:
		status = http.StatusUnprocessableEntity
	case contracts.KindReasoningTimeout, contracts.KindDeadlineExceeded:
		status = http.StatusGatewayTimeout
	}

	respondJSON(w, status, map[string]string{
		"kind":    kind,
		"message": err.Error(),
	})
}
