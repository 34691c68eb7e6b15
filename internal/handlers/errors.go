package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"paperhub/internal/contextutil"
	"paperhub/internal/rag"
)

// ErrorResponse represents an error response payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// writeJSON writes a JSON success response.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger := contextutil.LoggerFromContext(ctx)
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// handleEngineError maps QA engine errors to appropriate HTTP status codes.
func handleEngineError(w http.ResponseWriter, ctx context.Context, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "qa engine error", "error", err)

	if err == nil {
		writeError(w, http.StatusInternalServerError, defaultMsg)
		return
	}

	if errors.Is(err, rag.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if errors.Is(err, rag.ErrExternalService) {
		errMsg := strings.ToLower(err.Error())
		// Vector store errors -> 503
		if strings.Contains(errMsg, "vector search") || strings.Contains(errMsg, "qdrant") {
			writeError(w, http.StatusServiceUnavailable, "Vector store unavailable")
			return
		}
		// LLM/embedding errors -> 502
		writeError(w, http.StatusBadGateway, "External service error")
		return
	}

	writeError(w, http.StatusInternalServerError, defaultMsg)
}
