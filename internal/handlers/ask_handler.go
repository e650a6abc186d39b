package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/interfaces"
	"github.com/ternarybob/respondo/internal/models"
)

// AskHandler handles question-answering HTTP requests
type AskHandler struct {
	qaService interfaces.QAService
	logger    arbor.ILogger
}

// NewAskHandler creates a new ask handler
func NewAskHandler(qaService interfaces.QAService, logger arbor.ILogger) *AskHandler {
	return &AskHandler{
		qaService: qaService,
		logger:    logger,
	}
}

// AskHandler handles POST /api/ask requests
func (h *AskHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req interfaces.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Failed to decode ask request")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		WriteError(w, http.StatusBadRequest, "Question field is required")
		return
	}

	h.logger.Info().
		Str("session_id", req.SessionID).
		Int("question_length", len(req.Question)).
		Msg("Processing ask request")

	response, err := h.qaService.Ask(r.Context(), &req)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to answer question")
		WriteError(w, askErrorStatus(err), "Failed to answer question: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"session_id":       response.SessionID,
		"answer":           response.Answer,
		"context":          response.Context,
		"grounding_score":  response.GroundingScore,
		"standalone_query": response.StandaloneQuery,
	})
}

// askErrorStatus maps pipeline errors to HTTP statuses by their type.
// Invalid parameters are the caller's fault; a retrieval failure such as an
// empty index reflects the service's current state rather than a crash.
func askErrorStatus(err error) int {
	var cfgErr *models.ConfigError
	var retErr *models.RetrievalError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.As(err, &retErr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HealthHandler handles GET /api/ask/health requests
func (h *AskHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if err := h.qaService.HealthCheck(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("QA service health check failed")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"healthy": false,
			"error":   err.Error(),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"healthy": true,
	})
}
