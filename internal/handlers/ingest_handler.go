package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/interfaces"
)

// IngestHandler handles document ingestion HTTP requests
type IngestHandler struct {
	qaService interfaces.QAService
	wsHandler *WebSocketHandler
	logger    arbor.ILogger
}

// NewIngestHandler creates a new ingest handler. wsHandler may be nil when
// no websocket surface is running.
func NewIngestHandler(qaService interfaces.QAService, wsHandler *WebSocketHandler, logger arbor.ILogger) *IngestHandler {
	return &IngestHandler{
		qaService: qaService,
		wsHandler: wsHandler,
		logger:    logger,
	}
}

// ingestRequest is the POST /api/ingest request body
type ingestRequest struct {
	Directory string `json:"directory"`
}

// IngestHandler handles POST /api/ingest requests. Ingestion runs
// synchronously; the response carries the full report.
func (h *IngestHandler) IngestHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Failed to decode ingest request")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Directory) == "" {
		WriteError(w, http.StatusBadRequest, "Directory field is required")
		return
	}

	h.logger.Info().Str("directory", req.Directory).Msg("Processing ingest request")

	report, err := h.qaService.Ingest(r.Context(), req.Directory)
	if err != nil {
		h.logger.Error().Err(err).Str("directory", req.Directory).Msg("Ingest failed")
		WriteError(w, http.StatusInternalServerError, "Ingest failed: "+err.Error())
		return
	}

	if h.wsHandler != nil {
		h.wsHandler.BroadcastIngest(IngestUpdate{
			Directory:     report.Directory,
			DocumentCount: report.DocumentCount,
			PassageCount:  report.PassageCount,
			FailureCount:  len(report.Failures),
		})
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"report":  report,
	})
}
