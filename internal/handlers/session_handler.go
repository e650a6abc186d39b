package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/interfaces"
)

// SessionHandler handles session management HTTP requests
type SessionHandler struct {
	sessions interfaces.SessionStore
	logger   arbor.ILogger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions interfaces.SessionStore, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// GetSessionHandler handles GET /api/sessions/{id} requests, returning the
// session's conversation history in append order.
func (h *SessionHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		WriteError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	history := h.sessions.History(sessionID)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"session_id": sessionID,
		"turns":      history,
		"turn_count": len(history),
	})
}

// ResetHandler handles POST /api/sessions/reset requests, discarding all
// sessions.
func (h *SessionHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	count := h.sessions.Count()
	h.sessions.Reset()

	h.logger.Info().Int("discarded", count).Msg("Sessions reset via API")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"discarded": count,
	})
}

// CountHandler handles GET /api/sessions requests, reporting the live
// session count.
func (h *SessionHandler) CountHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   h.sessions.Count(),
	})
}
