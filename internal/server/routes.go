package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (log and event streaming)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Question answering
	mux.HandleFunc("/api/ask", s.app.AskHandler.AskHandler)
	mux.HandleFunc("/api/ask/health", s.app.AskHandler.HealthHandler)

	// API routes - Document ingestion
	mux.HandleFunc("/api/ingest", s.app.IngestHandler.IngestHandler)

	// API routes - Sessions
	mux.HandleFunc("/api/sessions", s.app.SessionHandler.CountHandler)
	mux.HandleFunc("/api/sessions/reset", s.app.SessionHandler.ResetHandler)
	mux.HandleFunc("/api/sessions/", s.app.SessionHandler.GetSessionHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
