package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Tool-call surface: one POST endpoint, every tool behind it
	mux.HandleFunc("/cv-tool-call-handler", s.app.ToolHandler.HandleToolCall)
	mux.HandleFunc("/cv-tool-call-handler/tools", s.app.ToolHandler.HandleToolList)

	// Session event stream
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Operational endpoints
	mux.HandleFunc("/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
