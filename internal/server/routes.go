//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

// Chat endpoint paths. /api/chat is kept for storefront builds that
// predate the versioned API.
const (
	ChatPath       = "/v1/chat"
	LegacyChatPath = "/api/chat"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// API v1 routes
	s.mux.HandleFunc("GET /v1/openapi.json", s.handleOpenAPI)
	s.mux.HandleFunc("GET /v1/health", s.handleHealth)

	// The chat handler answers OPTIONS and 405 itself.
	s.mux.HandleFunc(ChatPath, s.handleChat)
	s.mux.HandleFunc(LegacyChatPath, s.handleChat)
}

func isChatPath(path string) bool {
	return path == ChatPath || path == LegacyChatPath
}
