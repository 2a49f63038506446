//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/storefront/assistant-relay/internal/graphql"
	"github.com/storefront/assistant-relay/internal/llm"
	"github.com/storefront/assistant-relay/internal/relay"
)

// MaxChatBodyBytes bounds the chat request body.
const MaxChatBodyBytes = 1 << 20

// ChatRequest is the body of a chat request.
type ChatRequest struct {
	Messages []llm.Message `json:"messages"`
}

// setChatCORS applies the permissive CORS headers every chat response
// carries.
func setChatCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

// handleChat handles POST and OPTIONS on the chat endpoints.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	setChatCORS(w.Header())

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		s.respondMethodNotAllowed(w, "POST, OPTIONS")
		return
	}

	logger := requestLogger(r.Context(), s.logger)

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxChatBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "INVALID_REQUEST",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"invalid request body: "+err.Error())
		return
	}

	if len(req.Messages) == 0 {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "messages are required")
		return
	}
	for i, m := range req.Messages {
		if !llm.ValidRole(m.Role) {
			s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
				fmt.Sprintf("messages[%d]: unsupported role %q", i, m.Role))
			return
		}
	}

	// Check if the response writer supports flushing
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "STREAMING_ERROR",
			"streaming not supported")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	endpoints := s.resolver.ResolveRequest(r)
	question := llm.LastUserContent(req.Messages)
	retrievalContext := s.context.Aggregate(r.Context(), endpoints, question,
		graphql.ForwardFromRequest(r))

	logger.Debug("relaying chat",
		"messages", len(req.Messages),
		"origin", endpoints.Origin,
		"graphql_url", endpoints.GraphQLURL,
		"context_length", len(retrievalContext))

	emit := func(ev relay.Event) error {
		return sendSSE(w, flusher, ev)
	}

	err := s.relay.Run(r.Context(), req.Messages, retrievalContext, emit)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Debug("client disconnected during streaming")
	default:
		logger.Warn("chat stream ended with error", "error", err)
	}
}
