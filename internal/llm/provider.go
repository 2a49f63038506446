//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package llm provides the types shared with generation service clients.
package llm

import (
	"context"
	"errors"
	"io"
)

// Message roles accepted from callers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a message in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidRole reports whether role is one of the accepted roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// LastUserContent returns the content of the most recent user message.
func LastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// StreamRequest is a request for a streamed generation.
type StreamRequest struct {
	// Input is the full message sequence, system context included.
	Input []Message
}

// Streamer opens a streamed generation. The returned body carries the
// raw event stream; framing is left to the caller, which must close it.
type Streamer interface {
	OpenStream(ctx context.Context, req StreamRequest) (io.ReadCloser, error)

	// ModelName returns the name of the model being used.
	ModelName() string
}

// ErrMissingAPIKey is returned before any network call when no
// generation credential is configured.
var ErrMissingAPIKey = errors.New("generation service API key is not configured")

// Error types for LLM operations.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
}

func (e *Error) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrCodeRateLimit    = "rate_limit"
	ErrCodeInvalidKey   = "invalid_api_key"
	ErrCodeQuotaExceed  = "quota_exceeded"
	ErrCodeModelError   = "model_error"
	ErrCodeNetworkError = "network_error"
)

// IsRetryable returns true if the error can be retried. The relay does
// not retry; the flag is surfaced in logs.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
