//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package graphql

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes the backend attaches under errors[].extensions.code.
const (
	CodeBadUserInput     = "BAD_USER_INPUT"
	CodeValidationFailed = "GRAPHQL_VALIDATION_FAILED"
)

// TransportError is returned for a non-2xx HTTP response.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("graphql transport error (status %d): %s", e.StatusCode, body)
}

// QueryError is returned when a 2xx response carries an errors array.
type QueryError struct {
	Messages []string
	// Code is the first classification code found, if any.
	Code string
}

func (e *QueryError) Error() string {
	msg := strings.Join(e.Messages, "; ")
	if e.Code != "" {
		return fmt.Sprintf("graphql query error [%s]: %s", e.Code, msg)
	}
	return "graphql query error: " + msg
}

// Message returns the joined error messages without the prefix.
func (e *QueryError) Message() string {
	return strings.Join(e.Messages, "; ")
}

func newQueryError(errs []responseError) *QueryError {
	qe := &QueryError{Messages: make([]string, 0, len(errs))}
	for _, e := range errs {
		if e.Message != "" {
			qe.Messages = append(qe.Messages, e.Message)
		}
		if qe.Code == "" && e.Extensions.Code != "" {
			qe.Code = e.Extensions.Code
		}
	}
	if len(qe.Messages) == 0 {
		qe.Messages = append(qe.Messages, "unknown error")
	}
	return qe
}

// AsQueryError reports whether err wraps a QueryError and returns it.
func AsQueryError(err error) (*QueryError, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
