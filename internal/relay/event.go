//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package relay

import (
	"encoding/json"
	"strings"
)

// Event is one event sent to the caller. Exactly one field is set.
type Event struct {
	Delta string `json:"delta,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Done || e.Error != ""
}

// DeltaEvent returns an incremental text event.
func DeltaEvent(text string) Event { return Event{Delta: text} }

// DoneEvent returns the completion event.
func DoneEvent() Event { return Event{Done: true} }

// ErrorEvent returns a failure event. An empty message is replaced so
// the event stays terminal.
func ErrorEvent(msg string) Event {
	if strings.TrimSpace(msg) == "" {
		msg = defaultUpstreamError
	}
	return Event{Error: msg}
}

const defaultUpstreamError = "upstream error"

// Upstream event types.
const (
	typeOutputTextDelta   = "response.output_text.delta"
	typeResponseCompleted = "response.completed"
	typeResponseFailed    = "response.failed"
	typeError             = "error"
)

// upstreamEvent covers the fields the relay reads from generation
// service events; everything else is ignored.
type upstreamEvent struct {
	Type     string          `json:"type"`
	Delta    *string         `json:"delta"`
	Done     bool            `json:"done"`
	Message  string          `json:"message"`
	Error    json.RawMessage `json:"error"`
	Response *struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"response"`
}

// parsePayload maps one data payload to a caller event. The boolean is
// false for payloads that produce nothing: malformed JSON, unknown
// types and lifecycle events.
func parsePayload(payload string) (Event, bool) {
	var ev upstreamEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, false
	}

	if msg, ok := errorMessage(ev.Error); ok {
		return ErrorEvent(msg), true
	}

	switch ev.Type {
	case typeError:
		return ErrorEvent(ev.Message), true
	case typeResponseFailed:
		msg := ""
		if ev.Response != nil && ev.Response.Error != nil {
			msg = ev.Response.Error.Message
		}
		return ErrorEvent(msg), true
	case typeOutputTextDelta:
		if ev.Delta == nil || *ev.Delta == "" {
			return Event{}, false
		}
		return DeltaEvent(*ev.Delta), true
	case typeResponseCompleted:
		return DoneEvent(), true
	case "":
		switch {
		case ev.Delta != nil && *ev.Delta != "":
			return DeltaEvent(*ev.Delta), true
		case ev.Done:
			return DoneEvent(), true
		}
	}

	return Event{}, false
}

// errorMessage reads an error field that is either a non-empty string
// or an object carrying a message or code. Anything else, including
// null, "", false and {}, is not an error.
func errorMessage(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}

	var obj struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	switch {
	case strings.TrimSpace(obj.Message) != "":
		return obj.Message, true
	case strings.TrimSpace(obj.Code) != "":
		return obj.Code, true
	}
	return "", false
}
