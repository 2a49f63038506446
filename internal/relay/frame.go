//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package relay

import (
	"bytes"
	"strings"
)

// FrameScanner reassembles event-stream frames from arbitrary reads.
// A read may hold no frame, several frames, or part of one; whatever
// follows the last blank-line separator is kept for the next Push.
//
// A FrameScanner belongs to a single stream and is not safe for
// concurrent use.
type FrameScanner struct {
	buf []byte
}

var (
	lfSep   = []byte("\n\n")
	crlfSep = []byte("\r\n\r\n")
)

// Push appends chunk and returns every frame it completed, in order.
func (s *FrameScanner) Push(chunk []byte) []string {
	s.buf = append(s.buf, chunk...)

	var frames []string
	for {
		idx, sepLen := nextBoundary(s.buf)
		if idx < 0 {
			break
		}
		frames = append(frames, string(s.buf[:idx]))
		s.buf = s.buf[idx+sepLen:]
	}

	// Drop the consumed prefix so the backing array does not grow
	// with the stream.
	if len(s.buf) == 0 {
		s.buf = nil
	} else if cap(s.buf) > 4*len(s.buf) && cap(s.buf) > 64<<10 {
		s.buf = append([]byte(nil), s.buf...)
	}

	return frames
}

// Flush returns the buffered partial frame, if any, and resets.
func (s *FrameScanner) Flush() string {
	rest := string(s.buf)
	s.buf = nil
	return rest
}

// Buffered returns the number of bytes awaiting a separator.
func (s *FrameScanner) Buffered() int {
	return len(s.buf)
}

// nextBoundary finds the earliest frame separator in b.
func nextBoundary(b []byte) (int, int) {
	lf := bytes.Index(b, lfSep)
	crlf := bytes.Index(b, crlfSep)

	switch {
	case lf < 0 && crlf < 0:
		return -1, 0
	case crlf < 0:
		return lf, len(lfSep)
	case lf < 0 || crlf < lf:
		return crlf, len(crlfSep)
	default:
		return lf, len(lfSep)
	}
}

// dataPayloads returns the payload of every "data:" line in frame.
// Other fields (event:, id:, comments) are ignored.
func dataPayloads(frame string) []string {
	var payloads []string
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")
		rest, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload := strings.TrimSpace(rest)
		if payload == "" || payload == doneSentinel {
			continue
		}
		payloads = append(payloads, payload)
	}
	return payloads
}

// doneSentinel is the literal end-of-transmission payload. It is not the
// structured completion event and produces nothing.
const doneSentinel = "[DONE]"
