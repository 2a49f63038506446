//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package relay streams a generation service's event stream back to the
// caller as delta, done and error events.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront/assistant-relay/internal/llm"
)

const (
	tracerName = "github.com/storefront/assistant-relay/internal/relay"

	// DefaultReadSize is the size of each upstream read.
	DefaultReadSize = 4096
)

// ErrUpstreamFailed is returned by Run when the generation service
// reported a failure inside the stream.
var ErrUpstreamFailed = errors.New("generation service reported an error")

// EmitFunc delivers one event to the caller. An error means the caller
// can no longer be written to and the relay stops.
type EmitFunc func(Event) error

// Relay forwards one conversation to the generation service per Run.
type Relay struct {
	streamer llm.Streamer
	readSize int
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReadSize sets the upstream read size.
func WithReadSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.readSize = n
		}
	}
}

// New creates a relay over streamer.
func New(streamer llm.Streamer, opts ...Option) *Relay {
	r := &Relay{
		streamer: streamer,
		readSize: DefaultReadSize,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BuildInput returns the message sequence sent upstream: the caller's
// messages, preceded by a system message when retrievalContext is set.
func BuildInput(messages []llm.Message, retrievalContext string) []llm.Message {
	if retrievalContext == "" {
		return messages
	}

	input := make([]llm.Message, 0, len(messages)+1)
	input = append(input, llm.Message{Role: llm.RoleSystem, Content: retrievalContext})
	return append(input, messages...)
}

// Run streams one generation to emit. Unless the caller goes away, emit
// receives zero or more deltas followed by exactly one done or error
// event. The returned error describes the fault that ended the stream,
// if any; it has already been reported to the caller when it could be.
func (r *Relay) Run(
	ctx context.Context,
	messages []llm.Message,
	retrievalContext string,
	emit EmitFunc,
) error {
	ctx, span := r.tracer.Start(ctx, "relay.run",
		trace.WithAttributes(
			attribute.String("relay.model", r.streamer.ModelName()),
			attribute.Int("relay.messages", len(messages)),
			attribute.Bool("relay.has_context", retrievalContext != ""),
		))
	defer span.End()

	s := &session{emit: emit}
	err := r.stream(ctx, s, BuildInput(messages, retrievalContext))

	span.SetAttributes(attribute.Int("relay.deltas", s.deltas))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Relay) stream(ctx context.Context, s *session, input []llm.Message) error {
	body, err := r.streamer.OpenStream(ctx, llm.StreamRequest{Input: input})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Error("generation request failed",
			"error", err,
			"retryable", llm.IsRetryable(err))
		return errors.Join(err, s.send(ErrorEvent(err.Error())))
	}
	defer func() { _ = body.Close() }()

	var scanner FrameScanner
	buf := make([]byte, r.readSize)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, frame := range scanner.Push(buf[:n]) {
				if err := s.frame(frame); err != nil || s.terminated {
					return s.outcome(err)
				}
			}
		}

		if readErr == nil {
			continue
		}

		if errors.Is(readErr, io.EOF) {
			if err := s.frame(scanner.Flush()); err != nil || s.terminated {
				return s.outcome(err)
			}
			r.logger.Debug("upstream ended without a terminal event")
			return s.send(DoneEvent())
		}

		if ctx.Err() != nil {
			r.logger.Debug("caller went away during streaming", "error", ctx.Err())
			return ctx.Err()
		}

		readErr = fmt.Errorf("failed to read generation stream: %w", readErr)
		r.logger.Error("generation stream failed", "error", readErr)
		return errors.Join(readErr, s.send(ErrorEvent(readErr.Error())))
	}
}

// session tracks one caller stream so that nothing follows the
// terminal event.
type session struct {
	emit       EmitFunc
	terminated bool
	deltas     int
	failure    string
}

func (s *session) frame(frame string) error {
	for _, payload := range dataPayloads(frame) {
		ev, ok := parsePayload(payload)
		if !ok {
			continue
		}
		if err := s.send(ev); err != nil || s.terminated {
			return err
		}
	}
	return nil
}

func (s *session) send(ev Event) error {
	if s.terminated {
		return nil
	}
	if ev.Terminal() {
		s.terminated = true
		s.failure = ev.Error
	} else {
		s.deltas++
	}
	if err := s.emit(ev); err != nil {
		s.terminated = true
		return fmt.Errorf("failed to emit event: %w", err)
	}
	return nil
}

// outcome reports how a stream that stopped on a frame ended.
func (s *session) outcome(err error) error {
	if err != nil {
		return err
	}
	if s.failure != "" {
		return fmt.Errorf("%w: %s", ErrUpstreamFailed, s.failure)
	}
	return nil
}
