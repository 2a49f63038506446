//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package server provides the HTTP server for the assistant API.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/storefront/assistant-relay/internal/config"
	"github.com/storefront/assistant-relay/internal/graphql"
	"github.com/storefront/assistant-relay/internal/llm"
	"github.com/storefront/assistant-relay/internal/relay"
)

// ContextBuilder builds the retrieval context for a question.
// retrieval.Aggregator implements it.
type ContextBuilder interface {
	Aggregate(
		ctx context.Context,
		endpoints config.Endpoints,
		question string,
		fwd graphql.Forward,
	) string
}

// Relayer streams a generation to the caller. relay.Relay implements it.
type Relayer interface {
	Run(
		ctx context.Context,
		messages []llm.Message,
		retrievalContext string,
		emit relay.EmitFunc,
	) error
}

// Server is the HTTP server for the assistant API.
type Server struct {
	config   *config.Config
	resolver *config.Resolver
	context  ContextBuilder
	relay    Relayer
	logger   *slog.Logger
	server   *http.Server
	mux      *http.ServeMux
}

// New creates a new HTTP server. The underlying http.Server is built
// here so Shutdown may run concurrently with ListenAndServe.
func New(cfg *config.Config, cb ContextBuilder, rl Relayer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   cfg,
		resolver: config.NewResolver(cfg.Site),
		context:  cb,
		relay:    rl,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	// Set up routes
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.ListenAddress, cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Chat streams last as long as the generation does.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	if cfg.Server.TLS.Enabled {
		s.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return s
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.mux)
}

// ListenAndServe starts the HTTP server. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting server",
		"address", s.server.Addr,
		"tls", s.config.Server.TLS.Enabled)

	if s.config.Server.TLS.Enabled {
		return s.server.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	}

	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return s.server.Serve(listener)
}

// Shutdown gracefully shuts down the server. Calling it before
// ListenAndServe makes a later ListenAndServe return immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.server.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}
