//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Portions copyright (c) 2025, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/storefront/assistant-relay/internal/config"
	"github.com/storefront/assistant-relay/internal/graphql"
	"github.com/storefront/assistant-relay/internal/llm/openai"
	"github.com/storefront/assistant-relay/internal/probe"
	"github.com/storefront/assistant-relay/internal/relay"
	"github.com/storefront/assistant-relay/internal/retrieval"
	"github.com/storefront/assistant-relay/internal/server"
)

// Version information - set via ldflags during build
var (
	version   = "0.1.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help message")
		showOpenAPI = flag.Bool("openapi", false, "Output OpenAPI specification and exit")
		configPath  = flag.String("config", "", "Path to configuration file")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Storefront Assistant Relay - streaming store assistant

Usage:
    assistant-relay [options]

Options:
    -config string
        Path to configuration file. If not specified, searches:
        1. /etc/storefront/assistant-relay.yaml
        2. assistant-relay.yaml (in binary directory)
        Without a file, built-in defaults and environment variables apply.

    -log-level string
        One of debug, info, warn, error (default info)

    -openapi
        Output OpenAPI v3 specification as JSON and exit

    -version
        Show version information and exit

    -help
        Show this help message and exit

Environment:
    SITE_ORIGIN, GRAPHQL_URL, OPENAI_API_KEY, OPENAI_BASE_URL, OPENAI_MODEL
`)
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("Storefront Assistant Relay\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Build Time: %s\n", buildTime)
		fmt.Printf("  Git Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	if *showOpenAPI {
		spec := server.BuildOpenAPISpec()
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(spec); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode OpenAPI spec: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Run the server
	if err := run(*configPath, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func run(configPath string, logger *slog.Logger) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info("configuration loaded",
		"site_origin", cfg.Site.Origin,
		"graphql_url", cfg.Site.GraphQLURL,
		"model", cfg.Generation.Model)

	// A missing key is reported to callers in-band, not at startup.
	apiKey, err := config.NewAPIKeyLoader(cfg.Generation).LoadOpenAIKey()
	if err != nil {
		logger.Warn("no generation API key; chat requests will fail until one is configured",
			"error", err)
	}

	prober := probe.New(
		graphql.NewClient(graphql.WithTimeout(cfg.Site.GraphQLTimeout)),
		probe.WithLimit(cfg.Retrieval.PageLimit),
		probe.WithLogger(logger.With("component", "probe")),
	)

	aggregator := retrieval.NewAggregator(retrieval.AggregatorConfig{
		Searcher: prober,
		Settings: cfg.Retrieval,
		Logger:   logger.With("component", "retrieval"),
	})

	provider := openai.NewResponsesProvider(apiKey,
		openai.WithModel(cfg.Generation.Model),
		openai.WithClient(openai.NewClient(apiKey,
			openai.WithBaseURL(cfg.Generation.BaseURL),
			openai.WithTimeout(cfg.Generation.Timeout),
		)),
	)

	rl := relay.New(provider, relay.WithLogger(logger.With("component", "relay")))

	// Create and start server
	srv := server.New(cfg, aggregator, rl, logger)

	// Handle graceful shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return err
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal", "signal", sig)

		// Give 30 seconds for graceful shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return srv.Shutdown(ctx)
	}
}
