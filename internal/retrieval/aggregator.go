//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package retrieval builds the storefront context injected ahead of a
// conversation, fanning out to several independent backend sources.
package retrieval

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/storefront/assistant-relay/internal/config"
	"github.com/storefront/assistant-relay/internal/graphql"
)

// Preamble introduces a non-empty context block.
const Preamble = "Use the following information from the store to answer the " +
	"customer. Prefer it over general knowledge and include the links " +
	"when they help."

const tracerName = "github.com/storefront/assistant-relay/internal/retrieval"

// Searcher runs a search query against the backend. probe.Prober
// implements it.
type Searcher interface {
	Probe(
		ctx context.Context,
		endpoint, query, question string,
		fwd graphql.Forward,
	) (json.RawMessage, error)
}

// Result is the outcome of one source: its pieces, or the error that
// made it contribute nothing.
type Result struct {
	Source Source
	Pieces []Piece
	Err    error
}

// Aggregator fans a question out to every source and assembles the
// context block.
type Aggregator struct {
	searcher   Searcher
	sources    []Source
	maxRecords int
	excerptLen int
	timeout    time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer
}

// AggregatorConfig contains the configuration for creating an aggregator.
type AggregatorConfig struct {
	Searcher Searcher
	Sources  []Source // Defaults to DefaultSources()
	Settings config.RetrievalConfig
	Logger   *slog.Logger
}

// NewAggregator creates a new context aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sources := cfg.Sources
	if sources == nil {
		sources = DefaultSources()
	}

	return &Aggregator{
		searcher:   cfg.Searcher,
		sources:    sources,
		maxRecords: cfg.Settings.MaxRecords,
		excerptLen: cfg.Settings.ExcerptLength,
		timeout:    cfg.Settings.Timeout,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// Aggregate returns the context block for question, or "" when no
// source produced anything. It never fails: a source error only removes
// that source's section.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	endpoints config.Endpoints,
	question string,
	fwd graphql.Forward,
) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return ""
	}

	ctx, span := a.tracer.Start(ctx, "retrieval.aggregate")
	defer span.End()

	results := a.Collect(ctx, endpoints, question, fwd)
	block := Assemble(results)

	span.SetAttributes(attribute.Int("retrieval.context_length", len(block)))
	return block
}

// Collect runs every source concurrently and waits for all of them.
// Results are returned in source order.
func (a *Aggregator) Collect(
	ctx context.Context,
	endpoints config.Endpoints,
	question string,
	fwd graphql.Forward,
) []Result {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	results := make([]Result, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			results[i] = a.fetch(ctx, endpoints, src, question, fwd)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// fetch runs one source. Errors are recorded on the result, never
// returned, so one failing source cannot cancel the others.
func (a *Aggregator) fetch(
	ctx context.Context,
	endpoints config.Endpoints,
	src Source,
	question string,
	fwd graphql.Forward,
) Result {
	ctx, span := a.tracer.Start(ctx, "retrieval.source",
		trace.WithAttributes(attribute.String("retrieval.source", src.Name)))
	defer span.End()

	res := Result{Source: src}

	data, err := a.searcher.Probe(ctx, endpoints.GraphQLURL, src.Query, question, fwd)
	if err == nil {
		var records []Record
		records, err = extractRecords(data, src.Field)
		if err == nil {
			res.Pieces = a.format(src, records, endpoints.Origin)
		}
	}

	if err != nil {
		res.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Warn("retrieval source failed",
			"source", src.Name,
			"error", err)
		return res
	}

	span.SetAttributes(attribute.Int("retrieval.pieces", len(res.Pieces)))
	a.logger.Debug("retrieval source completed",
		"source", src.Name,
		"pieces", len(res.Pieces))
	return res
}

func (a *Aggregator) format(src Source, records []Record, origin string) []Piece {
	n := len(records)
	if a.maxRecords > 0 && n > a.maxRecords {
		n = a.maxRecords
	}

	pieces := make([]Piece, 0, n)
	for _, rec := range records[:n] {
		pieces = append(pieces, formatPiece(src, rec, origin, a.excerptLen))
	}
	return pieces
}

// Assemble folds results into the context block. Failed and empty
// sources are skipped; if nothing remains the block is "".
func Assemble(results []Result) string {
	sections := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err != nil || len(r.Pieces) == 0 {
			continue
		}

		var sb strings.Builder
		sb.WriteString(r.Source.Header)
		for _, p := range r.Pieces {
			sb.WriteString("\n")
			sb.WriteString(p.Text)
		}
		sections = append(sections, sb.String())
	}

	if len(sections) == 0 {
		return ""
	}

	return Preamble + "\n\n" + strings.Join(sections, "\n\n")
}
