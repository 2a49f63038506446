//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package probe finds an accepted input shape for a search query whose
// schema is not known ahead of time.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/storefront/assistant-relay/internal/graphql"
)

// ErrAllVariantsFailed is returned when every variant was rejected
// without a classified schema error to report.
var ErrAllVariantsFailed = errors.New("all search variants failed")

// DefaultLimit is the page size sent when none is configured.
const DefaultLimit = 5

// InputVariable is the variable name every retrieval query declares.
const InputVariable = "input"

// schemaMismatch matches backend messages that mean "wrong input shape".
var schemaMismatch = regexp.MustCompile(
	`(?i)(variable "\$\w+" got invalid value|unknown (argument|field)|` +
		`field "[^"]+" is not defined by type|expected type|cannot represent|` +
		`unexpected variable|is not defined by input)`)

// Prober tries search variants in order against one endpoint.
type Prober struct {
	executor graphql.Executor
	variants []Variant
	limit    int
	logger   *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithVariants replaces the default variant list.
func WithVariants(variants []Variant) Option {
	return func(p *Prober) {
		p.variants = variants
	}
}

// WithLimit sets the page size sent with each variant.
func WithLimit(limit int) Option {
	return func(p *Prober) {
		if limit > 0 {
			p.limit = limit
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a prober over the given executor.
func New(executor graphql.Executor, opts ...Option) *Prober {
	p := &Prober{
		executor: executor,
		variants: DefaultVariants(),
		limit:    DefaultLimit,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe runs query with each variant in turn until one is accepted.
//
// A reshapeable rejection advances to the next variant. Any other error
// aborts immediately and is returned as is. Attempts are sequential: a
// variant is only tried after the previous one has been classified.
func (p *Prober) Probe(
	ctx context.Context,
	endpoint, query, question string,
	fwd graphql.Forward,
) (json.RawMessage, error) {
	var lastReshapeable error

	for i, v := range p.variants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vars := map[string]any{InputVariable: v.Build(question, p.limit)}
		data, err := p.executor.Execute(ctx, endpoint, query, vars, fwd)
		if err == nil {
			p.logger.Debug("search variant accepted",
				"variant", v.Name,
				"attempt", i+1)
			return data, nil
		}

		if !IsReshapeable(err) {
			p.logger.Debug("search variant failed fatally",
				"variant", v.Name,
				"attempt", i+1,
				"error", err)
			return nil, err
		}

		p.logger.Debug("search variant rejected",
			"variant", v.Name,
			"attempt", i+1,
			"error", err)
		lastReshapeable = err
	}

	if lastReshapeable != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllVariantsFailed, lastReshapeable)
	}
	return nil, ErrAllVariantsFailed
}

// IsReshapeable reports whether err means the input shape was rejected,
// so a differently shaped request might succeed.
func IsReshapeable(err error) bool {
	qe, ok := graphql.AsQueryError(err)
	if !ok {
		return false
	}
	switch qe.Code {
	case graphql.CodeBadUserInput, graphql.CodeValidationFailed:
		return true
	}
	return schemaMismatch.MatchString(qe.Message())
}
