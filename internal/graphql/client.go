//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package graphql provides a minimal client for the storefront's
// GraphQL backend.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout = 10 * time.Second

	// maxResponseBytes bounds how much of a backend response is read.
	maxResponseBytes = 4 << 20
)

// Forward carries inbound request headers that are passed through to
// the backend verbatim. Neither value is interpreted.
type Forward struct {
	Authorization string
	Cookie        string
}

// ForwardFromRequest extracts pass-through headers from an inbound
// request.
func ForwardFromRequest(r *http.Request) Forward {
	return Forward{
		Authorization: r.Header.Get("Authorization"),
		Cookie:        r.Header.Get("Cookie"),
	}
}

// Executor runs a single GraphQL document. Client implements it; the
// prober depends on the interface so tests can script responses.
type Executor interface {
	Execute(
		ctx context.Context,
		endpoint, query string,
		variables map[string]any,
		fwd Forward,
	) (json.RawMessage, error)
}

// Client issues GraphQL requests over HTTP.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new GraphQL client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// request is the JSON body posted to the endpoint.
type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// response is the envelope returned by the endpoint.
type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []responseError `json:"errors"`
}

type responseError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// Execute posts one query and returns the data payload. Retrying or
// reshaping the request is left to the caller.
func (c *Client) Execute(
	ctx context.Context,
	endpoint, query string,
	variables map[string]any,
	fwd Forward,
) (json.RawMessage, error) {
	body, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if fwd.Authorization != "" {
		req.Header.Set("Authorization", fwd.Authorization)
	}
	if fwd.Cookie != "" {
		req.Header.Set("Cookie", fwd.Cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var gqlResp response
	if err := json.Unmarshal(raw, &gqlResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return nil, newQueryError(gqlResp.Errors)
	}

	return gqlResp.Data, nil
}

// Ensure Client implements the interface.
var _ Executor = (*Client)(nil)
