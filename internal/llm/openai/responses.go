//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package openai

import (
	"context"
	"io"
	"net/http"

	"github.com/storefront/assistant-relay/internal/llm"
)

// ResponsesProvider implements llm.Streamer over the Responses API.
type ResponsesProvider struct {
	client *Client
	model  string
}

// NewResponsesProvider creates a new Responses API provider.
func NewResponsesProvider(apiKey string, opts ...ResponsesOption) *ResponsesProvider {
	p := &ResponsesProvider{
		client: NewClient(apiKey),
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ResponsesOption configures the provider.
type ResponsesOption func(*ResponsesProvider)

// WithModel sets the model.
func WithModel(model string) ResponsesOption {
	return func(p *ResponsesProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithClient sets a custom client.
func WithClient(client *Client) ResponsesOption {
	return func(p *ResponsesProvider) {
		p.client = client
	}
}

// responsesRequest is the request format for the responses API.
type responsesRequest struct {
	Model  string        `json:"model"`
	Input  []llm.Message `json:"input"`
	Stream bool          `json:"stream"`
}

// OpenStream starts a streamed response and returns its body once the
// service has answered 2xx. A missing key fails before any network call.
func (p *ResponsesProvider) OpenStream(
	ctx context.Context,
	req llm.StreamRequest,
) (io.ReadCloser, error) {
	if !p.client.HasAPIKey() {
		return nil, llm.ErrMissingAPIKey
	}

	resp, err := p.client.request(ctx, http.MethodPost, "/responses", responsesRequest{
		Model:  p.model,
		Input:  req.Input,
		Stream: true,
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		return nil, parseError(resp)
	}

	return resp.Body, nil
}

// ModelName returns the model name.
func (p *ResponsesProvider) ModelName() string {
	return p.model
}

// Ensure ResponsesProvider implements the interface.
var _ llm.Streamer = (*ResponsesProvider)(nil)
