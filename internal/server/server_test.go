//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Portions copyright (c) 2025, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/storefront/assistant-relay/internal/config"
	"github.com/storefront/assistant-relay/internal/graphql"
	"github.com/storefront/assistant-relay/internal/llm"
	"github.com/storefront/assistant-relay/internal/relay"
)

// mockContextBuilder implements ContextBuilder for testing.
type mockContextBuilder struct {
	context   string
	calls     int
	question  string
	endpoints config.Endpoints
	forward   graphql.Forward
}

func (m *mockContextBuilder) Aggregate(
	_ context.Context,
	endpoints config.Endpoints,
	question string,
	fwd graphql.Forward,
) string {
	m.calls++
	m.question = question
	m.endpoints = endpoints
	m.forward = fwd
	return m.context
}

// mockRelayer implements Relayer by emitting a fixed script.
type mockRelayer struct {
	events   []relay.Event
	calls    int
	messages []llm.Message
	context  string
}

func (m *mockRelayer) Run(
	_ context.Context,
	messages []llm.Message,
	retrievalContext string,
	emit relay.EmitFunc,
) error {
	m.calls++
	m.messages = messages
	m.context = retrievalContext
	for _, ev := range m.events {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddress = "127.0.0.1"
	cfg.Site.GraphQLURL = "http://backend.internal/graphql"
	return cfg
}

func testServer() (*Server, *mockContextBuilder, *mockRelayer) {
	cb := &mockContextBuilder{}
	rl := &mockRelayer{events: []relay.Event{relay.DeltaEvent("Hello"), relay.DoneEvent()}}
	return New(testConfig(), cb, rl, nil), cb, rl
}

func TestServer_ShutdownWhileStarting(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Port = 0
	srv := New(cfg, &mockContextBuilder{}, &mockRelayer{}, nil)

	if got := srv.Addr(); got != "127.0.0.1:0" {
		t.Errorf("expected address '127.0.0.1:0', got '%s'", got)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("expected http.ErrServerClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after Shutdown")
	}
}

func TestServer_ShutdownBeforeListen(t *testing.T) {
	srv, _, _ := testServer()

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := testServer()

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", resp.Status)
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	srv, _, _ := testServer()

	req := httptest.NewRequest(http.MethodPost, "/v1/health", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
	}
}

func TestChatEndpoint_Options(t *testing.T) {
	for _, path := range []string{ChatPath, LegacyChatPath} {
		srv, cb, rl := testServer()

		req := httptest.NewRequest(http.MethodOptions, path, nil)
		w := httptest.NewRecorder()

		srv.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusOK, w.Code)
		}
		if w.Body.Len() != 0 {
			t.Errorf("%s: expected empty body, got %q", path, w.Body.String())
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("%s: expected permissive CORS origin, got %q", path, got)
		}
		if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "POST") {
			t.Errorf("%s: expected POST in allowed methods", path)
		}
		if cb.calls != 0 || rl.calls != 0 {
			t.Errorf("%s: preflight must not reach retrieval or relay", path)
		}
	}
}

func TestChatEndpoint_OptionsWithCORSMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORS = config.CORSConfig{Enabled: true, AllowedOrigins: []string{"https://shop.example.com"}}
	srv := New(cfg, &mockContextBuilder{}, &mockRelayer{}, nil)

	req := httptest.NewRequest(http.MethodOptions, ChatPath, nil)
	req.Header.Set("Origin", "https://shop.example.com")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected chat CORS origin '*', got %q", got)
	}
}

func TestChatEndpoint_MethodNotAllowed(t *testing.T) {
	srv, _, rl := testServer()

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, ChatPath, nil)
		w := httptest.NewRecorder()

		srv.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status %d, got %d", method, http.StatusMethodNotAllowed, w.Code)
		}
		if got := w.Header().Get("Allow"); got != "POST, OPTIONS" {
			t.Errorf("%s: expected Allow 'POST, OPTIONS', got %q", method, got)
		}
	}

	if rl.calls != 0 {
		t.Errorf("relay should not run, ran %d times", rl.calls)
	}
}

func TestChatEndpoint_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{"messages":`, "invalid request body"},
		{"empty messages", `{"messages":[]}`, "messages are required"},
		{"missing messages", `{}`, "messages are required"},
		{"unknown role", `{"messages":[{"role":"tool","content":"x"}]}`, "unsupported role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, cb, rl := testServer()

			req := httptest.NewRequest(http.MethodPost, ChatPath, strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			srv.Handler().ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct == "text/event-stream" {
				t.Error("a rejected request must not open an event stream")
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if !strings.Contains(resp.Error.Message, tt.want) {
				t.Errorf("expected message containing %q, got %q", tt.want, resp.Error.Message)
			}
			if cb.calls != 0 || rl.calls != 0 {
				t.Error("rejected request must not reach retrieval or relay")
			}
		})
	}
}

func TestChatEndpoint_BodyTooLarge(t *testing.T) {
	srv, _, _ := testServer()

	body := `{"messages":[{"role":"user","content":"` +
		strings.Repeat("a", MaxChatBodyBytes) + `"}]}`
	req := httptest.NewRequest(http.MethodPost, ChatPath, strings.NewReader(body))
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status %d, got %d", http.StatusRequestEntityTooLarge, w.Code)
	}
}

func TestChatEndpoint_Stream(t *testing.T) {
	srv, cb, rl := testServer()
	cb.context = "[Products]\n- Trail Boot"

	body := `{"messages":[
		{"role":"user","content":"hi"},
		{"role":"assistant","content":"Hello! How can I help?"},
		{"role":"user","content":"Do you sell boots?"}
	]}`
	req := httptest.NewRequest(http.MethodPost, LegacyChatPath, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer shopper")
	req.Header.Set("Cookie", "session=abc")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	headers := map[string]string{
		"Content-Type":                "text/event-stream",
		"Cache-Control":               "no-cache",
		"Connection":                  "keep-alive",
		"X-Accel-Buffering":           "no",
		"Access-Control-Allow-Origin": "*",
	}
	for k, v := range headers {
		if got := w.Header().Get(k); got != v {
			t.Errorf("expected %s %q, got %q", k, v, got)
		}
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}

	want := "data: {\"delta\":\"Hello\"}\n\ndata: {\"done\":true}\n\n"
	if w.Body.String() != want {
		t.Errorf("unexpected stream:\n%q\nwant:\n%q", w.Body.String(), want)
	}

	if cb.question != "Do you sell boots?" {
		t.Errorf("expected last user message as question, got %q", cb.question)
	}
	if cb.endpoints.GraphQLURL != "http://backend.internal/graphql" {
		t.Errorf("unexpected backend endpoint %q", cb.endpoints.GraphQLURL)
	}
	if cb.forward.Authorization != "Bearer shopper" || cb.forward.Cookie != "session=abc" {
		t.Errorf("credentials not forwarded: %+v", cb.forward)
	}
	if rl.context != cb.context {
		t.Errorf("relay got context %q, want %q", rl.context, cb.context)
	}
	if len(rl.messages) != 3 {
		t.Errorf("expected 3 messages relayed, got %d", len(rl.messages))
	}
}

func TestSSEFormat(t *testing.T) {
	w := httptest.NewRecorder()

	if err := sendSSE(w, w, relay.ErrorEvent("upstream unavailable")); err != nil {
		t.Fatalf("sendSSE failed: %v", err)
	}

	sseData := w.Body.String()
	if !strings.HasPrefix(sseData, "data: ") {
		t.Error("SSE data should start with 'data: '")
	}
	if !strings.HasSuffix(sseData, "\n\n") {
		t.Error("SSE data should end with '\\n\\n'")
	}
	if !w.Flushed {
		t.Error("SSE event should be flushed")
	}
}

func TestOpenAPIEndpoint(t *testing.T) {
	srv, _, _ := testServer()

	req := httptest.NewRequest(http.MethodGet, "/v1/openapi.json", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	// Check Content-Type
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
	}

	// Verify response is valid OpenAPI spec
	var spec map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&spec); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	// Check version
	if spec["openapi"] != "3.0.3" {
		t.Errorf("expected OpenAPI version '3.0.3', got '%v'", spec["openapi"])
	}

	paths, ok := spec["paths"].(map[string]interface{})
	if !ok {
		t.Fatal("OpenAPI spec missing 'paths' field")
	}
	for _, p := range []string{"/health", "/chat"} {
		if paths[p] == nil {
			t.Errorf("OpenAPI spec missing path %s", p)
		}
	}
	if spec["components"] == nil {
		t.Error("OpenAPI spec missing 'components' field")
	}

	// No route takes path or query parameters.
	for p, item := range paths {
		ops, _ := item.(map[string]interface{})
		for method, op := range ops {
			fields, _ := op.(map[string]interface{})
			if _, ok := fields["parameters"]; ok {
				t.Errorf("%s %s should not declare parameters", method, p)
			}
		}
	}
}

func TestRFC8631LinkHeader(t *testing.T) {
	srv, _, _ := testServer()

	// Test that Link header is present on all JSON API responses
	endpoints := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/health"},
		{http.MethodGet, "/v1/openapi.json"},
		{http.MethodGet, ChatPath},
	}

	for _, ep := range endpoints {
		req := httptest.NewRequest(ep.method, ep.path, nil)
		w := httptest.NewRecorder()
		srv.mux.ServeHTTP(w, req)

		link := w.Header().Get("Link")
		if link == "" {
			t.Errorf("%s %s: missing Link header", ep.method, ep.path)
			continue
		}
		if !strings.Contains(link, "</v1/openapi.json>") {
			t.Errorf("%s %s: Link header should reference /v1/openapi.json", ep.method, ep.path)
		}
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, _, _ := testServer()
	srv.mux.HandleFunc("GET /v1/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/panic", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}
