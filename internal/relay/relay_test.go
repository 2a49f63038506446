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
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/storefront/assistant-relay/internal/llm"
)

// chunkedBody returns one chunk per Read, then err (io.EOF by default).
type chunkedBody struct {
	chunks []string
	err    error
	closed int
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if len(b.chunks) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		return 0, io.EOF
	}
	n := copy(p, b.chunks[0])
	if n < len(b.chunks[0]) {
		b.chunks[0] = b.chunks[0][n:]
	} else {
		b.chunks = b.chunks[1:]
	}
	return n, nil
}

func (b *chunkedBody) Close() error {
	b.closed++
	return nil
}

type fakeStreamer struct {
	body    *chunkedBody
	err     error
	request llm.StreamRequest
	calls   int
}

func (f *fakeStreamer) OpenStream(_ context.Context, req llm.StreamRequest) (io.ReadCloser, error) {
	f.calls++
	f.request = req
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func (f *fakeStreamer) ModelName() string { return "test-model" }

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) emit(ev Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func terminalCount(events []Event) int {
	n := 0
	for _, ev := range events {
		if ev.Terminal() {
			n++
		}
	}
	return n
}

var userMessages = []llm.Message{{Role: llm.RoleUser, Content: "Do you sell boots?"}}

func TestRelay_DeltaSplitAcrossReads(t *testing.T) {
	defer goleak.VerifyNone(t)

	body := &chunkedBody{chunks: []string{`data: {"delta":"he`, "llo\"}\n\n"}}
	streamer := &fakeStreamer{body: body}
	rec := &recorder{}

	err := New(streamer).Run(context.Background(), userMessages, "", rec.emit)
	require.NoError(t, err)

	require.Equal(t, []Event{DeltaEvent("hello"), DoneEvent()}, rec.events)
	require.Equal(t, 1, body.closed)
}

func TestRelay_ResponsesStream(t *testing.T) {
	defer goleak.VerifyNone(t)

	stream := strings.Join([]string{
		"event: response.created\ndata: {\"type\":\"response.created\"}\n\n",
		"event: response.output_text.delta\ndata: {\"type\":\"response.output_text.delta\",\"delta\":\"We \"}\n\n",
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\"do.\"}\r\n\r\n",
		"data: not json\n\n",
		"data: {\"type\":\"response.completed\"}\n\n",
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\"late\"}\n\n",
		"data: [DONE]\n\n",
	}, "")
	body := &chunkedBody{chunks: []string{stream}}
	rec := &recorder{}

	err := New(&fakeStreamer{body: body}, WithReadSize(7)).
		Run(context.Background(), userMessages, "", rec.emit)
	require.NoError(t, err)

	require.Equal(t, []Event{
		DeltaEvent("We "),
		DeltaEvent("do."),
		DoneEvent(),
	}, rec.events)
	require.Equal(t, 1, body.closed)
}

func TestRelay_TrailingFrameWithoutSeparator(t *testing.T) {
	body := &chunkedBody{chunks: []string{
		"data: {\"delta\":\"a\"}\n\n",
		"data: {\"done\":true}",
	}}
	rec := &recorder{}

	require.NoError(t, New(&fakeStreamer{body: body}).
		Run(context.Background(), userMessages, "", rec.emit))

	require.Equal(t, []Event{DeltaEvent("a"), DoneEvent()}, rec.events)
}

func TestRelay_SynthesizesDone(t *testing.T) {
	body := &chunkedBody{chunks: []string{"data: {\"delta\":\"partial\"}\n\n"}}
	rec := &recorder{}

	require.NoError(t, New(&fakeStreamer{body: body}).
		Run(context.Background(), userMessages, "", rec.emit))

	require.Equal(t, []Event{DeltaEvent("partial"), DoneEvent()}, rec.events)
}

func TestRelay_UpstreamErrorEvent(t *testing.T) {
	body := &chunkedBody{chunks: []string{
		"data: {\"delta\":\"a\"}\n\n" +
			"data: {\"type\":\"error\",\"message\":\"overloaded\"}\n\n" +
			"data: {\"type\":\"response.completed\"}\n\n",
	}}
	rec := &recorder{}

	err := New(&fakeStreamer{body: body}).
		Run(context.Background(), userMessages, "", rec.emit)
	require.ErrorIs(t, err, ErrUpstreamFailed)

	require.Equal(t, []Event{DeltaEvent("a"), ErrorEvent("overloaded")}, rec.events)
	require.Equal(t, 1, body.closed)
}

func TestRelay_EmptyErrorFieldKeepsDelta(t *testing.T) {
	body := &chunkedBody{chunks: []string{
		"data: {\"delta\":\"hi\",\"error\":\"\"}\n\n" +
			"data: {\"delta\":\" there\",\"error\":null}\n\n" +
			"data: {\"done\":true,\"error\":{}}\n\n",
	}}
	rec := &recorder{}

	require.NoError(t, New(&fakeStreamer{body: body}).
		Run(context.Background(), userMessages, "", rec.emit))

	require.Equal(t, []Event{DeltaEvent("hi"), DeltaEvent(" there"), DoneEvent()}, rec.events)
}

func TestRelay_ReadError(t *testing.T) {
	body := &chunkedBody{
		chunks: []string{"data: {\"delta\":\"a\"}\n\n"},
		err:    errors.New("connection reset"),
	}
	rec := &recorder{}

	err := New(&fakeStreamer{body: body}).
		Run(context.Background(), userMessages, "", rec.emit)
	require.Error(t, err)

	require.Len(t, rec.events, 2)
	require.Equal(t, DeltaEvent("a"), rec.events[0])
	require.Contains(t, rec.events[1].Error, "connection reset")
	require.Equal(t, 1, terminalCount(rec.events))
	require.Equal(t, 1, body.closed)
}

func TestRelay_MissingCredential(t *testing.T) {
	streamer := &fakeStreamer{err: llm.ErrMissingAPIKey}
	rec := &recorder{}

	err := New(streamer).Run(context.Background(), userMessages, "", rec.emit)
	require.ErrorIs(t, err, llm.ErrMissingAPIKey)

	require.Equal(t, []Event{ErrorEvent(llm.ErrMissingAPIKey.Error())}, rec.events)
}

func TestRelay_UpstreamStatusError(t *testing.T) {
	streamer := &fakeStreamer{err: &llm.Error{
		Code:       llm.ErrCodeInvalidKey,
		Message:    "API error (status 401): Incorrect API key provided",
		StatusCode: 401,
	}}
	rec := &recorder{}

	err := New(streamer).Run(context.Background(), userMessages, "", rec.emit)
	require.Error(t, err)

	require.Len(t, rec.events, 1)
	require.Contains(t, rec.events[0].Error, "401")
	require.Contains(t, rec.events[0].Error, "Incorrect API key provided")
}

func TestRelay_CallerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body := &chunkedBody{err: context.Canceled}
	rec := &recorder{}

	err := New(&fakeStreamer{body: body}).Run(ctx, userMessages, "", rec.emit)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, rec.events)
	require.Equal(t, 1, body.closed)
}

func TestRelay_EmitFailureStops(t *testing.T) {
	body := &chunkedBody{chunks: []string{"data: {\"delta\":\"a\"}\n\ndata: {\"delta\":\"b\"}\n\n"}}
	rec := &recorder{err: errors.New("broken pipe")}

	err := New(&fakeStreamer{body: body}).
		Run(context.Background(), userMessages, "", rec.emit)
	require.ErrorContains(t, err, "broken pipe")
	require.Equal(t, 1, body.closed)
}

func TestRelay_ContextPrepended(t *testing.T) {
	streamer := &fakeStreamer{body: &chunkedBody{}}
	rec := &recorder{}

	require.NoError(t, New(streamer).
		Run(context.Background(), userMessages, "[Products]\n- Boot", rec.emit))

	require.Equal(t, []llm.Message{
		{Role: llm.RoleSystem, Content: "[Products]\n- Boot"},
		userMessages[0],
	}, streamer.request.Input)
}

func TestRelay_NoContextNoPreamble(t *testing.T) {
	streamer := &fakeStreamer{body: &chunkedBody{}}
	rec := &recorder{}

	require.NoError(t, New(streamer).
		Run(context.Background(), userMessages, "", rec.emit))

	require.Equal(t, userMessages, streamer.request.Input)
	for _, m := range streamer.request.Input {
		require.NotEqual(t, llm.RoleSystem, m.Role)
	}
}

func TestRelay_ExactlyOneTerminal(t *testing.T) {
	streams := []string{
		"",
		"data: {\"done\":true}\n\ndata: {\"done\":true}\n\n",
		"data: {\"error\":\"x\"}\n\ndata: {\"done\":true}\n\n",
		"data: {\"type\":\"response.failed\"}\n\ndata: {\"type\":\"error\"}\n\n",
		"data: {\"delta\":\"a\"}\n\ndata: {\"delta\":\"b\"}",
		": ping\n\n\n\n",
	}

	for _, stream := range streams {
		body := &chunkedBody{chunks: []string{stream}}
		rec := &recorder{}

		_ = New(&fakeStreamer{body: body}, WithReadSize(3)).
			Run(context.Background(), userMessages, "", rec.emit)

		require.Equal(t, 1, terminalCount(rec.events), "stream %q", stream)
		require.True(t, rec.events[len(rec.events)-1].Terminal(), "stream %q", stream)
		require.Equal(t, 1, body.closed, "stream %q", stream)
	}
}
