package streaming

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chatbot-backend/internal/llm"
)

type scriptedStream struct {
	fragments []llm.Fragment
	err       error
	recvHook  func(i int)

	pos    int
	closed bool
}

func (s *scriptedStream) Recv() (llm.Fragment, error) {
	if s.recvHook != nil {
		s.recvHook(s.pos)
	}
	if s.pos >= len(s.fragments) {
		if s.err != nil {
			return llm.Fragment{}, s.err
		}
		return llm.Fragment{}, io.EOF
	}
	frag := s.fragments[s.pos]
	s.pos++
	return frag, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

func withFixedMessageID(t *testing.T, id string) {
	t.Helper()
	orig := newMessageID
	newMessageID = func() string { return id }
	t.Cleanup(func() { newMessageID = orig })
}

func TestRelay_DeliversFragmentsInOrder(t *testing.T) {
	withFixedMessageID(t, "msg-1")
	stream := &scriptedStream{fragments: []llm.Fragment{
		{Text: "Hel"},
		{Text: "lo"},
		{Text: " world", Usage: &llm.Usage{PromptTokens: 7, CompletionTokens: 3}},
	}}
	rec := httptest.NewRecorder()

	result, err := Relay(context.Background(), rec, stream)
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Equal(t, "msg-1", result.MessageID)
	require.Equal(t, "Hello world", result.Text)
	require.NotNil(t, result.Usage)
	require.Equal(t, 3, result.Usage.CompletionTokens)
	require.True(t, stream.closed)

	require.Equal(t, ContentType, rec.Header().Get("Content-Type"))
	require.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	require.Equal(t, "v1", rec.Header().Get("x-vercel-ai-data-stream"))

	body := rec.Body.String()
	lines := strings.Split(strings.TrimSuffix(body, "\n"), "\n")
	require.Equal(t, []string{
		`f:{"messageId":"msg-1"}`,
		`0:"Hel"`,
		`0:"lo"`,
		`0:" world"`,
		`e:{"finishReason":"stop","usage":{"promptTokens":7,"completionTokens":3},"isContinued":false}`,
		`d:{"finishReason":"stop","usage":{"promptTokens":7,"completionTokens":3}}`,
	}, lines)
}

func TestRelay_NoUsageOmitsItFromFinishFrames(t *testing.T) {
	withFixedMessageID(t, "msg-2")
	stream := &scriptedStream{fragments: []llm.Fragment{{Text: "ok"}}}
	rec := httptest.NewRecorder()

	result, err := Relay(context.Background(), rec, stream)
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Nil(t, result.Usage)
	require.Contains(t, rec.Body.String(), `e:{"finishReason":"stop","isContinued":false}`)
	require.NotContains(t, rec.Body.String(), "usage")
}

func TestRelay_UpstreamErrorWritesTerminalFrame(t *testing.T) {
	withFixedMessageID(t, "msg-3")
	stream := &scriptedStream{
		fragments: []llm.Fragment{{Text: "par"}, {Text: "tial"}},
		err:       errors.New("connection reset"),
	}
	rec := httptest.NewRecorder()

	result, err := Relay(context.Background(), rec, stream)
	require.Error(t, err)
	require.False(t, result.Completed)
	require.Equal(t, "partial", result.Text)
	require.True(t, stream.closed)

	body := rec.Body.String()
	require.Contains(t, body, `0:"par"`)
	require.Contains(t, body, `3:"connection reset"`)
	require.NotContains(t, body, "finishReason")
}

func TestRelay_ContextCancellationStopsPromptly(t *testing.T) {
	withFixedMessageID(t, "msg-4")
	ctx, cancel := context.WithCancel(context.Background())
	stream := &scriptedStream{
		fragments: []llm.Fragment{{Text: "one"}, {Text: "two"}, {Text: "three"}},
		recvHook: func(i int) {
			if i == 1 {
				cancel()
			}
		},
	}
	rec := httptest.NewRecorder()

	result, err := Relay(ctx, rec, stream)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, result.Completed)
	require.True(t, stream.closed)
	require.NotContains(t, rec.Body.String(), "finishReason")
}

func TestRelay_SkipsEmptyFragments(t *testing.T) {
	withFixedMessageID(t, "msg-5")
	stream := &scriptedStream{fragments: []llm.Fragment{
		{Text: "a"},
		{Usage: &llm.Usage{CompletionTokens: 1}},
	}}
	rec := httptest.NewRecorder()

	result, err := Relay(context.Background(), rec, stream)
	require.NoError(t, err)
	require.Equal(t, "a", result.Text)
	require.NotNil(t, result.Usage)
	require.NotContains(t, rec.Body.String(), `0:""`)
}

func TestWriteErrorStream(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorStream(rec, "generation failed")

	require.Equal(t, ContentType, rec.Header().Get("Content-Type"))
	require.Equal(t, "e:error\nd:{\"message\":\"generation failed\"}\n\n", rec.Body.String())
}
