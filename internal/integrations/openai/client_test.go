package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/llm"
)

// fakeGetter is a minimal parameter getter stub for use within this package.
type fakeGetter struct {
	val    string
	err    error
	onCall func() // optional; called on each GetParameter invocation
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.val, f.err
}

// ---------------------------------------------------------------------------
// chatURL helper
// ---------------------------------------------------------------------------

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_NilGetter(t *testing.T) {
	_, err := NewClient(nil, "/chatbot/openai-key")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_EmptyKeyParam(t *testing.T) {
	_, err := NewClient(&fakeGetter{}, "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(&fakeGetter{}, "/chatbot/openai-key")
	require.NoError(t, err)
	require.Equal(t, "https://api.openai.com/v1", c.baseURL)
	require.Equal(t, defaultModel, c.model)
}

// ---------------------------------------------------------------------------
// resolveAPIKey caching behaviour
// ---------------------------------------------------------------------------

func TestResolveAPIKey_FetchedOnce(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: "sk-from-ssm"}
	g.onCall = func() { calls++ }
	c, err := NewClient(g, "/chatbot/openai-key")
	require.NoError(t, err)

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-from-ssm", key)

	_, _ = c.resolveAPIKey(context.Background())
	_, _ = c.resolveAPIKey(context.Background())
	require.Equal(t, 1, calls, "parameter store must only be called once per process lifetime")
}

func TestResolveAPIKey_EmptyValue(t *testing.T) {
	c, err := NewClient(&fakeGetter{val: "  "}, "/chatbot/openai-key")
	require.NoError(t, err)
	_, err = c.resolveAPIKey(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

// ---------------------------------------------------------------------------
// Complete
// ---------------------------------------------------------------------------

func TestComplete_HappyPath(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"A short title"}}]}`)
	}))
	defer srv.Close()

	c, err := NewClient(&fakeGetter{val: "sk-test"}, "/chatbot/openai-key",
		WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	text, err := c.Complete(context.Background(), "titles only", "summarize")
	require.NoError(t, err)
	require.Equal(t, "A short title", text)
	require.Equal(t, "Bearer sk-test", gotAuth)
}

func TestComplete_UpstreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(&fakeGetter{val: "sk-test"}, "/chatbot/openai-key",
		WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	var serr *HTTPStatusError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, http.StatusTooManyRequests, serr.HTTPStatusCode())
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c, err := NewClient(&fakeGetter{val: "sk-test"}, "/chatbot/openai-key",
		WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choices")
}

func TestComplete_KeyResolutionFailure(t *testing.T) {
	c, err := NewClient(&fakeGetter{err: errors.New("ssm down")}, "/chatbot/openai-key")
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	require.ErrorContains(t, err, "ssm down")
}

// ---------------------------------------------------------------------------
// StreamChat
// ---------------------------------------------------------------------------

func streamBody(lines ...string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n\n"
	}
	return out
}

func TestStreamChat_DeliversFragmentsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, streamBody(
			`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
			`data: {"choices":[{"delta":{"content":"lo"}}]}`,
			`data: {"choices":[],"usage":{"prompt_tokens":7,"completion_tokens":2}}`,
			`data: [DONE]`,
		))
	}))
	defer srv.Close()

	c, err := NewClient(&fakeGetter{val: "sk-test"}, "/chatbot/openai-key",
		WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	stream, err := c.StreamChat(context.Background(), []domain.ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	var text string
	var usage *llm.Usage
	for {
		frag, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		text += frag.Text
		if frag.Usage != nil {
			usage = frag.Usage
		}
	}
	require.Equal(t, "Hello", text)
	require.NotNil(t, usage)
	require.Equal(t, 7, usage.PromptTokens)
	require.Equal(t, 2, usage.CompletionTokens)

	_, err = stream.Recv()
	require.ErrorIs(t, err, io.EOF, "Recv after EOF must keep returning EOF")
}

func TestStreamChat_HandlesOversizedDataLine(t *testing.T) {
	big := strings.Repeat("a", 100*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, streamBody(
			`data: {"choices":[{"delta":{"content":"`+big+`"}}]}`,
			`data: [DONE]`,
		))
	}))
	defer srv.Close()

	c, err := NewClient(&fakeGetter{val: "sk-test"}, "/chatbot/openai-key",
		WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	stream, err := c.StreamChat(context.Background(), []domain.ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	frag, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, big, frag.Text)

	_, err = stream.Recv()
	require.ErrorIs(t, err, io.EOF)
}

func TestStreamChat_UpstreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient(&fakeGetter{val: "sk-test"}, "/chatbot/openai-key",
		WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	_, err = c.StreamChat(context.Background(), []domain.ChatMessage{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	var serr *HTTPStatusError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, http.StatusUnauthorized, serr.HTTPStatusCode())
}

func TestStreamChat_MalformedChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, streamBody(`data: {not json`))
	}))
	defer srv.Close()

	c, err := NewClient(&fakeGetter{val: "sk-test"}, "/chatbot/openai-key",
		WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	stream, err := c.StreamChat(context.Background(), []domain.ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	_, err = stream.Recv()
	require.Error(t, err)
	require.ErrorContains(t, err, "decode stream chunk")
}

func TestStreamChat_EndsWithoutDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, streamBody(`data: {"choices":[{"delta":{"content":"partial"}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(&fakeGetter{val: "sk-test"}, "/chatbot/openai-key",
		WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	stream, err := c.StreamChat(context.Background(), []domain.ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	frag, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, "partial", frag.Text)

	_, err = stream.Recv()
	require.ErrorIs(t, err, io.EOF)
}
