package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/llm"
)

const defaultModel = "gpt-4o-mini"

// maxSSELineBytes bounds a single "data:" line in a streamed response.
const maxSSELineBytes = 1 << 20

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model         string               `json:"model"`
	Messages      []domain.ChatMessage `json:"messages"`
	Stream        bool                 `json:"stream,omitempty"`
	StreamOptions *streamOptions       `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// chatResponse is the minimal non-streaming response shape.
type chatResponse struct {
	Choices []struct {
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

// chatChunk is one streamed SSE payload.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused OpenAI-compatible client for chat completions.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	getter     Getter
	keyParam   string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client backed by the given parameter getter for API
// key retrieval. The key is fetched from the parameter store on first use
// and reused for the lifetime of the process.
func NewClient(ps Getter, keyParam string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("openai: parameter getter must not be nil")
	}
	keyParam = strings.TrimSpace(keyParam)
	if keyParam == "" {
		return nil, errors.New("openai: key parameter name must not be empty")
	}
	c := &Client{
		baseURL:    "https://api.openai.com/v1",
		model:      defaultModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		getter:     ps,
		keyParam:   keyParam,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = c.getter.GetParameter(ctx, c.keyParam)
		if c.keyErr == nil && strings.TrimSpace(c.apiKey) == "" {
			c.keyErr = errors.New("openai: API key parameter is empty")
		}
	})
	return c.apiKey, c.keyErr
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

func (c *Client) newChatRequest(ctx context.Context, payload chatRequest) (*http.Request, string, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return nil, "", err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("openai: marshal request: %w", err)
	}
	url := chatURL(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, url, nil
}

// Complete returns a full single-shot response for a system+user prompt.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req, url, err := c.newChatRequest(ctx, chatRequest{
		Model: c.model,
		Messages: []domain.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", statusError(res, url)
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("openai: read response body: %w", err)
	}
	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return payload.Choices[0].Message.Content, nil
}

// StreamChat opens a streaming chat completion. The returned stream yields
// delta fragments in arrival order and attaches usage to the final one when
// the API reports it. Closing the stream cancels the upstream request.
func (c *Client) StreamChat(ctx context.Context, messages []domain.ChatMessage) (llm.TokenStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	req, url, err := c.newChatRequest(streamCtx, chatRequest{
		Model:         c.model,
		Messages:      messages,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	})
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	res, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("openai: stream request failed: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		serr := statusError(res, url)
		_ = res.Body.Close()
		cancel()
		return nil, serr
	}

	scanner := bufio.NewScanner(res.Body)
	// One SSE line carries a whole JSON chunk; the default 64 KiB token
	// limit is too small for large deltas.
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineBytes)
	return &sseStream{body: res.Body, scanner: scanner, cancel: cancel}, nil
}

// sseStream reads "data:" lines off a server-sent-events body until the
// [DONE] sentinel.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
	done    bool
	pending *llm.Usage
}

func (s *sseStream) Recv() (llm.Fragment, error) {
	if s.done {
		return llm.Fragment{}, io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.done = true
			if s.pending != nil {
				usage := s.pending
				s.pending = nil
				return llm.Fragment{Usage: usage}, nil
			}
			return llm.Fragment{}, io.EOF
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return llm.Fragment{}, fmt.Errorf("openai: decode stream chunk: %w", err)
		}
		frag := llm.Fragment{}
		if chunk.Usage != nil {
			frag.Usage = &llm.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
			}
		}
		if len(chunk.Choices) > 0 {
			frag.Text = chunk.Choices[0].Delta.Content
		}
		if frag.Text == "" && frag.Usage == nil {
			continue
		}
		// Usage arrives in its own trailing chunk; hold it until [DONE] so
		// the fragment order seen by the relay matches arrival order.
		if frag.Text == "" && frag.Usage != nil {
			s.pending = frag.Usage
			continue
		}
		return frag, nil
	}
	if err := s.scanner.Err(); err != nil {
		return llm.Fragment{}, fmt.Errorf("openai: read stream: %w", err)
	}
	s.done = true
	return llm.Fragment{}, io.EOF
}

func (s *sseStream) Close() error {
	s.cancel()
	return s.body.Close()
}

func statusError(res *http.Response, url string) error {
	buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
}
