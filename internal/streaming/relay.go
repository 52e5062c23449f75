// Package streaming delivers model output to HTTP clients as it arrives,
// using the data-stream frame format the frontend already speaks:
//
//	f:{"messageId":"<uuid>"}\n        first frame
//	0:<json-encoded text>\n           one per fragment, in arrival order
//	3:<json-encoded error message>\n  terminal error marker
//	e:{"finishReason":"stop",...}\n   step finish
//	d:{"finishReason":"stop",...}\n   finish
package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"chatbot-backend/internal/llm"
)

// ContentType is the media type of a relayed response.
const ContentType = "text/event-stream"

// Result summarizes a finished relay.
type Result struct {
	// MessageID is the id announced in the first frame.
	MessageID string
	// Text is the concatenation of every fragment delivered to the client.
	Text string
	// Completed is true only when the upstream finished cleanly and the
	// finish frames were written.
	Completed bool
	// Usage is the provider's token accounting, when reported.
	Usage *llm.Usage
}

var newMessageID = uuid.NewString

// Relay forwards fragments from stream to w until the stream ends, the
// upstream fails, or the client goes away. Fragments are flushed as they
// arrive; nothing is buffered beyond the frame being written.
//
// On upstream failure mid-stream a terminal error frame is emitted and the
// error returned; the relay never retries (a fresh generation is a new
// request). When ctx is done (client disconnect or server shutdown) the
// stream is closed promptly so the upstream generation is cancelled, and
// ctx.Err() is returned.
func Relay(ctx context.Context, w http.ResponseWriter, stream llm.TokenStream) (Result, error) {
	defer func() { _ = stream.Close() }()

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("x-vercel-ai-data-stream", "v1")

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	result := Result{MessageID: newMessageID()}
	if _, err := fmt.Fprintf(w, "f:{\"messageId\":%s}\n", jsonString(result.MessageID)); err != nil {
		return result, fmt.Errorf("streaming: write first frame: %w", err)
	}
	flush()

	var text strings.Builder
	for {
		select {
		case <-ctx.Done():
			result.Text = text.String()
			return result, ctx.Err()
		default:
		}

		frag, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Client may still be connected; tell it the stream is dead.
			_, _ = fmt.Fprintf(w, "3:%s\n", jsonString(err.Error()))
			flush()
			result.Text = text.String()
			return result, fmt.Errorf("streaming: upstream: %w", err)
		}

		if frag.Usage != nil {
			result.Usage = frag.Usage
		}
		if frag.Text == "" {
			continue
		}
		text.WriteString(frag.Text)
		if _, err := fmt.Fprintf(w, "0:%s\n", jsonString(frag.Text)); err != nil {
			result.Text = text.String()
			return result, fmt.Errorf("streaming: write fragment: %w", err)
		}
		flush()
	}

	result.Text = text.String()
	if err := writeFinishFrames(w, result.Usage); err != nil {
		return result, err
	}
	flush()
	result.Completed = true
	return result, nil
}

func writeFinishFrames(w io.Writer, usage *llm.Usage) error {
	type stepFinish struct {
		FinishReason string     `json:"finishReason"`
		Usage        *llm.Usage `json:"usage,omitempty"`
		IsContinued  bool       `json:"isContinued"`
	}
	type finish struct {
		FinishReason string     `json:"finishReason"`
		Usage        *llm.Usage `json:"usage,omitempty"`
	}

	step, err := json.Marshal(stepFinish{FinishReason: "stop", Usage: usage})
	if err != nil {
		return fmt.Errorf("streaming: marshal step finish: %w", err)
	}
	done, err := json.Marshal(finish{FinishReason: "stop", Usage: usage})
	if err != nil {
		return fmt.Errorf("streaming: marshal finish: %w", err)
	}
	if _, err := fmt.Fprintf(w, "e:%s\nd:%s\n", step, done); err != nil {
		return fmt.Errorf("streaming: write finish frames: %w", err)
	}
	return nil
}

// WriteErrorStream emits the pre-stream error shape used when generation
// could not start at all.
func WriteErrorStream(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", ContentType)
	_, _ = fmt.Fprintf(w, "e:error\nd:{\"message\":%s}\n\n", jsonString(message))
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func jsonString(s string) string {
	raw, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(raw)
}
