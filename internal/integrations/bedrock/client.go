// Package bedrock implements the model provider contract on top of Amazon
// Bedrock using the Anthropic-style message payload.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	bedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/llm"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	defaultMaxTokens = 2048
)

// bedrockAPI is the minimal Bedrock runtime interface required by Client.
// *bedrockruntime.Client from aws-sdk-go-v2 satisfies this interface.
type bedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

// Client generates responses through a Claude model hosted on Bedrock.
type Client struct {
	api       bedrockAPI
	modelID   string
	maxTokens int
}

// NewClient creates a Client for the given model id.
func NewClient(api bedrockAPI, modelID string) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock: api must not be nil")
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, errors.New("bedrock: model id must not be empty")
	}
	return &Client{api: api, modelID: modelID, maxTokens: defaultMaxTokens}, nil
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type invokeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
}

// newInvokeBody maps a transcript onto the Anthropic message schema. System
// messages go into the dedicated system field; Bedrock rejects them inline.
func (c *Client) newInvokeBody(msgs []domain.ChatMessage) ([]byte, error) {
	req := invokeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        c.maxTokens,
	}
	var system []string
	for _, m := range msgs {
		if m.Role == string(domain.RoleSystem) {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, message{
			Role:    m.Role,
			Content: []contentBlock{{Type: "text", Text: m.Content}},
		})
	}
	req.System = strings.Join(system, "\n\n")
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: no non-system messages to send")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal request: %w", err)
	}
	return body, nil
}

// Complete returns a full single-shot response for a system+user prompt.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := c.newInvokeBody([]domain.ChatMessage{
		{Role: string(domain.RoleSystem), Content: system},
		{Role: string(domain.RoleUser), Content: user},
	})
	if err != nil {
		return "", err
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: InvokeModel: %w", err)
	}

	var raw struct {
		Content []contentBlock `json:"content"`
	}
	if err := json.Unmarshal(out.Body, &raw); err != nil {
		return "", fmt.Errorf("bedrock: decode response: %w", err)
	}
	var text strings.Builder
	for _, block := range raw.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// StreamChat opens a streaming generation through
// InvokeModelWithResponseStream.
func (c *Client) StreamChat(ctx context.Context, msgs []domain.ChatMessage) (llm.TokenStream, error) {
	body, err := c.newInvokeBody(msgs)
	if err != nil {
		return nil, err
	}

	out, err := c.api.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: InvokeModelWithResponseStream: %w", err)
	}

	es := out.GetStream()
	return &eventStream{
		events:    es.Events(),
		streamErr: es.Err,
		closer:    es.Close,
	}, nil
}

// streamEvent is the union of chunk payloads we care about. Claude emits
// message_start, content_block_delta, message_delta and message_stop events.
type streamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type eventStream struct {
	events    <-chan brtypes.ResponseStream
	streamErr func() error
	closer    func() error

	done         bool
	promptTokens int
	usage        *llm.Usage
}

func (s *eventStream) Recv() (llm.Fragment, error) {
	if s.done {
		return llm.Fragment{}, io.EOF
	}
	for event := range s.events {
		part, ok := event.(*brtypes.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal(part.Value.Bytes, &ev); err != nil {
			return llm.Fragment{}, fmt.Errorf("bedrock: decode stream event: %w", err)
		}
		switch ev.Type {
		case "message_start":
			if ev.Message != nil {
				s.promptTokens = ev.Message.Usage.InputTokens
			}
		case "content_block_delta":
			if ev.Delta.Text != "" {
				return llm.Fragment{Text: ev.Delta.Text}, nil
			}
		case "message_delta":
			if ev.Usage != nil {
				s.usage = &llm.Usage{
					PromptTokens:     s.promptTokens,
					CompletionTokens: ev.Usage.OutputTokens,
				}
			}
		case "message_stop":
			s.done = true
			if s.usage != nil {
				usage := s.usage
				s.usage = nil
				return llm.Fragment{Usage: usage}, nil
			}
			return llm.Fragment{}, io.EOF
		}
	}
	s.done = true
	if err := s.streamErr(); err != nil {
		return llm.Fragment{}, fmt.Errorf("bedrock: read stream: %w", err)
	}
	if s.usage != nil {
		usage := s.usage
		s.usage = nil
		return llm.Fragment{Usage: usage}, nil
	}
	return llm.Fragment{}, io.EOF
}

func (s *eventStream) Close() error {
	return s.closer()
}
