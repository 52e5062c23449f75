package usecase

import (
	"context"
	"errors"
	"strings"

	"chatbot-backend/internal/llm"
)

// TitleService turns the first message of a conversation into a short title
// with a single-shot model call.
type TitleService struct {
	provider llm.Provider
}

// NewTitleService creates a TitleService.
func NewTitleService(provider llm.Provider) (*TitleService, error) {
	if provider == nil {
		return nil, errors.New("usecase: provider must not be nil")
	}
	return &TitleService{provider: provider}, nil
}

// GenerateTitle produces a title for the given message text. The prompt
// constrains the model to 80 characters without quotes or colons; the
// result is clamped again locally in case the model ignores it.
func (s *TitleService) GenerateTitle(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", newError(ErrorInvalidInput, "empty_message", nil)
	}
	title, err := s.provider.Complete(ctx, titleSystemPrompt, text)
	if err != nil {
		return "", upstreamError("generate_title", err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "", newError(ErrorUpstream, "empty_title_response", nil)
	}
	return clampTitle(title), nil
}
