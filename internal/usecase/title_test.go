package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/llm"
)

// completeProvider fakes the single-shot completion path.
type completeProvider struct {
	out       string
	err       error
	gotSystem string
	gotUser   string
}

func (p *completeProvider) Complete(_ context.Context, system, user string) (string, error) {
	p.gotSystem = system
	p.gotUser = user
	return p.out, p.err
}

func (p *completeProvider) StreamChat(context.Context, []domain.ChatMessage) (llm.TokenStream, error) {
	return nil, errors.New("not implemented")
}

type status429Error struct{}

func (status429Error) Error() string       { return "rate limited" }
func (status429Error) HTTPStatusCode() int { return 429 }

func TestGenerateTitle_HappyPath(t *testing.T) {
	provider := &completeProvider{out: "  Planning a trip to Kyoto  "}
	svc, err := NewTitleService(provider)
	require.NoError(t, err)

	title, err := svc.GenerateTitle(context.Background(), "I want to visit Kyoto in spring, what should I plan?")
	require.NoError(t, err)
	require.Equal(t, "Planning a trip to Kyoto", title)
	require.Equal(t, titleSystemPrompt, provider.gotSystem)
}

func TestGenerateTitle_EmptyMessage(t *testing.T) {
	svc, err := NewTitleService(&completeProvider{})
	require.NoError(t, err)

	_, err = svc.GenerateTitle(context.Background(), "   ")
	require.Error(t, err)
	require.Equal(t, ErrorInvalidInput, CodeOf(err))
}

func TestGenerateTitle_ClampsOverlongResult(t *testing.T) {
	provider := &completeProvider{out: strings.Repeat("long title ", 20)}
	svc, err := NewTitleService(provider)
	require.NoError(t, err)

	title, err := svc.GenerateTitle(context.Background(), "hello")
	require.NoError(t, err)
	require.LessOrEqual(t, len(title), maxTitleLen)
}

func TestGenerateTitle_ClampsOnRuneBoundary(t *testing.T) {
	provider := &completeProvider{out: strings.Repeat("日本語", 40)}
	svc, err := NewTitleService(provider)
	require.NoError(t, err)

	title, err := svc.GenerateTitle(context.Background(), "hello")
	require.NoError(t, err)
	require.True(t, utf8.ValidString(title))
	require.Equal(t, maxTitleLen, utf8.RuneCountInString(title))
}

func TestGenerateTitle_UpstreamErrors(t *testing.T) {
	svc, err := NewTitleService(&completeProvider{err: errors.New("boom")})
	require.NoError(t, err)
	_, err = svc.GenerateTitle(context.Background(), "hello")
	require.Equal(t, ErrorUpstream, CodeOf(err))

	svc, err = NewTitleService(&completeProvider{err: status429Error{}})
	require.NoError(t, err)
	_, err = svc.GenerateTitle(context.Background(), "hello")
	require.Equal(t, ErrorRateLimited, CodeOf(err), "provider 429s surface as rate limiting")
}

func TestGenerateTitle_EmptyResponse(t *testing.T) {
	svc, err := NewTitleService(&completeProvider{out: "  "})
	require.NoError(t, err)
	_, err = svc.GenerateTitle(context.Background(), "hello")
	require.Equal(t, ErrorUpstream, CodeOf(err))
}
