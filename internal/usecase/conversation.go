package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/llm"
	"chatbot-backend/internal/repository"
	"chatbot-backend/internal/streaming"
)

const (
	defaultQuotaLimit  = 100
	defaultQuotaWindow = 24 * time.Hour
	maxTitleLen        = 80
)

// ChatStore is the persistence surface the conversation service depends on.
// *repository.ChatRepository satisfies this interface.
type ChatStore interface {
	GetChat(ctx context.Context, chatID string) (domain.Chat, error)
	GetChatWithMessages(ctx context.Context, chatID string) (repository.ChatWithMessages, error)
	GetMessages(ctx context.Context, chatID string) ([]domain.Message, error)
	ListChatsForUser(ctx context.Context, userID string, limit int, cursor string) (repository.ChatPage, error)
	AppendMessage(ctx context.Context, chat domain.Chat, msg domain.Message) (domain.Message, error)
	SaveMessages(ctx context.Context, msgs []domain.Message) error
	GetMessageByID(ctx context.Context, messageID string) (domain.Message, error)
	RenameChat(ctx context.Context, chatID, title string) error
	UpdateChatVisibility(ctx context.Context, chatID string, visibility domain.Visibility) error
	DeleteChat(ctx context.Context, chatID string) error
	DeleteMessagesAfter(ctx context.Context, chatID, timestamp string) error
	VoteMessage(ctx context.Context, vote domain.Vote) error
	GetVotesForChat(ctx context.Context, chatID string) ([]domain.Vote, error)
	CreateStream(ctx context.Context, chatID, streamID string) (domain.Stream, error)
	GetStreamIDs(ctx context.Context, chatID string) ([]string, error)
	CountUserMessagesSince(ctx context.Context, userID, since string) (int, error)
}

// Sink delivers a token stream to the client and reports what was sent.
// The streaming relay is the production sink.
type Sink func(ctx context.Context, stream llm.TokenStream) (streaming.Result, error)

// ConversationService owns chat lifecycle, transcript access rules and
// response generation.
type ConversationService struct {
	chats       ChatStore
	provider    llm.Provider
	quotaLimit  int
	quotaWindow time.Duration

	now   func() time.Time
	newID func() string
}

// NewConversationService creates a ConversationService. Non-positive quota
// arguments fall back to the defaults.
func NewConversationService(chats ChatStore, provider llm.Provider, quotaLimit int, quotaWindow time.Duration) (*ConversationService, error) {
	if chats == nil {
		return nil, errors.New("usecase: chat store must not be nil")
	}
	if provider == nil {
		return nil, errors.New("usecase: provider must not be nil")
	}
	if quotaLimit <= 0 {
		quotaLimit = defaultQuotaLimit
	}
	if quotaWindow <= 0 {
		quotaWindow = defaultQuotaWindow
	}
	return &ConversationService{
		chats:       chats,
		provider:    provider,
		quotaLimit:  quotaLimit,
		quotaWindow: quotaWindow,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

// StartChat creates a chat owned by userID with its first user message. The
// two rows are written atomically; no chat exists if the message write fails.
func (s *ConversationService) StartChat(ctx context.Context, userID, firstMessage string) (domain.Chat, domain.Message, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Chat{}, domain.Message{}, newError(ErrorInvalidInput, "empty_user_id", nil)
	}
	firstMessage = strings.TrimSpace(firstMessage)
	if firstMessage == "" {
		return domain.Chat{}, domain.Message{}, newError(ErrorInvalidInput, "empty_message", nil)
	}

	chat := domain.Chat{
		ChatID:     s.newID(),
		UserID:     userID,
		Title:      defaultTitle(firstMessage),
		Visibility: domain.VisibilityPrivate,
		CreatedAt:  s.timestamp(),
	}
	msg, err := s.chats.AppendMessage(ctx, chat, domain.Message{
		ChatID:  chat.ChatID,
		UserID:  userID,
		Role:    domain.RoleUser,
		Content: firstMessage,
	})
	if err != nil {
		return domain.Chat{}, domain.Message{}, storeError("start_chat", err)
	}
	return chat, msg, nil
}

// ContinueChat appends a user message to an existing chat and returns the
// full transcript in order. Only the owner may continue a chat.
func (s *ConversationService) ContinueChat(ctx context.Context, chatID, content, requestingUserID string) ([]domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, newError(ErrorInvalidInput, "empty_message", nil)
	}
	chat, err := s.ownedChat(ctx, chatID, requestingUserID, "continue_chat")
	if err != nil {
		return nil, err
	}

	if _, err := s.chats.AppendMessage(ctx, chat, domain.Message{
		ChatID:  chat.ChatID,
		UserID:  requestingUserID,
		Role:    domain.RoleUser,
		Content: content,
	}); err != nil {
		return nil, storeError("continue_chat_append", err)
	}

	msgs, err := s.chats.GetMessages(ctx, chatID)
	if err != nil {
		return nil, storeError("continue_chat_transcript", err)
	}
	return msgs, nil
}

// GetTranscript returns chat metadata with its ordered messages. Private
// chats are readable by their owner only; public chats by anyone.
func (s *ConversationService) GetTranscript(ctx context.Context, chatID, requestingUserID string) (repository.ChatWithMessages, error) {
	cwm, err := s.chats.GetChatWithMessages(ctx, chatID)
	if err != nil {
		return repository.ChatWithMessages{}, storeError("get_transcript", err)
	}
	if err := readableBy(cwm.Chat, requestingUserID); err != nil {
		return repository.ChatWithMessages{}, err
	}
	return cwm, nil
}

// GetChat returns chat metadata under the transcript visibility rules.
func (s *ConversationService) GetChat(ctx context.Context, chatID, requestingUserID string) (domain.Chat, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return domain.Chat{}, storeError("get_chat", err)
	}
	if err := readableBy(chat, requestingUserID); err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// ListChats returns a page of the user's chats, most recent first.
func (s *ConversationService) ListChats(ctx context.Context, userID string, limit int, cursor string) (repository.ChatPage, error) {
	if strings.TrimSpace(userID) == "" {
		return repository.ChatPage{}, newError(ErrorInvalidInput, "empty_user_id", nil)
	}
	page, err := s.chats.ListChatsForUser(ctx, userID, limit, cursor)
	if err != nil {
		return repository.ChatPage{}, storeError("list_chats", err)
	}
	return page, nil
}

// RenameChat sets a new title. Owner only.
func (s *ConversationService) RenameChat(ctx context.Context, chatID, title, requestingUserID string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return newError(ErrorInvalidInput, "empty_title", nil)
	}
	if _, err := s.ownedChat(ctx, chatID, requestingUserID, "rename_chat"); err != nil {
		return err
	}
	if err := s.chats.RenameChat(ctx, chatID, title); err != nil {
		return storeError("rename_chat", err)
	}
	return nil
}

// SetVisibility flips a chat between private and public. Owner only.
func (s *ConversationService) SetVisibility(ctx context.Context, chatID string, visibility domain.Visibility, requestingUserID string) error {
	if visibility != domain.VisibilityPrivate && visibility != domain.VisibilityPublic {
		return newError(ErrorInvalidInput, "bad_visibility", nil)
	}
	if _, err := s.ownedChat(ctx, chatID, requestingUserID, "set_visibility"); err != nil {
		return err
	}
	if err := s.chats.UpdateChatVisibility(ctx, chatID, visibility); err != nil {
		return storeError("set_visibility", err)
	}
	return nil
}

// DeleteChat removes the chat and everything under its partition. Owner only.
func (s *ConversationService) DeleteChat(ctx context.Context, chatID, requestingUserID string) error {
	if _, err := s.ownedChat(ctx, chatID, requestingUserID, "delete_chat"); err != nil {
		return err
	}
	if err := s.chats.DeleteChat(ctx, chatID); err != nil {
		return storeError("delete_chat", err)
	}
	return nil
}

// SaveMessages bulk-writes pre-built turns into an owned chat, filling in
// ids and timestamps where absent. Used for client-side message sync.
func (s *ConversationService) SaveMessages(ctx context.Context, chatID, requestingUserID string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return newError(ErrorInvalidInput, "no_messages", nil)
	}
	if _, err := s.ownedChat(ctx, chatID, requestingUserID, "save_messages"); err != nil {
		return err
	}
	for i := range msgs {
		msgs[i].ChatID = chatID
		if msgs[i].MessageID == "" {
			msgs[i].MessageID = s.newID()
		}
		if msgs[i].CreatedAt == "" {
			msgs[i].CreatedAt = s.timestamp()
		}
	}
	if err := s.chats.SaveMessages(ctx, msgs); err != nil {
		return storeError("save_messages", err)
	}
	return nil
}

// GetMessage resolves a message by id under the visibility rules of its
// chat.
func (s *ConversationService) GetMessage(ctx context.Context, messageID, requestingUserID string) (domain.Message, error) {
	msg, err := s.chats.GetMessageByID(ctx, messageID)
	if err != nil {
		return domain.Message{}, storeError("get_message", err)
	}
	chat, err := s.chats.GetChat(ctx, msg.ChatID)
	if err != nil {
		return domain.Message{}, storeError("get_message_chat", err)
	}
	if err := readableBy(chat, requestingUserID); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// DeleteMessagesAfter trims a chat's tail from the given timestamp on,
// including votes on the removed messages. Owner only.
func (s *ConversationService) DeleteMessagesAfter(ctx context.Context, chatID, timestamp, requestingUserID string) error {
	if strings.TrimSpace(timestamp) == "" {
		return newError(ErrorInvalidInput, "empty_timestamp", nil)
	}
	if _, err := s.ownedChat(ctx, chatID, requestingUserID, "delete_messages_after"); err != nil {
		return err
	}
	if err := s.chats.DeleteMessagesAfter(ctx, chatID, timestamp); err != nil {
		return storeError("delete_messages_after", err)
	}
	return nil
}

// VoteMessage records a thumbs up/down on a message of an owned chat.
func (s *ConversationService) VoteMessage(ctx context.Context, chatID, messageID, requestingUserID string, isUpvoted bool) error {
	if _, err := s.ownedChat(ctx, chatID, requestingUserID, "vote_message"); err != nil {
		return err
	}
	if err := s.chats.VoteMessage(ctx, domain.Vote{ChatID: chatID, MessageID: messageID, IsUpvoted: isUpvoted}); err != nil {
		return storeError("vote_message", err)
	}
	return nil
}

// GetVotes lists votes for a chat under the transcript visibility rules.
func (s *ConversationService) GetVotes(ctx context.Context, chatID, requestingUserID string) ([]domain.Vote, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, storeError("get_votes_chat", err)
	}
	if err := readableBy(chat, requestingUserID); err != nil {
		return nil, err
	}
	votes, err := s.chats.GetVotesForChat(ctx, chatID)
	if err != nil {
		return nil, storeError("get_votes", err)
	}
	return votes, nil
}

// RegisterStream records a generation stream id against an owned chat.
func (s *ConversationService) RegisterStream(ctx context.Context, chatID, streamID, requestingUserID string) (domain.Stream, error) {
	if strings.TrimSpace(streamID) == "" {
		streamID = s.newID()
	}
	if _, err := s.ownedChat(ctx, chatID, requestingUserID, "register_stream"); err != nil {
		return domain.Stream{}, err
	}
	stream, err := s.chats.CreateStream(ctx, chatID, streamID)
	if err != nil {
		return domain.Stream{}, storeError("register_stream", err)
	}
	return stream, nil
}

// StreamIDs lists the stream ids registered against an owned chat, oldest
// first.
func (s *ConversationService) StreamIDs(ctx context.Context, chatID, requestingUserID string) ([]string, error) {
	if _, err := s.ownedChat(ctx, chatID, requestingUserID, "stream_ids"); err != nil {
		return nil, err
	}
	ids, err := s.chats.GetStreamIDs(ctx, chatID)
	if err != nil {
		return nil, storeError("stream_ids", err)
	}
	return ids, nil
}

// MessageCount returns how many user messages the user sent in the last N
// hours.
func (s *ConversationService) MessageCount(ctx context.Context, userID string, hours int) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, newError(ErrorInvalidInput, "empty_user_id", nil)
	}
	if hours <= 0 {
		return 0, newError(ErrorInvalidInput, "bad_hours", nil)
	}
	since := s.now().UTC().Add(-time.Duration(hours) * time.Hour).Format(time.RFC3339Nano)
	count, err := s.chats.CountUserMessagesSince(ctx, userID, since)
	if err != nil {
		return 0, storeError("message_count", err)
	}
	return count, nil
}

// GenerateResult summarizes a finished generation.
type GenerateResult struct {
	MessageID string
	Text      string
	Usage     *llm.Usage
	// Persisted is true when the assistant turn was written to storage,
	// which only happens after a clean completion.
	Persisted bool
}

// Generate streams a model response for the chat's transcript through sink,
// persisting the assistant turn only on clean completion. A stream row is
// registered before the provider call so clients can resume bookkeeping.
func (s *ConversationService) Generate(ctx context.Context, chatID, requestingUserID string, sink Sink) (GenerateResult, error) {
	if sink == nil {
		return GenerateResult{}, newError(ErrorInvalidInput, "nil_sink", nil)
	}
	chat, err := s.ownedChat(ctx, chatID, requestingUserID, "generate")
	if err != nil {
		return GenerateResult{}, err
	}

	count, err := s.chats.CountUserMessagesSince(ctx, requestingUserID,
		s.now().UTC().Add(-s.quotaWindow).Format(time.RFC3339Nano))
	if err != nil {
		return GenerateResult{}, storeError("generate_quota", err)
	}
	if count >= s.quotaLimit {
		return GenerateResult{}, newError(ErrorRateLimited, "message_quota_exceeded", nil)
	}

	history, err := s.chats.GetMessages(ctx, chatID)
	if err != nil {
		return GenerateResult{}, storeError("generate_history", err)
	}
	if len(history) == 0 {
		return GenerateResult{}, newError(ErrorInvalidInput, "empty_transcript", nil)
	}

	transcript := make([]domain.ChatMessage, 0, len(history)+1)
	transcript = append(transcript, domain.ChatMessage{Role: string(domain.RoleSystem), Content: chatSystemPrompt})
	for _, m := range history {
		transcript = append(transcript, domain.ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	if _, err := s.chats.CreateStream(ctx, chatID, s.newID()); err != nil {
		return GenerateResult{}, storeError("generate_stream_row", err)
	}

	stream, err := s.provider.StreamChat(ctx, transcript)
	if err != nil {
		return GenerateResult{}, upstreamError("generate_open_stream", err)
	}

	relayed, relayErr := sink(ctx, stream)
	result := GenerateResult{MessageID: relayed.MessageID, Text: relayed.Text, Usage: relayed.Usage}
	if relayErr != nil {
		if errors.Is(relayErr, context.Canceled) || errors.Is(relayErr, context.DeadlineExceeded) {
			return result, newError(ErrorInternal, "client_disconnected", relayErr)
		}
		return result, upstreamError("generate_relay", relayErr)
	}
	if !relayed.Completed {
		return result, nil
	}

	if _, err := s.chats.AppendMessage(ctx, chat, domain.Message{
		ChatID:    chatID,
		MessageID: relayed.MessageID,
		UserID:    chat.UserID,
		Role:      domain.RoleAssistant,
		Content:   relayed.Text,
	}); err != nil {
		return result, storeError("generate_persist", err)
	}
	result.Persisted = true
	return result, nil
}

// ownedChat loads the chat and enforces that requester is its owner. The
// forbidden case is reported distinctly from not-found so a caller probing
// foreign chat ids learns the chat exists but not its contents.
func (s *ConversationService) ownedChat(ctx context.Context, chatID, requestingUserID, reason string) (domain.Chat, error) {
	if strings.TrimSpace(chatID) == "" {
		return domain.Chat{}, newError(ErrorInvalidInput, "empty_chat_id", nil)
	}
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return domain.Chat{}, storeError(reason, err)
	}
	if chat.UserID != requestingUserID {
		return domain.Chat{}, newError(ErrorForbidden, reason+"_not_owner", nil)
	}
	return chat, nil
}

func readableBy(chat domain.Chat, requestingUserID string) error {
	if chat.Visibility == domain.VisibilityPublic {
		return nil
	}
	if chat.UserID != requestingUserID {
		return newError(ErrorForbidden, "private_chat", nil)
	}
	return nil
}

func (s *ConversationService) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func defaultTitle(firstMessage string) string {
	return clampTitle(strings.Join(strings.Fields(firstMessage), " "))
}

// clampTitle bounds a title to maxTitleLen characters. The cut is on a rune
// boundary so a multi-byte character is never split into invalid UTF-8.
func clampTitle(title string) string {
	runes := []rune(title)
	if len(runes) > maxTitleLen {
		title = strings.TrimSpace(string(runes[:maxTitleLen]))
	}
	return title
}
