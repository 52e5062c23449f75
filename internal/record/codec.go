package record

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"chatbot-backend/internal/domain"
)

// ErrEncoding reports an entity that cannot be flattened into an item,
// typically because a field required by an index is absent.
var ErrEncoding = errors.New("record: encoding error")

// ErrDecoding reports an item that cannot be reconstructed into a typed
// entity: a required attribute is missing or has the wrong type. Seeing it
// in production means schema drift or data corruption.
var ErrDecoding = errors.New("record: decoding error")

type userItem struct {
	UserID            string `dynamodbav:"user_id"`
	Email             string `dynamodbav:"email"`
	Source            string `dynamodbav:"source"`
	PasswordHash      string `dynamodbav:"password_hash,omitempty"`
	Provider          string `dynamodbav:"provider,omitempty"`
	ProviderAccountID string `dynamodbav:"provider_account_id,omitempty"`
	CreatedAt         string `dynamodbav:"created_at"`

	StripeCustomerID     string `dynamodbav:"stripe_customer_id,omitempty"`
	ActiveSubscriptionID string `dynamodbav:"active_subscription_id,omitempty"`
	SubscriptionStatus   string `dynamodbav:"subscription_status,omitempty"`
	PlanID               string `dynamodbav:"plan_id,omitempty"`
	CurrentPeriodStart   string `dynamodbav:"current_period_start,omitempty"`
	CurrentPeriodEnd     string `dynamodbav:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool   `dynamodbav:"cancel_at_period_end"`
}

type chatItem struct {
	ChatID        string `dynamodbav:"chat_id"`
	SK            string `dynamodbav:"sk"`
	Type          string `dynamodbav:"type"`
	UserID        string `dynamodbav:"user_id"`
	ChatCreatedAt string `dynamodbav:"chat_created_at"`
	Title         string `dynamodbav:"title"`
	Visibility    string `dynamodbav:"visibility"`
}

type messageItem struct {
	ChatID      string `dynamodbav:"chat_id"`
	SK          string `dynamodbav:"sk"`
	Type        string `dynamodbav:"type"`
	MessageID   string `dynamodbav:"message_id"`
	UserID      string `dynamodbav:"user_id"`
	Role        string `dynamodbav:"role"`
	Content     string `dynamodbav:"content"`
	Attachments string `dynamodbav:"attachments,omitempty"`
	CreatedAt   string `dynamodbav:"created_at"`
}

type voteItem struct {
	ChatID    string `dynamodbav:"chat_id"`
	SK        string `dynamodbav:"sk"`
	Type      string `dynamodbav:"type"`
	MessageID string `dynamodbav:"message_id"`
	IsUpvoted bool   `dynamodbav:"is_upvoted"`
}

type streamItem struct {
	ChatID    string `dynamodbav:"chat_id"`
	SK        string `dynamodbav:"sk"`
	Type      string `dynamodbav:"type"`
	StreamID  string `dynamodbav:"stream_id"`
	CreatedAt string `dynamodbav:"created_at"`
}

type answerItem struct {
	UserID      string `dynamodbav:"user_id"`
	Timestamp   string `dynamodbav:"timestamp"`
	QuestionID  string `dynamodbav:"question_id"`
	Field       string `dynamodbav:"field"`
	Difficulty  string `dynamodbav:"difficulty"`
	GivenAnswer string `dynamodbav:"given_answer"`
	Correct     bool   `dynamodbav:"correct"`
}

// EncodeUser flattens a User. user_id, email, source and created_at are key
// attributes (primary key plus GSI1/GSI2) and must be present.
func EncodeUser(u domain.User) (map[string]types.AttributeValue, error) {
	if u.UserID == "" || u.Email == "" || u.Source == "" || u.CreatedAt == "" {
		return nil, fmt.Errorf("%w: user requires user_id, email, source, created_at", ErrEncoding)
	}
	item, err := attributevalue.MarshalMap(userItem{
		UserID:               u.UserID,
		Email:                u.Email,
		Source:               string(u.Source),
		PasswordHash:         u.PasswordHash,
		Provider:             u.Provider,
		ProviderAccountID:    u.ProviderAccountID,
		CreatedAt:            u.CreatedAt,
		StripeCustomerID:     u.StripeCustomerID,
		ActiveSubscriptionID: u.ActiveSubscriptionID,
		SubscriptionStatus:   u.SubscriptionStatus,
		PlanID:               u.PlanID,
		CurrentPeriodStart:   u.CurrentPeriodStart,
		CurrentPeriodEnd:     u.CurrentPeriodEnd,
		CancelAtPeriodEnd:    u.CancelAtPeriodEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal user: %v", ErrEncoding, err)
	}
	return item, nil
}

// DecodeUser reconstructs a User from its item.
func DecodeUser(item map[string]types.AttributeValue) (domain.User, error) {
	var rec userItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return domain.User{}, fmt.Errorf("%w: unmarshal user: %v", ErrDecoding, err)
	}
	if rec.UserID == "" || rec.Email == "" || rec.Source == "" || rec.CreatedAt == "" {
		return domain.User{}, fmt.Errorf("%w: user item missing required attributes", ErrDecoding)
	}
	return domain.User{
		UserID:               rec.UserID,
		Email:                rec.Email,
		Source:               domain.Source(rec.Source),
		PasswordHash:         rec.PasswordHash,
		Provider:             rec.Provider,
		ProviderAccountID:    rec.ProviderAccountID,
		CreatedAt:            rec.CreatedAt,
		StripeCustomerID:     rec.StripeCustomerID,
		ActiveSubscriptionID: rec.ActiveSubscriptionID,
		SubscriptionStatus:   rec.SubscriptionStatus,
		PlanID:               rec.PlanID,
		CurrentPeriodStart:   rec.CurrentPeriodStart,
		CurrentPeriodEnd:     rec.CurrentPeriodEnd,
		CancelAtPeriodEnd:    rec.CancelAtPeriodEnd,
	}, nil
}

// EncodeChat flattens a chat metadata row. user_id and created_at also feed
// the by-user index and must be present.
func EncodeChat(c domain.Chat) (map[string]types.AttributeValue, error) {
	if c.ChatID == "" || c.UserID == "" || c.CreatedAt == "" {
		return nil, fmt.Errorf("%w: chat requires chat_id, user_id, created_at", ErrEncoding)
	}
	if c.Visibility == "" {
		return nil, fmt.Errorf("%w: chat requires visibility", ErrEncoding)
	}
	item, err := attributevalue.MarshalMap(chatItem{
		ChatID:        c.ChatID,
		SK:            SortKeyMeta,
		Type:          TypeChat,
		UserID:        c.UserID,
		ChatCreatedAt: c.CreatedAt,
		Title:         c.Title,
		Visibility:    string(c.Visibility),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal chat: %v", ErrEncoding, err)
	}
	return item, nil
}

// DecodeChat reconstructs chat metadata from its item.
func DecodeChat(item map[string]types.AttributeValue) (domain.Chat, error) {
	var rec chatItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return domain.Chat{}, fmt.Errorf("%w: unmarshal chat: %v", ErrDecoding, err)
	}
	if rec.Type != TypeChat || rec.SK != SortKeyMeta {
		return domain.Chat{}, fmt.Errorf("%w: item is not a chat metadata row", ErrDecoding)
	}
	if rec.ChatID == "" || rec.UserID == "" || rec.ChatCreatedAt == "" {
		return domain.Chat{}, fmt.Errorf("%w: chat item missing required attributes", ErrDecoding)
	}
	return domain.Chat{
		ChatID:     rec.ChatID,
		UserID:     rec.UserID,
		Title:      rec.Title,
		Visibility: domain.Visibility(rec.Visibility),
		CreatedAt:  rec.ChatCreatedAt,
	}, nil
}

// EncodeMessage flattens a message row. message_id, user_id and created_at
// feed GSI2/GSI3 and must be present.
func EncodeMessage(m domain.Message) (map[string]types.AttributeValue, error) {
	if m.ChatID == "" || m.MessageID == "" || m.CreatedAt == "" {
		return nil, fmt.Errorf("%w: message requires chat_id, message_id, created_at", ErrEncoding)
	}
	if m.UserID == "" || m.Role == "" {
		return nil, fmt.Errorf("%w: message requires user_id and role", ErrEncoding)
	}
	item, err := attributevalue.MarshalMap(messageItem{
		ChatID:      m.ChatID,
		SK:          MessageSortKey(m.CreatedAt, m.MessageID),
		Type:        TypeMessage,
		MessageID:   m.MessageID,
		UserID:      m.UserID,
		Role:        string(m.Role),
		Content:     m.Content,
		Attachments: m.Attachments,
		CreatedAt:   m.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal message: %v", ErrEncoding, err)
	}
	return item, nil
}

// DecodeMessage reconstructs a message from its item.
func DecodeMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	var rec messageItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return domain.Message{}, fmt.Errorf("%w: unmarshal message: %v", ErrDecoding, err)
	}
	if rec.Type != TypeMessage {
		return domain.Message{}, fmt.Errorf("%w: item is not a message row", ErrDecoding)
	}
	if rec.ChatID == "" || rec.MessageID == "" || rec.CreatedAt == "" || rec.Role == "" {
		return domain.Message{}, fmt.Errorf("%w: message item missing required attributes", ErrDecoding)
	}
	return domain.Message{
		ChatID:      rec.ChatID,
		MessageID:   rec.MessageID,
		UserID:      rec.UserID,
		Role:        domain.Role(rec.Role),
		Content:     rec.Content,
		Attachments: rec.Attachments,
		CreatedAt:   rec.CreatedAt,
	}, nil
}

// EncodeVote flattens a vote row.
func EncodeVote(v domain.Vote) (map[string]types.AttributeValue, error) {
	if v.ChatID == "" || v.MessageID == "" {
		return nil, fmt.Errorf("%w: vote requires chat_id and message_id", ErrEncoding)
	}
	item, err := attributevalue.MarshalMap(voteItem{
		ChatID:    v.ChatID,
		SK:        VoteSortKey(v.MessageID),
		Type:      TypeVote,
		MessageID: v.MessageID,
		IsUpvoted: v.IsUpvoted,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal vote: %v", ErrEncoding, err)
	}
	return item, nil
}

// DecodeVote reconstructs a vote from its item.
func DecodeVote(item map[string]types.AttributeValue) (domain.Vote, error) {
	var rec voteItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return domain.Vote{}, fmt.Errorf("%w: unmarshal vote: %v", ErrDecoding, err)
	}
	if rec.Type != TypeVote || rec.ChatID == "" || rec.MessageID == "" {
		return domain.Vote{}, fmt.Errorf("%w: vote item missing required attributes", ErrDecoding)
	}
	return domain.Vote{ChatID: rec.ChatID, MessageID: rec.MessageID, IsUpvoted: rec.IsUpvoted}, nil
}

// EncodeStream flattens a stream registry row.
func EncodeStream(s domain.Stream) (map[string]types.AttributeValue, error) {
	if s.ChatID == "" || s.StreamID == "" || s.CreatedAt == "" {
		return nil, fmt.Errorf("%w: stream requires chat_id, stream_id, created_at", ErrEncoding)
	}
	item, err := attributevalue.MarshalMap(streamItem{
		ChatID:    s.ChatID,
		SK:        StreamSortKey(s.CreatedAt, s.StreamID),
		Type:      TypeStream,
		StreamID:  s.StreamID,
		CreatedAt: s.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal stream: %v", ErrEncoding, err)
	}
	return item, nil
}

// DecodeStream reconstructs a stream row from its item.
func DecodeStream(item map[string]types.AttributeValue) (domain.Stream, error) {
	var rec streamItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return domain.Stream{}, fmt.Errorf("%w: unmarshal stream: %v", ErrDecoding, err)
	}
	if rec.Type != TypeStream || rec.ChatID == "" || rec.StreamID == "" {
		return domain.Stream{}, fmt.Errorf("%w: stream item missing required attributes", ErrDecoding)
	}
	return domain.Stream{ChatID: rec.ChatID, StreamID: rec.StreamID, CreatedAt: rec.CreatedAt}, nil
}

// EncodeAnswer flattens a quiz answer row.
func EncodeAnswer(a domain.QuizAnswer) (map[string]types.AttributeValue, error) {
	if a.UserID == "" || a.Timestamp == "" {
		return nil, fmt.Errorf("%w: answer requires user_id and timestamp", ErrEncoding)
	}
	item, err := attributevalue.MarshalMap(answerItem{
		UserID:      a.UserID,
		Timestamp:   a.Timestamp,
		QuestionID:  a.QuestionID,
		Field:       a.Field,
		Difficulty:  a.Difficulty,
		GivenAnswer: a.GivenAnswer,
		Correct:     a.Correct,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal answer: %v", ErrEncoding, err)
	}
	return item, nil
}

// DecodeAnswer reconstructs a quiz answer from its item.
func DecodeAnswer(item map[string]types.AttributeValue) (domain.QuizAnswer, error) {
	var rec answerItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return domain.QuizAnswer{}, fmt.Errorf("%w: unmarshal answer: %v", ErrDecoding, err)
	}
	if rec.UserID == "" || rec.Timestamp == "" {
		return domain.QuizAnswer{}, fmt.Errorf("%w: answer item missing required attributes", ErrDecoding)
	}
	return domain.QuizAnswer{
		UserID:      rec.UserID,
		Timestamp:   rec.Timestamp,
		QuestionID:  rec.QuestionID,
		Field:       rec.Field,
		Difficulty:  rec.Difficulty,
		GivenAnswer: rec.GivenAnswer,
		Correct:     rec.Correct,
	}, nil
}
