package record

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"chatbot-backend/internal/domain"
)

func validUser() domain.User {
	return domain.User{
		UserID:            "u-1",
		Email:             "a@x.com",
		Source:            domain.SourceEmail,
		PasswordHash:      "$2a$10$hash",
		CreatedAt:         "2026-08-25T10:00:00Z",
		StripeCustomerID:  "cus_123",
		CancelAtPeriodEnd: false,
	}
}

func TestUserRoundTrip(t *testing.T) {
	u := validUser()
	item, err := EncodeUser(u)
	require.NoError(t, err)
	got, err := DecodeUser(item)
	require.NoError(t, err)
	require.Equal(t, u, got)
}

func TestUserRoundTrip_AllSubscriptionFields(t *testing.T) {
	u := validUser()
	u.ActiveSubscriptionID = "sub_1"
	u.SubscriptionStatus = "active"
	u.PlanID = "plan_pro"
	u.CurrentPeriodStart = "2026-08-01T00:00:00Z"
	u.CurrentPeriodEnd = "2026-09-01T00:00:00Z"
	u.CancelAtPeriodEnd = true

	item, err := EncodeUser(u)
	require.NoError(t, err)
	got, err := DecodeUser(item)
	require.NoError(t, err)
	require.Equal(t, u, got)
}

func TestEncodeUser_MissingIndexedField(t *testing.T) {
	u := validUser()
	u.Email = ""
	_, err := EncodeUser(u)
	require.ErrorIs(t, err, ErrEncoding)
}

func TestDecodeUser_TypeMismatch(t *testing.T) {
	item, err := EncodeUser(validUser())
	require.NoError(t, err)
	item["created_at"] = &types.AttributeValueMemberN{Value: "12345"}
	_, err = DecodeUser(item)
	require.ErrorIs(t, err, ErrDecoding)
}

func TestChatRoundTrip(t *testing.T) {
	c := domain.Chat{
		ChatID:     "c-1",
		UserID:     "u-1",
		Title:      "Greetings",
		Visibility: domain.VisibilityPrivate,
		CreatedAt:  "2026-08-25T10:00:00Z",
	}
	item, err := EncodeChat(c)
	require.NoError(t, err)

	// The metadata row must carry the by-user index keys.
	require.Contains(t, item, AttrUserID)
	require.Contains(t, item, AttrChatCreatedAt)

	got, err := DecodeChat(item)
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestEncodeChat_MissingOwner(t *testing.T) {
	_, err := EncodeChat(domain.Chat{ChatID: "c-1", CreatedAt: "2026-08-25T10:00:00Z", Visibility: domain.VisibilityPrivate})
	require.ErrorIs(t, err, ErrEncoding)
}

func TestDecodeChat_RejectsMessageItem(t *testing.T) {
	m := validMessage()
	item, err := EncodeMessage(m)
	require.NoError(t, err)
	_, err = DecodeChat(item)
	require.ErrorIs(t, err, ErrDecoding)
}

func validMessage() domain.Message {
	return domain.Message{
		ChatID:    "c-1",
		MessageID: "m-1",
		UserID:    "u-1",
		Role:      domain.RoleUser,
		Content:   "hello",
		CreatedAt: "2026-08-25T10:00:00.000000001Z",
	}
}

func TestMessageRoundTrip(t *testing.T) {
	m := validMessage()
	item, err := EncodeMessage(m)
	require.NoError(t, err)

	// message_id and created_at feed GSI2/GSI3.
	require.Contains(t, item, AttrMessageID)
	require.Contains(t, item, AttrCreatedAt)

	got, err := DecodeMessage(item)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestMessageSortKeyOrdering(t *testing.T) {
	earlier := MessageSortKey("2026-08-25T10:00:00.000000001Z", "m-1")
	later := MessageSortKey("2026-08-25T10:00:00.000000002Z", "m-2")
	require.Less(t, earlier, later)

	// Same instant: the id suffix still makes the keys distinct.
	a := MessageSortKey("2026-08-25T10:00:00Z", "m-a")
	b := MessageSortKey("2026-08-25T10:00:00Z", "m-b")
	require.NotEqual(t, a, b)
}

func TestMessageSortKeyRange_CoversLateSuffixes(t *testing.T) {
	from, to := MessageSortKeyRange("2026-08-25T10:00:00Z")
	sk := MessageSortKey("2026-08-25T10:00:01Z", "zzzz")
	require.GreaterOrEqual(t, sk, from)
	require.LessOrEqual(t, sk, to)
}

func TestVoteRoundTrip(t *testing.T) {
	v := domain.Vote{ChatID: "c-1", MessageID: "m-1", IsUpvoted: true}
	item, err := EncodeVote(v)
	require.NoError(t, err)
	got, err := DecodeVote(item)
	require.NoError(t, err)
	require.Equal(t, v, got)
}

func TestStreamRoundTrip(t *testing.T) {
	s := domain.Stream{ChatID: "c-1", StreamID: "s-1", CreatedAt: "2026-08-25T10:00:00Z"}
	item, err := EncodeStream(s)
	require.NoError(t, err)
	got, err := DecodeStream(item)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestAnswerRoundTrip(t *testing.T) {
	a := domain.QuizAnswer{
		UserID:      "u-1",
		Timestamp:   "2026-08-25T10:00:00Z",
		QuestionID:  "q-7",
		Field:       "logic",
		Difficulty:  "medium",
		GivenAnswer: "42",
		Correct:     true,
	}
	item, err := EncodeAnswer(a)
	require.NoError(t, err)
	got, err := DecodeAnswer(item)
	require.NoError(t, err)
	require.Equal(t, a, got)
}

func TestEncodeAnswer_MissingKey(t *testing.T) {
	_, err := EncodeAnswer(domain.QuizAnswer{UserID: "u-1"})
	require.ErrorIs(t, err, ErrEncoding)
}
