package domain

// Visibility controls who may read a chat transcript.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Role identifies the author of a message turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Chat is the metadata row of a conversation thread. Every chat has exactly
// one owner and one metadata row.
type Chat struct {
	ChatID     string
	UserID     string
	Title      string
	Visibility Visibility
	CreatedAt  string
}

// Message is a single persisted conversation turn. Messages are immutable
// once written and totally ordered within a chat by their sort key.
type Message struct {
	ChatID      string
	MessageID   string
	UserID      string
	Role        Role
	Content     string
	Attachments string
	CreatedAt   string
}

// Vote records a thumbs up/down on a message. Upserted, one per message.
type Vote struct {
	ChatID    string
	MessageID string
	IsUpvoted bool
}

// Stream records a generation stream opened against a chat. Append-only.
type Stream struct {
	ChatID    string
	StreamID  string
	CreatedAt string
}

// ChatMessage is the provider-agnostic chat message shape sent to LLM
// integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
