// Package record owns the single-table item shapes: the mapping between
// typed entities and DynamoDB attribute maps, the partition/sort-key
// formulas, and the index names. No other package may spell these out.
//
// The item layout is the wire contract with the store and must stay stable
// across versions; changing it requires a table/index migration.
package record

const (
	// DefaultUsersTable and friends are the table names used when no
	// override is configured.
	DefaultUsersTable   = "Users"
	DefaultChatsTable   = "Chats"
	DefaultAnswersTable = "Answers"
)

// Users table: PK=user_id. Four GSIs support lookup by email, by acquisition
// source + creation time, by billing customer id, and by subscription id.
const (
	IndexUsersByEmail    = "GSI1-Email"
	IndexUsersBySource   = "GSI2-UsersBySource"
	IndexUsersByCustomer = "GSI3-StripeCustomer"
	IndexUsersBySubID    = "GSI4-Subscription"
)

// Chats table: PK=chat_id, SK=sk. Chat metadata, messages, votes and stream
// records are colocated under the chat's partition key so a full
// conversation is one range query.
const (
	IndexChatsByUser = "GSI1-ChatsByUser"
	IndexMessageByID = "GSI2-MessageById"
	IndexMsgsByUser  = "GSI3-MsgsByUser"
)

// Sort-key discriminators within a chat partition.
const (
	SortKeyMeta     = "META"
	SortPrefixMsg   = "MSG#"
	SortPrefixVote  = "VOTE#"
	SortPrefixStr   = "STR#"
	sortKeyMaxRange = "\uffff"
)

// Item type discriminators.
const (
	TypeChat    = "CHAT"
	TypeMessage = "MESSAGE"
	TypeVote    = "VOTE"
	TypeStream  = "STREAM"
)

// Attribute names referenced in key conditions and expressions.
const (
	AttrUserID        = "user_id"
	AttrEmail         = "email"
	AttrSource        = "source"
	AttrCreatedAt     = "created_at"
	AttrChatID        = "chat_id"
	AttrSortKey       = "sk"
	AttrChatCreatedAt = "chat_created_at"
	AttrMessageID     = "message_id"
	AttrVisibility    = "visibility"
	AttrTitle         = "title"
	AttrRole          = "role"
	AttrTimestamp     = "timestamp"
)

// MessageSortKey builds the sort key for a message. The creation timestamp
// gives chronological order; the message id suffix breaks ties so two
// messages written in the same instant never collide.
func MessageSortKey(createdAt, messageID string) string {
	return SortPrefixMsg + createdAt + "#" + messageID
}

// VoteSortKey builds the sort key for a vote row.
func VoteSortKey(messageID string) string {
	return SortPrefixVote + messageID
}

// StreamSortKey builds the sort key for a stream registry row.
func StreamSortKey(createdAt, streamID string) string {
	return SortPrefixStr + createdAt + "#" + streamID
}

// MessageSortKeyRange returns the [from, to] sort-key bounds covering every
// message created at or after the given timestamp.
func MessageSortKeyRange(fromCreatedAt string) (string, string) {
	return SortPrefixMsg + fromCreatedAt, SortPrefixMsg + sortKeyMaxRange
}
