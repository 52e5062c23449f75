package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/record"
)

const (
	// DefaultPageSize bounds ListChatsForUser when the caller asks for
	// nothing specific.
	DefaultPageSize = 20
	// MaxPageSize is the hard ceiling on a single page.
	MaxPageSize = 100

	batchWriteChunk = 25
)

// dynamodbAPI is the minimal DynamoDB interface required by the
// repositories. Defined here for testability; *dynamodb.Client satisfies it.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// ChatWithMessages is a chat's metadata row plus its full ordered transcript.
type ChatWithMessages struct {
	Chat     domain.Chat
	Messages []domain.Message
}

// ChatPage is one page of chat summaries for a user, newest first.
type ChatPage struct {
	Chats      []domain.Chat
	NextCursor string
}

// ChatRepository issues the fixed access patterns against the chats table.
// It is the only component that knows the table's key layout, via the
// record package.
type ChatRepository struct {
	api         dynamodbAPI
	tableName   string
	maxAttempts int

	now   func() time.Time
	newID func() string
}

// NewChatRepository creates a ChatRepository over the given table.
func NewChatRepository(api dynamodbAPI, tableName string) (*ChatRepository, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &ChatRepository{
		api:         api,
		tableName:   tableName,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

// GetChat fetches a chat's metadata row. Consistent read so a caller that
// just wrote the chat sees it.
func (r *ChatRepository) GetChat(ctx context.Context, chatID string) (domain.Chat, error) {
	var out *dynamodb.GetItemOutput
	err := withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
		var err error
		out, err = r.api.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				record.AttrChatID:  &types.AttributeValueMemberS{Value: chatID},
				record.AttrSortKey: &types.AttributeValueMemberS{Value: record.SortKeyMeta},
			},
			ConsistentRead: aws.Bool(true),
		})
		return err
	})
	if err != nil {
		return domain.Chat{}, fmt.Errorf("repository: GetChat: %w", err)
	}
	if len(out.Item) == 0 {
		return domain.Chat{}, fmt.Errorf("repository: GetChat %q: %w", chatID, ErrNotFound)
	}
	chat, err := record.DecodeChat(out.Item)
	if err != nil {
		return domain.Chat{}, fmt.Errorf("repository: GetChat: %w", err)
	}
	return chat, nil
}

// GetChatWithMessages retrieves the metadata row and every message of a chat
// with one range query over the partition, messages in ascending sort-key
// (creation) order. ErrNotFound when no metadata row exists.
func (r *ChatRepository) GetChatWithMessages(ctx context.Context, chatID string) (ChatWithMessages, error) {
	var result ChatWithMessages
	var metaSeen bool

	var startKey map[string]types.AttributeValue
	for {
		var out *dynamodb.QueryOutput
		err := withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
			var err error
			out, err = r.api.Query(ctx, &dynamodb.QueryInput{
				TableName:              aws.String(r.tableName),
				KeyConditionExpression: aws.String("chat_id = :pk"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":pk": &types.AttributeValueMemberS{Value: chatID},
				},
				ScanIndexForward:  aws.Bool(true),
				ExclusiveStartKey: startKey,
				ConsistentRead:    aws.Bool(true),
			})
			return err
		})
		if err != nil {
			return ChatWithMessages{}, fmt.Errorf("repository: GetChatWithMessages query: %w", err)
		}

		for _, item := range out.Items {
			switch itemType(item) {
			case record.TypeChat:
				chat, err := record.DecodeChat(item)
				if err != nil {
					return ChatWithMessages{}, fmt.Errorf("repository: GetChatWithMessages: %w", err)
				}
				result.Chat = chat
				metaSeen = true
			case record.TypeMessage:
				msg, err := record.DecodeMessage(item)
				if err != nil {
					return ChatWithMessages{}, fmt.Errorf("repository: GetChatWithMessages: %w", err)
				}
				result.Messages = append(result.Messages, msg)
			}
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	if !metaSeen {
		return ChatWithMessages{}, fmt.Errorf("repository: GetChatWithMessages %q: %w", chatID, ErrNotFound)
	}
	return result, nil
}

// GetMessages returns a chat's messages in ascending creation order without
// the metadata row.
func (r *ChatRepository) GetMessages(ctx context.Context, chatID string) ([]domain.Message, error) {
	items, err := r.queryPrefix(ctx, chatID, record.SortPrefixMsg)
	if err != nil {
		return nil, fmt.Errorf("repository: GetMessages: %w", err)
	}
	msgs := make([]domain.Message, 0, len(items))
	for _, item := range items {
		msg, err := record.DecodeMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetMessages: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// ListChatsForUser pages through a user's chats, newest first, via the
// by-user index. The cursor is opaque to callers.
func (r *ChatRepository) ListChatsForUser(ctx context.Context, userID string, limit int, cursor string) (ChatPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	startKey, err := decodeCursor(cursor)
	if err != nil {
		return ChatPage{}, fmt.Errorf("repository: ListChatsForUser: %w", err)
	}

	var out *dynamodb.QueryOutput
	err = withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
		var err error
		out, err = r.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String(record.IndexChatsByUser),
			KeyConditionExpression: aws.String("user_id = :uid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid": &types.AttributeValueMemberS{Value: userID},
			},
			ScanIndexForward:  aws.Bool(false),
			Limit:             aws.Int32(int32(limit)),
			ExclusiveStartKey: startKey,
		})
		return err
	})
	if err != nil {
		return ChatPage{}, fmt.Errorf("repository: ListChatsForUser query: %w", err)
	}

	page := ChatPage{Chats: make([]domain.Chat, 0, len(out.Items))}
	for _, item := range out.Items {
		chat, err := record.DecodeChat(item)
		if err != nil {
			return ChatPage{}, fmt.Errorf("repository: ListChatsForUser: %w", err)
		}
		page.Chats = append(page.Chats, chat)
	}
	next, err := encodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return ChatPage{}, err
	}
	page.NextCursor = next
	return page, nil
}

// AppendMessage writes a message with a sort key strictly greater than every
// existing message in the chat, and creates the chat's metadata row when it
// is absent. Message id and timestamp are assigned here when empty; the id
// suffix on the sort key plus the attribute_not_exists guard keep concurrent
// appends from ever colliding.
//
// The metadata write is an if_not_exists update: a losing concurrent creator
// leaves the established row untouched instead of failing the append.
func (r *ChatRepository) AppendMessage(ctx context.Context, chat domain.Chat, msg domain.Message) (domain.Message, error) {
	if msg.MessageID == "" {
		msg.MessageID = r.newID()
	}
	if msg.CreatedAt == "" {
		msg.CreatedAt = r.now().UTC().Format(time.RFC3339Nano)
	}
	msg.ChatID = chat.ChatID
	if chat.CreatedAt == "" {
		chat.CreatedAt = msg.CreatedAt
	}

	msgItem, err := record.EncodeMessage(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("repository: AppendMessage: %w", err)
	}

	update := expression.
		Set(expression.Name("type"), expression.IfNotExists(expression.Name("type"), expression.Value(record.TypeChat))).
		Set(expression.Name(record.AttrUserID), expression.IfNotExists(expression.Name(record.AttrUserID), expression.Value(chat.UserID))).
		Set(expression.Name(record.AttrChatCreatedAt), expression.IfNotExists(expression.Name(record.AttrChatCreatedAt), expression.Value(chat.CreatedAt))).
		Set(expression.Name(record.AttrTitle), expression.IfNotExists(expression.Name(record.AttrTitle), expression.Value(chat.Title))).
		Set(expression.Name(record.AttrVisibility), expression.IfNotExists(expression.Name(record.AttrVisibility), expression.Value(string(chat.Visibility))))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return domain.Message{}, fmt.Errorf("repository: AppendMessage build expression: %w", err)
	}

	err = withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
		_, err := r.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: []types.TransactWriteItem{
				{
					Put: &types.Put{
						TableName:           aws.String(r.tableName),
						Item:                msgItem,
						ConditionExpression: aws.String("attribute_not_exists(sk)"),
					},
				},
				{
					Update: &types.Update{
						TableName: aws.String(r.tableName),
						Key: map[string]types.AttributeValue{
							record.AttrChatID:  &types.AttributeValueMemberS{Value: chat.ChatID},
							record.AttrSortKey: &types.AttributeValueMemberS{Value: record.SortKeyMeta},
						},
						UpdateExpression:          expr.Update(),
						ExpressionAttributeNames:  expr.Names(),
						ExpressionAttributeValues: expr.Values(),
					},
				},
			},
		})
		return err
	})
	if err != nil {
		if isConditionFailure(err) {
			return domain.Message{}, fmt.Errorf("repository: AppendMessage %q: %w", msg.MessageID, ErrConflictingWrite)
		}
		return domain.Message{}, fmt.Errorf("repository: AppendMessage: %w", err)
	}
	return msg, nil
}

// SaveMessages appends several already-stamped messages in one batch. Used
// when persisting a completed generation turn.
func (r *ChatRepository) SaveMessages(ctx context.Context, msgs []domain.Message) error {
	writes := make([]types.WriteRequest, 0, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		if m.MessageID == "" {
			m.MessageID = r.newID()
		}
		if m.CreatedAt == "" {
			m.CreatedAt = r.now().UTC().Format(time.RFC3339Nano)
		}
		item, err := record.EncodeMessage(*m)
		if err != nil {
			return fmt.Errorf("repository: SaveMessages: %w", err)
		}
		writes = append(writes, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	if err := r.batchWrite(ctx, writes); err != nil {
		return fmt.Errorf("repository: SaveMessages: %w", err)
	}
	return nil
}

// GetMessageByID resolves a message without knowing its chat: an index
// lookup for the table keys followed by a point get. Rare path.
func (r *ChatRepository) GetMessageByID(ctx context.Context, messageID string) (domain.Message, error) {
	var out *dynamodb.QueryOutput
	err := withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
		var err error
		out, err = r.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String(record.IndexMessageByID),
			KeyConditionExpression: aws.String("message_id = :mid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":mid": &types.AttributeValueMemberS{Value: messageID},
			},
			Limit: aws.Int32(1),
		})
		return err
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("repository: GetMessageByID query: %w", err)
	}
	if len(out.Items) == 0 {
		return domain.Message{}, fmt.Errorf("repository: GetMessageByID %q: %w", messageID, ErrNotFound)
	}

	chatID, sk, err := tableKeys(out.Items[0])
	if err != nil {
		return domain.Message{}, fmt.Errorf("repository: GetMessageByID: %w", err)
	}
	var getOut *dynamodb.GetItemOutput
	err = withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
		var err error
		getOut, err = r.api.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				record.AttrChatID:  &types.AttributeValueMemberS{Value: chatID},
				record.AttrSortKey: &types.AttributeValueMemberS{Value: sk},
			},
		})
		return err
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("repository: GetMessageByID get: %w", err)
	}
	if len(getOut.Item) == 0 {
		return domain.Message{}, fmt.Errorf("repository: GetMessageByID %q: %w", messageID, ErrNotFound)
	}
	msg, err := record.DecodeMessage(getOut.Item)
	if err != nil {
		return domain.Message{}, fmt.Errorf("repository: GetMessageByID: %w", err)
	}
	return msg, nil
}

// RenameChat updates the chat's title. ErrNotFound when the metadata row is
// absent.
func (r *ChatRepository) RenameChat(ctx context.Context, chatID, title string) error {
	return r.updateMeta(ctx, chatID, record.AttrTitle, title)
}

// UpdateChatVisibility flips the chat between private and public.
func (r *ChatRepository) UpdateChatVisibility(ctx context.Context, chatID string, visibility domain.Visibility) error {
	return r.updateMeta(ctx, chatID, record.AttrVisibility, string(visibility))
}

func (r *ChatRepository) updateMeta(ctx context.Context, chatID, attr, value string) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name(record.AttrChatID))).
		WithUpdate(expression.Set(expression.Name(attr), expression.Value(value))).
		Build()
	if err != nil {
		return fmt.Errorf("repository: updateMeta build expression: %w", err)
	}
	err = withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
		_, err := r.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				record.AttrChatID:  &types.AttributeValueMemberS{Value: chatID},
				record.AttrSortKey: &types.AttributeValueMemberS{Value: record.SortKeyMeta},
			},
			ConditionExpression:       expr.Condition(),
			UpdateExpression:          expr.Update(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		return err
	})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("repository: updateMeta %q: %w", chatID, ErrNotFound)
		}
		return fmt.Errorf("repository: updateMeta: %w", err)
	}
	return nil
}

// DeleteChat removes the metadata row and every colocated item (messages,
// votes, stream records) for a chat.
func (r *ChatRepository) DeleteChat(ctx context.Context, chatID string) error {
	items, err := r.queryPrefix(ctx, chatID, "")
	if err != nil {
		return fmt.Errorf("repository: DeleteChat: %w", err)
	}
	writes := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		_, sk, err := tableKeys(item)
		if err != nil {
			return fmt.Errorf("repository: DeleteChat: %w", err)
		}
		writes = append(writes, deleteRequest(chatID, sk))
	}
	if err := r.batchWrite(ctx, writes); err != nil {
		return fmt.Errorf("repository: DeleteChat: %w", err)
	}
	return nil
}

// DeleteMessagesAfter removes every message created at or after the given
// timestamp, along with each message's vote row.
func (r *ChatRepository) DeleteMessagesAfter(ctx context.Context, chatID, timestamp string) error {
	from, to := record.MessageSortKeyRange(timestamp)
	var writes []types.WriteRequest

	var startKey map[string]types.AttributeValue
	for {
		var out *dynamodb.QueryOutput
		err := withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
			var err error
			out, err = r.api.Query(ctx, &dynamodb.QueryInput{
				TableName:              aws.String(r.tableName),
				KeyConditionExpression: aws.String("chat_id = :pk AND sk BETWEEN :from AND :to"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":pk":   &types.AttributeValueMemberS{Value: chatID},
					":from": &types.AttributeValueMemberS{Value: from},
					":to":   &types.AttributeValueMemberS{Value: to},
				},
				ConsistentRead:    aws.Bool(true),
				ExclusiveStartKey: startKey,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("repository: DeleteMessagesAfter query: %w", err)
		}
		for _, item := range out.Items {
			msg, err := record.DecodeMessage(item)
			if err != nil {
				return fmt.Errorf("repository: DeleteMessagesAfter: %w", err)
			}
			writes = append(writes,
				deleteRequest(chatID, record.MessageSortKey(msg.CreatedAt, msg.MessageID)),
				deleteRequest(chatID, record.VoteSortKey(msg.MessageID)),
			)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	if err := r.batchWrite(ctx, writes); err != nil {
		return fmt.Errorf("repository: DeleteMessagesAfter: %w", err)
	}
	return nil
}

// VoteMessage upserts the vote row for a message.
func (r *ChatRepository) VoteMessage(ctx context.Context, vote domain.Vote) error {
	item, err := record.EncodeVote(vote)
	if err != nil {
		return fmt.Errorf("repository: VoteMessage: %w", err)
	}
	err = withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
		_, err := r.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(r.tableName),
			Item:      item,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("repository: VoteMessage: %w", err)
	}
	return nil
}

// GetVotesForChat returns all vote rows for a chat.
func (r *ChatRepository) GetVotesForChat(ctx context.Context, chatID string) ([]domain.Vote, error) {
	items, err := r.queryPrefix(ctx, chatID, record.SortPrefixVote)
	if err != nil {
		return nil, fmt.Errorf("repository: GetVotesForChat: %w", err)
	}
	votes := make([]domain.Vote, 0, len(items))
	for _, item := range items {
		v, err := record.DecodeVote(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetVotesForChat: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, nil
}

// CreateStream records a generation stream id against a chat.
func (r *ChatRepository) CreateStream(ctx context.Context, chatID, streamID string) (domain.Stream, error) {
	s := domain.Stream{
		ChatID:    chatID,
		StreamID:  streamID,
		CreatedAt: r.now().UTC().Format(time.RFC3339Nano),
	}
	item, err := record.EncodeStream(s)
	if err != nil {
		return domain.Stream{}, fmt.Errorf("repository: CreateStream: %w", err)
	}
	err = withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
		_, err := r.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(r.tableName),
			Item:      item,
		})
		return err
	})
	if err != nil {
		return domain.Stream{}, fmt.Errorf("repository: CreateStream: %w", err)
	}
	return s, nil
}

// GetStreamIDs lists the stream ids registered for a chat in creation order.
func (r *ChatRepository) GetStreamIDs(ctx context.Context, chatID string) ([]string, error) {
	items, err := r.queryPrefix(ctx, chatID, record.SortPrefixStr)
	if err != nil {
		return nil, fmt.Errorf("repository: GetStreamIDs: %w", err)
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		s, err := record.DecodeStream(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetStreamIDs: %w", err)
		}
		ids = append(ids, s.StreamID)
	}
	return ids, nil
}

// CountUserMessagesSince counts role=user messages written by a user since
// the cutoff, via the by-user message index. Used for request quotas.
func (r *ChatRepository) CountUserMessagesSince(ctx context.Context, userID, since string) (int, error) {
	expr, err := expression.NewBuilder().
		WithFilter(expression.Equal(expression.Name(record.AttrRole), expression.Value(string(domain.RoleUser)))).
		WithKeyCondition(expression.Key(record.AttrUserID).Equal(expression.Value(userID)).
			And(expression.Key(record.AttrCreatedAt).GreaterThanEqual(expression.Value(since)))).
		Build()
	if err != nil {
		return 0, fmt.Errorf("repository: CountUserMessagesSince build expression: %w", err)
	}

	total := 0
	var startKey map[string]types.AttributeValue
	for {
		var out *dynamodb.QueryOutput
		err := withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
			var err error
			out, err = r.api.Query(ctx, &dynamodb.QueryInput{
				TableName:                 aws.String(r.tableName),
				IndexName:                 aws.String(record.IndexMsgsByUser),
				KeyConditionExpression:    expr.KeyCondition(),
				FilterExpression:          expr.Filter(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
				Select:                    types.SelectCount,
				ExclusiveStartKey:         startKey,
			})
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("repository: CountUserMessagesSince query: %w", err)
		}
		total += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return total, nil
}

// queryPrefix pages through a chat partition, optionally bounded to a
// sort-key prefix. Empty prefix returns the whole partition. Consistent
// read: GetMessages backs transcript re-reads right after an append.
func (r *ChatRepository) queryPrefix(ctx context.Context, chatID, prefix string) ([]map[string]types.AttributeValue, error) {
	keyCond := "chat_id = :pk"
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: chatID},
	}
	if prefix != "" {
		keyCond += " AND begins_with(sk, :prefix)"
		values[":prefix"] = &types.AttributeValueMemberS{Value: prefix}
	}

	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		var out *dynamodb.QueryOutput
		err := withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
			var err error
			out, err = r.api.Query(ctx, &dynamodb.QueryInput{
				TableName:                 aws.String(r.tableName),
				KeyConditionExpression:    aws.String(keyCond),
				ExpressionAttributeValues: values,
				ScanIndexForward:          aws.Bool(true),
				ConsistentRead:            aws.Bool(true),
				ExclusiveStartKey:         startKey,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return items, nil
}

// batchWrite flushes write requests in chunks of 25, resubmitting unprocessed
// items through the retry loop.
func (r *ChatRepository) batchWrite(ctx context.Context, writes []types.WriteRequest) error {
	for len(writes) > 0 {
		n := len(writes)
		if n > batchWriteChunk {
			n = batchWriteChunk
		}
		chunk := writes[:n]
		writes = writes[n:]

		err := withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
			out, err := r.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{r.tableName: chunk},
			})
			if err != nil {
				return err
			}
			if unprocessed := out.UnprocessedItems[r.tableName]; len(unprocessed) > 0 {
				// Back-pressure from the store; retry just the remainder.
				chunk = unprocessed
				return &types.ProvisionedThroughputExceededException{}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func deleteRequest(chatID, sk string) types.WriteRequest {
	return types.WriteRequest{
		DeleteRequest: &types.DeleteRequest{
			Key: map[string]types.AttributeValue{
				record.AttrChatID:  &types.AttributeValueMemberS{Value: chatID},
				record.AttrSortKey: &types.AttributeValueMemberS{Value: sk},
			},
		},
	}
}

func tableKeys(item map[string]types.AttributeValue) (chatID, sk string, err error) {
	pkAttr, ok := item[record.AttrChatID].(*types.AttributeValueMemberS)
	if !ok {
		return "", "", errors.New("item missing chat_id key")
	}
	skAttr, ok := item[record.AttrSortKey].(*types.AttributeValueMemberS)
	if !ok {
		return "", "", errors.New("item missing sk key")
	}
	return pkAttr.Value, skAttr.Value, nil
}

func itemType(item map[string]types.AttributeValue) string {
	t, ok := item["type"].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return t.Value
}
