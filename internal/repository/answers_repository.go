package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/record"
)

// AnswersRepository logs quiz answers keyed by user_id + timestamp.
// Append-only: rows are never updated or deleted.
type AnswersRepository struct {
	api         dynamodbAPI
	tableName   string
	maxAttempts int
}

// NewAnswersRepository creates an AnswersRepository over the given table.
func NewAnswersRepository(api dynamodbAPI, tableName string) (*AnswersRepository, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &AnswersRepository{api: api, tableName: tableName, maxAttempts: defaultMaxAttempts}, nil
}

// LogAnswer appends one answer row.
func (r *AnswersRepository) LogAnswer(ctx context.Context, a domain.QuizAnswer) error {
	item, err := record.EncodeAnswer(a)
	if err != nil {
		return fmt.Errorf("repository: LogAnswer: %w", err)
	}
	err = withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
		_, err := r.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(r.tableName),
			Item:      item,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("repository: LogAnswer: %w", err)
	}
	return nil
}

// ListAnswersForUser returns a user's logged answers in chronological order.
func (r *AnswersRepository) ListAnswersForUser(ctx context.Context, userID string) ([]domain.QuizAnswer, error) {
	var answers []domain.QuizAnswer
	var startKey map[string]types.AttributeValue
	for {
		var out *dynamodb.QueryOutput
		err := withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
			var err error
			out, err = r.api.Query(ctx, &dynamodb.QueryInput{
				TableName:              aws.String(r.tableName),
				KeyConditionExpression: aws.String("user_id = :uid"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":uid": &types.AttributeValueMemberS{Value: userID},
				},
				ScanIndexForward:  aws.Bool(true),
				ExclusiveStartKey: startKey,
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("repository: ListAnswersForUser query: %w", err)
		}
		for _, item := range out.Items {
			a, err := record.DecodeAnswer(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListAnswersForUser: %w", err)
			}
			answers = append(answers, a)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return answers, nil
}
