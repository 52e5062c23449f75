package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/record"
)

// UserRepository issues the fixed access patterns against the users table:
// a consistent point get on the primary key and point lookups on the four
// secondary indexes. Index reads are eventually consistent; callers that
// immediately re-read data they just wrote should go through GetUserByID.
type UserRepository struct {
	api         dynamodbAPI
	tableName   string
	maxAttempts int
}

// NewUserRepository creates a UserRepository over the given table.
func NewUserRepository(api dynamodbAPI, tableName string) (*UserRepository, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &UserRepository{api: api, tableName: tableName, maxAttempts: defaultMaxAttempts}, nil
}

// CreateUser writes a new user, failing with ErrAlreadyExists when the
// user_id is taken. The losing writer leaves no partial state.
func (r *UserRepository) CreateUser(ctx context.Context, u domain.User) error {
	item, err := record.EncodeUser(u)
	if err != nil {
		return fmt.Errorf("repository: CreateUser: %w", err)
	}
	err = withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
		_, err := r.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(r.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(user_id)"),
		})
		return err
	})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("repository: CreateUser %q: %w", u.UserID, ErrAlreadyExists)
		}
		return fmt.Errorf("repository: CreateUser: %w", err)
	}
	return nil
}

// GetUserByID fetches a user by primary key with a consistent read.
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	var out *dynamodb.GetItemOutput
	err := withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
		var err error
		out, err = r.api.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				record.AttrUserID: &types.AttributeValueMemberS{Value: userID},
			},
			ConsistentRead: aws.Bool(true),
		})
		return err
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: GetUserByID: %w", err)
	}
	if len(out.Item) == 0 {
		return domain.User{}, fmt.Errorf("repository: GetUserByID %q: %w", userID, ErrNotFound)
	}
	u, err := record.DecodeUser(out.Item)
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: GetUserByID: %w", err)
	}
	return u, nil
}

// FindUserByEmail resolves a user through the email index.
func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.findByIndex(ctx, record.IndexUsersByEmail, record.AttrEmail, email)
}

// FindUserByStripeCustomerID resolves a user through the billing-customer
// index.
func (r *UserRepository) FindUserByStripeCustomerID(ctx context.Context, customerID string) (domain.User, error) {
	return r.findByIndex(ctx, record.IndexUsersByCustomer, "stripe_customer_id", customerID)
}

// FindUserBySubscriptionID resolves a user through the subscription index.
func (r *UserRepository) FindUserBySubscriptionID(ctx context.Context, subscriptionID string) (domain.User, error) {
	return r.findByIndex(ctx, record.IndexUsersBySubID, "active_subscription_id", subscriptionID)
}

func (r *UserRepository) findByIndex(ctx context.Context, index, attr, value string) (domain.User, error) {
	var out *dynamodb.QueryOutput
	err := withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
		var err error
		out, err = r.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String(index),
			KeyConditionExpression: aws.String("#k = :v"),
			ExpressionAttributeNames: map[string]string{
				"#k": attr,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":v": &types.AttributeValueMemberS{Value: value},
			},
			Limit: aws.Int32(1),
		})
		return err
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: findByIndex %s: %w", index, err)
	}
	if len(out.Items) == 0 {
		return domain.User{}, fmt.Errorf("repository: findByIndex %s %q: %w", index, value, ErrNotFound)
	}
	u, err := record.DecodeUser(out.Items[0])
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: findByIndex %s: %w", index, err)
	}
	return u, nil
}

// SubscriptionUpdate carries the billing fields mutated on subscription
// change. Empty strings clear nothing; the update only sets what is present.
type SubscriptionUpdate struct {
	StripeCustomerID     string
	ActiveSubscriptionID string
	SubscriptionStatus   string
	PlanID               string
	CurrentPeriodStart   string
	CurrentPeriodEnd     string
	CancelAtPeriodEnd    *bool
}

// UpdateSubscription applies billing changes to an existing user.
// ErrConflictingWrite when the user row is gone.
func (r *UserRepository) UpdateSubscription(ctx context.Context, userID string, upd SubscriptionUpdate) error {
	set := map[string]any{}
	if upd.StripeCustomerID != "" {
		set["stripe_customer_id"] = upd.StripeCustomerID
	}
	if upd.ActiveSubscriptionID != "" {
		set["active_subscription_id"] = upd.ActiveSubscriptionID
	}
	if upd.SubscriptionStatus != "" {
		set["subscription_status"] = upd.SubscriptionStatus
	}
	if upd.PlanID != "" {
		set["plan_id"] = upd.PlanID
	}
	if upd.CurrentPeriodStart != "" {
		set["current_period_start"] = upd.CurrentPeriodStart
	}
	if upd.CurrentPeriodEnd != "" {
		set["current_period_end"] = upd.CurrentPeriodEnd
	}
	if upd.CancelAtPeriodEnd != nil {
		set["cancel_at_period_end"] = *upd.CancelAtPeriodEnd
	}
	if len(set) == 0 {
		return nil
	}

	var update expression.UpdateBuilder
	for attr, value := range set {
		update = update.Set(expression.Name(attr), expression.Value(value))
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name(record.AttrUserID))).
		WithUpdate(update).
		Build()
	if err != nil {
		return fmt.Errorf("repository: UpdateSubscription build expression: %w", err)
	}

	err = withRetry(ctx, r.maxAttempts, func(ctx context.Context) error {
		_, err := r.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				record.AttrUserID: &types.AttributeValueMemberS{Value: userID},
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
			return fmt.Errorf("repository: UpdateSubscription %q: %w", userID, ErrConflictingWrite)
		}
		return fmt.Errorf("repository: UpdateSubscription: %w", err)
	}
	return nil
}
