package repository

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/record"
)

func userItemFor(t *testing.T, userID, email string) map[string]types.AttributeValue {
	t.Helper()
	item, err := record.EncodeUser(domain.User{
		UserID:    userID,
		Email:     email,
		Source:    domain.SourceEmail,
		CreatedAt: "2026-08-01T10:00:00Z",
	})
	return mustEncode(t, item, err)
}

func mustUserRepo(t *testing.T, db *fakeDynamo) *UserRepository {
	t.Helper()
	r, err := NewUserRepository(db, "users-test")
	require.NoError(t, err)
	return r
}

func TestCreateUser_GuardsAgainstExistingID(t *testing.T) {
	db := &fakeDynamo{}
	r := mustUserRepo(t, db)

	err := r.CreateUser(context.Background(), domain.User{
		UserID:    "user-1",
		Email:     "a@example.com",
		Source:    domain.SourceEmail,
		CreatedAt: "2026-08-01T10:00:00Z",
	})
	require.NoError(t, err)
	require.Equal(t, "attribute_not_exists(user_id)", aws.ToString(db.lastPutIn.ConditionExpression))
}

func TestCreateUser_LoserGetsAlreadyExists(t *testing.T) {
	db := &fakeDynamo{putErr: &types.ConditionalCheckFailedException{}}
	r := mustUserRepo(t, db)

	err := r.CreateUser(context.Background(), domain.User{
		UserID:    "user-1",
		Email:     "a@example.com",
		Source:    domain.SourceEmail,
		CreatedAt: "2026-08-01T10:00:00Z",
	})
	require.ErrorIs(t, err, ErrAlreadyExists)
	require.Equal(t, 1, db.putCalls)
}

func TestCreateUser_RejectsIncompleteUser(t *testing.T) {
	r := mustUserRepo(t, &fakeDynamo{})
	err := r.CreateUser(context.Background(), domain.User{UserID: "user-1"})
	require.ErrorIs(t, err, record.ErrEncoding)
}

func TestGetUserByID(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: userItemFor(t, "user-1", "a@example.com")}}
	r := mustUserRepo(t, db)

	u, err := r.GetUserByID(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "a@example.com", u.Email)
	require.True(t, aws.ToBool(db.lastGetIn.ConsistentRead))

	db.getOut = &dynamodb.GetItemOutput{}
	_, err = r.GetUserByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindUserByEmail_UsesEmailIndex(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{userItemFor(t, "user-1", "a@example.com")}},
	}}
	r := mustUserRepo(t, db)

	u, err := r.FindUserByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "user-1", u.UserID)
	require.Equal(t, record.IndexUsersByEmail, aws.ToString(db.queryIns[0].IndexName))
}

func TestFindUserByBillingKeys_UseTheirIndexes(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{userItemFor(t, "user-1", "a@example.com")}},
	}}
	r := mustUserRepo(t, db)

	u, err := r.FindUserByStripeCustomerID(context.Background(), "cus_123")
	require.NoError(t, err)
	require.Equal(t, "user-1", u.UserID)
	require.Equal(t, record.IndexUsersByCustomer, aws.ToString(db.queryIns[0].IndexName))

	_, err = r.FindUserBySubscriptionID(context.Background(), "sub_123")
	require.NoError(t, err)
	require.Equal(t, record.IndexUsersBySubID, aws.ToString(db.queryIns[1].IndexName))
}

func TestFindUserByEmail_MissIsNotFound(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{}}}
	r := mustUserRepo(t, db)

	_, err := r.FindUserByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateSubscription_SetsOnlyProvidedFields(t *testing.T) {
	db := &fakeDynamo{}
	r := mustUserRepo(t, db)

	cancel := true
	err := r.UpdateSubscription(context.Background(), "user-1", SubscriptionUpdate{
		SubscriptionStatus: "active",
		PlanID:             "pro-monthly",
		CancelAtPeriodEnd:  &cancel,
	})
	require.NoError(t, err)
	require.NotNil(t, db.lastUpdateIn)
	require.NotNil(t, db.lastUpdateIn.ConditionExpression)

	names := db.lastUpdateIn.ExpressionAttributeNames
	var attrs []string
	for _, n := range names {
		attrs = append(attrs, n)
	}
	require.Contains(t, attrs, "subscription_status")
	require.Contains(t, attrs, "plan_id")
	require.Contains(t, attrs, "cancel_at_period_end")
	require.NotContains(t, attrs, "stripe_customer_id")
}

func TestUpdateSubscription_NoFieldsIsNoop(t *testing.T) {
	db := &fakeDynamo{}
	r := mustUserRepo(t, db)

	require.NoError(t, r.UpdateSubscription(context.Background(), "user-1", SubscriptionUpdate{}))
	require.Nil(t, db.lastUpdateIn)
}

func TestUpdateSubscription_MissingUserIsConflict(t *testing.T) {
	db := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	r := mustUserRepo(t, db)

	err := r.UpdateSubscription(context.Background(), "gone", SubscriptionUpdate{PlanID: "pro"})
	require.ErrorIs(t, err, ErrConflictingWrite)
}
