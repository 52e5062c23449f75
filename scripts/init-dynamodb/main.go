// Command init-dynamodb creates (or recreates) the Users, Chats and
// Answers tables with all their indexes. Intended for DynamoDB Local and
// fresh environments; existing tables are dropped first.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	appconfig "chatbot-backend/internal/config"
	"chatbot-backend/internal/record"
)

func main() {
	ctx := context.Background()
	cfg := appconfig.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("initializing DynamoDB tables",
		"endpoint", cfg.DynamoDBEndpoint, "region", cfg.AWSRegion)

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.DynamoDBEndpoint != "" {
		// Local DynamoDB accepts any credentials but requires some.
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})

	for _, input := range []*dynamodb.CreateTableInput{
		usersTable(cfg.UsersTable),
		chatsTable(cfg.ChatsTable),
		answersTable(cfg.AnswersTable),
	} {
		if err := recreateTable(ctx, client, input); err != nil {
			slog.Error("failed to create table", "table", *input.TableName, "err", err)
			os.Exit(1)
		}
		slog.Info("table ready", "table", *input.TableName)
	}
}

// recreateTable drops the table when it exists, then creates it and waits
// until it is active.
func recreateTable(ctx context.Context, client *dynamodb.Client, input *dynamodb.CreateTableInput) error {
	describe := &dynamodb.DescribeTableInput{TableName: input.TableName}

	if _, err := client.DescribeTable(ctx, describe); err == nil {
		slog.Info("table exists, recreating", "table", *input.TableName)
		if _, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: input.TableName}); err != nil {
			return err
		}
		waiter := dynamodb.NewTableNotExistsWaiter(client)
		if err := waiter.Wait(ctx, describe, 60); err != nil {
			return err
		}
	}

	if _, err := client.CreateTable(ctx, input); err != nil {
		return err
	}
	waiter := dynamodb.NewTableExistsWaiter(client)
	return waiter.Wait(ctx, describe, 60)
}

func usersTable(name string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: stringAttrs(
			record.AttrUserID,
			record.AttrEmail,
			record.AttrSource,
			record.AttrCreatedAt,
			"stripe_customer_id",
			"active_subscription_id",
		),
		KeySchema: keySchema(record.AttrUserID, ""),
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(record.IndexUsersByEmail, record.AttrEmail, ""),
			gsi(record.IndexUsersBySource, record.AttrSource, record.AttrCreatedAt),
			gsi(record.IndexUsersByCustomer, "stripe_customer_id", ""),
			gsi(record.IndexUsersBySubID, "active_subscription_id", ""),
		},
	}
}

func chatsTable(name string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: stringAttrs(
			record.AttrChatID,
			record.AttrSortKey,
			record.AttrUserID,
			record.AttrChatCreatedAt,
			record.AttrMessageID,
			record.AttrCreatedAt,
		),
		KeySchema: keySchema(record.AttrChatID, record.AttrSortKey),
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(record.IndexChatsByUser, record.AttrUserID, record.AttrChatCreatedAt),
			gsi(record.IndexMessageByID, record.AttrMessageID, ""),
			gsi(record.IndexMsgsByUser, record.AttrUserID, record.AttrCreatedAt),
		},
	}
}

func answersTable(name string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName:            aws.String(name),
		BillingMode:          types.BillingModePayPerRequest,
		AttributeDefinitions: stringAttrs(record.AttrUserID, record.AttrTimestamp),
		KeySchema:            keySchema(record.AttrUserID, record.AttrTimestamp),
	}
}

func stringAttrs(names ...string) []types.AttributeDefinition {
	defs := make([]types.AttributeDefinition, 0, len(names))
	for _, n := range names {
		defs = append(defs, types.AttributeDefinition{
			AttributeName: aws.String(n),
			AttributeType: types.ScalarAttributeTypeS,
		})
	}
	return defs
}

func keySchema(hash, sortKey string) []types.KeySchemaElement {
	schema := []types.KeySchemaElement{
		{AttributeName: aws.String(hash), KeyType: types.KeyTypeHash},
	}
	if sortKey != "" {
		schema = append(schema, types.KeySchemaElement{
			AttributeName: aws.String(sortKey), KeyType: types.KeyTypeRange,
		})
	}
	return schema
}

func gsi(name, hash, sortKey string) types.GlobalSecondaryIndex {
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(name),
		KeySchema:  keySchema(hash, sortKey),
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}
