// Package app assembles the application from configuration: AWS clients,
// repositories, the model provider, the services and the HTTP router.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"chatbot-backend/handler"
	"chatbot-backend/internal/config"
	"chatbot-backend/internal/integrations/bedrock"
	"chatbot-backend/internal/integrations/openai"
	"chatbot-backend/internal/integrations/paramstore"
	"chatbot-backend/internal/llm"
	"chatbot-backend/internal/repository"
	"chatbot-backend/internal/usecase"
)

// App holds everything a binary needs to serve requests.
type App struct {
	Config  *config.Config
	Handler http.Handler
}

// New builds the application graph from cfg. It installs a JSON slog
// default logger as a side effect so every package logs in one format.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}

	dynamoClient := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = &cfg.DynamoDBEndpoint
			// Local DynamoDB accepts any credentials but requires some.
			o.Credentials = credentials.NewStaticCredentialsProvider("dummy", "dummy", "")
		}
	})

	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: create SSM client: %w", err)
	}
	secrets, err := paramstore.NewCachedGetter(ssmClient, cfg.SecretCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("app: create secret cache: %w", err)
	}

	chats, err := repository.NewChatRepository(dynamoClient, cfg.ChatsTable)
	if err != nil {
		return nil, fmt.Errorf("app: create chat repository: %w", err)
	}
	users, err := repository.NewUserRepository(dynamoClient, cfg.UsersTable)
	if err != nil {
		return nil, fmt.Errorf("app: create user repository: %w", err)
	}
	answers, err := repository.NewAnswersRepository(dynamoClient, cfg.AnswersTable)
	if err != nil {
		return nil, fmt.Errorf("app: create answers repository: %w", err)
	}

	provider, err := newProvider(cfg, awsCfg, secrets)
	if err != nil {
		return nil, err
	}

	conversations, err := usecase.NewConversationService(chats, provider, cfg.QuotaLimit, cfg.QuotaWindow)
	if err != nil {
		return nil, fmt.Errorf("app: create conversation service: %w", err)
	}
	userService, err := usecase.NewUserService(users)
	if err != nil {
		return nil, fmt.Errorf("app: create user service: %w", err)
	}
	titles, err := usecase.NewTitleService(provider)
	if err != nil {
		return nil, fmt.Errorf("app: create title service: %w", err)
	}
	quiz, err := usecase.NewQuizService(answers, provider)
	if err != nil {
		return nil, fmt.Errorf("app: create quiz service: %w", err)
	}

	router, err := handler.NewRouter(conversations, userService, titles, quiz, secrets, cfg.APISecretParam, cfg.AllowedOrigins)
	if err != nil {
		return nil, fmt.Errorf("app: create router: %w", err)
	}

	return &App{Config: cfg, Handler: router.Setup()}, nil
}

func newProvider(cfg *config.Config, awsCfg aws.Config, secrets paramstore.Getter) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		opts := make([]openai.Option, 0, 2)
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		if cfg.OpenAIModel != "" {
			opts = append(opts, openai.WithModel(cfg.OpenAIModel))
		}
		client, err := openai.NewClient(secrets, cfg.OpenAIKeyParam, opts...)
		if err != nil {
			return nil, fmt.Errorf("app: create OpenAI client: %w", err)
		}
		return client, nil
	case "bedrock":
		client, err := bedrock.NewClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
		if err != nil {
			return nil, fmt.Errorf("app: create Bedrock client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("app: unknown provider %q", cfg.Provider)
	}
}
