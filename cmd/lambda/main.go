// Command lambda runs the chatbot backend behind API Gateway (HTTP API,
// payload v2), adapting the chi router to Lambda invocations.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"

	"chatbot-backend/internal/app"
	"chatbot-backend/internal/config"
)

var chiLambda *chiadapter.ChiLambdaV2

// init does all wiring during cold start so warm invocations only route.
func init() {
	ctx := context.Background()

	// Deployed environments must name their tables explicitly; the local
	// defaults in Load are for development only.
	cfg := config.Load()
	cfg.UsersTable = config.MustEnv("USERS_TABLE")
	cfg.ChatsTable = config.MustEnv("CHATS_TABLE")
	cfg.AnswersTable = config.MustEnv("ANSWERS_TABLE")

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to build application", "err", err)
		os.Exit(1)
	}

	router, ok := a.Handler.(*chi.Mux)
	if !ok {
		slog.Error("handler is not a chi router")
		os.Exit(1)
	}
	chiLambda = chiadapter.NewV2(router)
}

func handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return chiLambda.ProxyWithContextV2(ctx, req)
}

func main() {
	lambda.Start(handle)
}
