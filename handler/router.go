// Package handler exposes the HTTP surface of the chatbot backend: chat
// lifecycle, streaming generation, user accounts, title generation and the
// quiz endpoints, behind a shared-secret auth middleware.
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chatbot-backend/internal/usecase"
)

// Router wires the services onto the route tree.
type Router struct {
	conversations *usecase.ConversationService
	users         *usecase.UserService
	titles        *usecase.TitleService
	quiz          *usecase.QuizService

	secrets        SecretGetter
	secretParam    string
	allowedOrigins []string
}

// NewRouter creates a Router over the given services.
func NewRouter(
	conversations *usecase.ConversationService,
	users *usecase.UserService,
	titles *usecase.TitleService,
	quiz *usecase.QuizService,
	secrets SecretGetter,
	secretParam string,
	allowedOrigins []string,
) (*Router, error) {
	if conversations == nil || users == nil || titles == nil || quiz == nil {
		return nil, errors.New("handler: services must not be nil")
	}
	if secrets == nil {
		return nil, errors.New("handler: secret getter must not be nil")
	}
	if secretParam == "" {
		return nil, errors.New("handler: secret parameter name must not be empty")
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	return &Router{
		conversations:  conversations,
		users:          users,
		titles:         titles,
		quiz:           quiz,
		secrets:        secrets,
		secretParam:    secretParam,
		allowedOrigins: allowedOrigins,
	}, nil
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)

	router.Route("/api", func(r chi.Router) {
		r.Use(requireAPISecret(rt.secrets, rt.secretParam))

		r.Route("/chats", func(r chi.Router) {
			r.Post("/", rt.createChat)
			r.Get("/", rt.listChats)
			r.Route("/{chatID}", func(r chi.Router) {
				r.Get("/", rt.getChat)
				r.Delete("/", rt.deleteChat)
				r.Patch("/visibility", rt.updateVisibility)
				r.Patch("/title", rt.renameChat)
				r.Get("/messages", rt.getMessages)
				r.Post("/messages", rt.saveMessages)
				r.Delete("/messages", rt.deleteMessagesAfter)
				r.Post("/responses", rt.generateResponse)
				r.Post("/messages/{messageID}/vote", rt.voteMessage)
				r.Get("/votes", rt.getVotes)
				r.Post("/streams", rt.registerStream)
				r.Get("/streams", rt.getStreamIDs)
			})
		})

		r.Get("/messages/{messageID}", rt.getMessage)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", rt.createUser)
			r.Get("/", rt.getUserByEmail)
			r.Post("/guest", rt.createGuestUser)
			r.Post("/oauth", rt.createOAuthUser)
			r.Post("/login", rt.login)
			r.Get("/{userID}/chats", rt.listUserChats)
			r.Get("/{userID}/message-count", rt.messageCount)
		})

		r.Post("/generate_title", rt.generateTitle)

		r.Route("/quiz", func(r chi.Router) {
			r.Post("/start", rt.startQuiz)
			r.Post("/next", rt.nextQuestion)
			r.Post("/answer", rt.submitAnswer)
			r.Get("/answers", rt.answerHistory)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
