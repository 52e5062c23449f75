package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/usecase"
)

type userDTO struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`

	Provider           string `json:"provider,omitempty"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`
	PlanID             string `json:"plan_id,omitempty"`
	CurrentPeriodEnd   string `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end,omitempty"`
}

func toUserDTO(u domain.User) userDTO {
	return userDTO{
		UserID:             u.UserID,
		Email:              u.Email,
		Source:             string(u.Source),
		CreatedAt:          u.CreatedAt,
		Provider:           u.Provider,
		SubscriptionStatus: u.SubscriptionStatus,
		PlanID:             u.PlanID,
		CurrentPeriodEnd:   u.CurrentPeriodEnd,
		CancelAtPeriodEnd:  u.CancelAtPeriodEnd,
	}
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (rt *Router) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := rt.users.RegisterUser(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

func (rt *Router) createGuestUser(w http.ResponseWriter, r *http.Request) {
	user, err := rt.users.CreateGuestUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

type createOAuthUserRequest struct {
	Email             string `json:"email" validate:"omitempty,email"`
	Provider          string `json:"provider" validate:"required"`
	ProviderAccountID string `json:"provider_account_id" validate:"required"`
}

func (rt *Router) createOAuthUser(w http.ResponseWriter, r *http.Request) {
	var req createOAuthUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := rt.users.GetOrCreateOAuthUser(r.Context(), req.Email, req.Provider, req.ProviderAccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := rt.users.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

func (rt *Router) getUserByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := rt.users.GetUserByEmail(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

func (rt *Router) listUserChats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID != requesterID(r) {
		writeError(w, r, &usecase.Error{Code: usecase.ErrorForbidden, Reason: "foreign_chat_list"})
		return
	}
	rt.writeChatPage(w, r, userID)
}

func (rt *Router) messageCount(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "bad_hours"})
			return
		}
		hours = parsed
	}
	count, err := rt.conversations.MessageCount(r.Context(), chi.URLParam(r, "userID"), hours)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Count int `json:"count"`
	}{count})
}
