package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/llm"
	"chatbot-backend/internal/streaming"
	"chatbot-backend/internal/usecase"
)

type chatDTO struct {
	ChatID     string `json:"chat_id"`
	UserID     string `json:"user_id"`
	Title      string `json:"title"`
	Visibility string `json:"visibility"`
	CreatedAt  string `json:"created_at"`
}

type messageDTO struct {
	MessageID   string `json:"message_id"`
	ChatID      string `json:"chat_id"`
	UserID      string `json:"user_id,omitempty"`
	Role        string `json:"role"`
	Content     string `json:"content"`
	Attachments string `json:"attachments,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type voteDTO struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	IsUpvoted bool   `json:"is_upvoted"`
}

func toChatDTO(c domain.Chat) chatDTO {
	return chatDTO{
		ChatID:     c.ChatID,
		UserID:     c.UserID,
		Title:      c.Title,
		Visibility: string(c.Visibility),
		CreatedAt:  c.CreatedAt,
	}
}

func toMessageDTO(m domain.Message) messageDTO {
	return messageDTO{
		MessageID:   m.MessageID,
		ChatID:      m.ChatID,
		UserID:      m.UserID,
		Role:        string(m.Role),
		Content:     m.Content,
		Attachments: m.Attachments,
		CreatedAt:   m.CreatedAt,
	}
}

func toMessageDTOs(msgs []domain.Message) []messageDTO {
	out := make([]messageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageDTO(m))
	}
	return out
}

type createChatRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Message string `json:"message" validate:"required"`
}

func (rt *Router) createChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	chat, msg, err := rt.conversations.StartChat(r.Context(), req.UserID, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Chat    chatDTO    `json:"chat"`
		Message messageDTO `json:"message"`
	}{toChatDTO(chat), toMessageDTO(msg)})
}

func (rt *Router) getChat(w http.ResponseWriter, r *http.Request) {
	chat, err := rt.conversations.GetChat(r.Context(), chi.URLParam(r, "chatID"), requesterID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatDTO(chat))
}

func (rt *Router) deleteChat(w http.ResponseWriter, r *http.Request) {
	if err := rt.conversations.DeleteChat(r.Context(), chi.URLParam(r, "chatID"), requesterID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listChats(w http.ResponseWriter, r *http.Request) {
	rt.writeChatPage(w, r, requesterID(r))
}

func (rt *Router) writeChatPage(w http.ResponseWriter, r *http.Request, userID string) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "bad_limit"})
			return
		}
		limit = parsed
	}
	page, err := rt.conversations.ListChats(r.Context(), userID, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	chats := make([]chatDTO, 0, len(page.Chats))
	for _, c := range page.Chats {
		chats = append(chats, toChatDTO(c))
	}
	writeJSON(w, http.StatusOK, struct {
		Chats      []chatDTO `json:"chats"`
		NextCursor string    `json:"next_cursor,omitempty"`
	}{chats, page.NextCursor})
}

type updateVisibilityRequest struct {
	Visibility string `json:"visibility" validate:"required,oneof=private public"`
}

func (rt *Router) updateVisibility(w http.ResponseWriter, r *http.Request) {
	var req updateVisibilityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := rt.conversations.SetVisibility(r.Context(), chi.URLParam(r, "chatID"),
		domain.Visibility(req.Visibility), requesterID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type renameChatRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

func (rt *Router) renameChat(w http.ResponseWriter, r *http.Request) {
	var req renameChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.conversations.RenameChat(r.Context(), chi.URLParam(r, "chatID"), req.Title, requesterID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getMessages(w http.ResponseWriter, r *http.Request) {
	cwm, err := rt.conversations.GetTranscript(r.Context(), chi.URLParam(r, "chatID"), requesterID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageDTOs(cwm.Messages))
}

type saveMessagesRequest struct {
	Messages []saveMessageItem `json:"messages" validate:"required,min=1,dive"`
}

type saveMessageItem struct {
	MessageID   string `json:"message_id"`
	UserID      string `json:"user_id"`
	Role        string `json:"role" validate:"required,oneof=user assistant system"`
	Content     string `json:"content" validate:"required"`
	Attachments string `json:"attachments"`
	CreatedAt   string `json:"created_at"`
}

func (rt *Router) saveMessages(w http.ResponseWriter, r *http.Request) {
	var req saveMessagesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	msgs := make([]domain.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, domain.Message{
			MessageID:   m.MessageID,
			UserID:      m.UserID,
			Role:        domain.Role(m.Role),
			Content:     m.Content,
			Attachments: m.Attachments,
			CreatedAt:   m.CreatedAt,
		})
	}
	if err := rt.conversations.SaveMessages(r.Context(), chi.URLParam(r, "chatID"), requesterID(r), msgs); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (rt *Router) deleteMessagesAfter(w http.ResponseWriter, r *http.Request) {
	timestamp := r.URL.Query().Get("timestamp")
	err := rt.conversations.DeleteMessagesAfter(r.Context(), chi.URLParam(r, "chatID"), timestamp, requesterID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := rt.conversations.GetMessage(r.Context(), chi.URLParam(r, "messageID"), requesterID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageDTO(msg))
}

type voteMessageRequest struct {
	IsUpvoted *bool `json:"is_upvoted" validate:"required"`
}

func (rt *Router) voteMessage(w http.ResponseWriter, r *http.Request) {
	var req voteMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := rt.conversations.VoteMessage(r.Context(), chi.URLParam(r, "chatID"),
		chi.URLParam(r, "messageID"), requesterID(r), *req.IsUpvoted)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getVotes(w http.ResponseWriter, r *http.Request) {
	votes, err := rt.conversations.GetVotes(r.Context(), chi.URLParam(r, "chatID"), requesterID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]voteDTO, 0, len(votes))
	for _, v := range votes {
		out = append(out, voteDTO{ChatID: v.ChatID, MessageID: v.MessageID, IsUpvoted: v.IsUpvoted})
	}
	writeJSON(w, http.StatusOK, out)
}

type registerStreamRequest struct {
	StreamID string `json:"stream_id"`
}

func (rt *Router) registerStream(w http.ResponseWriter, r *http.Request) {
	var req registerStreamRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	stream, err := rt.conversations.RegisterStream(r.Context(), chi.URLParam(r, "chatID"), req.StreamID, requesterID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		ChatID    string `json:"chat_id"`
		StreamID  string `json:"stream_id"`
		CreatedAt string `json:"created_at"`
	}{stream.ChatID, stream.StreamID, stream.CreatedAt})
}

func (rt *Router) getStreamIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := rt.conversations.StreamIDs(r.Context(), chi.URLParam(r, "chatID"), requesterID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		StreamIDs []string `json:"stream_ids"`
	}{ids})
}

// generateResponse streams a model reply for the chat's transcript. Errors
// before the first frame produce a normal JSON error or the pre-stream
// error shape; once frames are on the wire the relay's error frame is all
// the client gets.
func (rt *Router) generateResponse(w http.ResponseWriter, r *http.Request) {
	started := false
	sink := func(ctx context.Context, stream llm.TokenStream) (streaming.Result, error) {
		started = true
		return streaming.Relay(ctx, w, stream)
	}
	_, err := rt.conversations.Generate(r.Context(), chi.URLParam(r, "chatID"), requesterID(r), sink)
	if err == nil || started {
		return
	}
	switch usecase.CodeOf(err) {
	case usecase.ErrorUpstream:
		streaming.WriteErrorStream(w, "generation failed")
	default:
		writeError(w, r, err)
	}
}
