package handler

import (
	"fmt"
	"net/http"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/usecase"
)

type quizStartRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Field  string `json:"field" validate:"required,oneof=math logic language programming"`
}

func (rt *Router) startQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizStartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.quiz.StartQuiz(req.UserID, req.Field); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	}{fmt.Sprintf("Great! Let's begin your IQ test in the field of %s.", req.Field), req.Field})
}

// quizQuestionDTO deliberately omits the answer and explanation.
type quizQuestionDTO struct {
	QuestionID string   `json:"question_id"`
	Field      string   `json:"field"`
	Question   string   `json:"question"`
	Choices    []string `json:"choices"`
	Difficulty string   `json:"difficulty"`
}

func toQuizQuestionDTO(q domain.Question) quizQuestionDTO {
	return quizQuestionDTO{
		QuestionID: q.ID,
		Field:      q.Field,
		Question:   q.Question,
		Choices:    q.Choices,
		Difficulty: q.Difficulty,
	}
}

func (rt *Router) nextQuestion(w http.ResponseWriter, r *http.Request) {
	var req quizStartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	question, err := rt.quiz.NextQuestion(r.Context(), req.UserID, req.Field)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuizQuestionDTO(question))
}

type quizAnswerRequest struct {
	UserID     string `json:"user_id" validate:"required"`
	QuestionID string `json:"question_id" validate:"required"`
	Answer     string `json:"answer" validate:"required"`
}

func (rt *Router) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req quizAnswerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	correct, explanation, err := rt.quiz.SubmitAnswer(r.Context(), req.UserID, req.QuestionID, req.Answer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Correct     bool   `json:"correct"`
		Explanation string `json:"explanation"`
	}{correct, explanation})
}

type quizAnswerLogDTO struct {
	UserID      string `json:"user_id"`
	Timestamp   string `json:"timestamp"`
	QuestionID  string `json:"question_id"`
	Field       string `json:"field"`
	Difficulty  string `json:"difficulty"`
	GivenAnswer string `json:"given_answer"`
	Correct     bool   `json:"correct"`
}

func (rt *Router) answerHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = requesterID(r)
	}
	if userID != requesterID(r) {
		writeError(w, r, &usecase.Error{Code: usecase.ErrorForbidden, Reason: "foreign_answer_history"})
		return
	}
	answers, err := rt.quiz.AnswerHistory(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]quizAnswerLogDTO, 0, len(answers))
	for _, a := range answers {
		out = append(out, quizAnswerLogDTO{
			UserID:      a.UserID,
			Timestamp:   a.Timestamp,
			QuestionID:  a.QuestionID,
			Field:       a.Field,
			Difficulty:  a.Difficulty,
			GivenAnswer: a.GivenAnswer,
			Correct:     a.Correct,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
