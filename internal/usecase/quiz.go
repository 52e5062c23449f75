package usecase

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatbot-backend/internal/domain"
	"chatbot-backend/internal/llm"
)

//go:embed questions/*.json
var questionFiles embed.FS

// QuizFields are the supported quiz categories, one question file each.
var QuizFields = []string{"math", "logic", "language", "programming"}

var difficultyOrder = []string{"easy", "medium", "hard"}

// AnswersStore is the persistence surface for the answer log.
// *repository.AnswersRepository satisfies this interface.
type AnswersStore interface {
	LogAnswer(ctx context.Context, a domain.QuizAnswer) error
	ListAnswersForUser(ctx context.Context, userID string) ([]domain.QuizAnswer, error)
}

type quizSession struct {
	field      string
	asked      map[string]bool
	score      int
	streak     int
	difficulty string
	// questions handed out, kept so generated ones can be graded too
	issued map[string]domain.Question
}

// QuizService runs adaptive quizzes over an embedded question bank and logs
// every graded answer. Session state is in-memory per process; answers are
// the durable record.
type QuizService struct {
	answers  AnswersStore
	provider llm.Provider // optional; generates questions when the bank runs dry

	mu       sync.Mutex
	sessions map[string]*quizSession
	bank     map[string][]domain.Question

	now     func() time.Time
	pick    func(n int) int
	newID   func() string
	genCall func(ctx context.Context, field, difficulty string) (domain.Question, error)
}

// NewQuizService creates a QuizService. provider may be nil; without it the
// quiz ends when the bank has no unused questions left.
func NewQuizService(answers AnswersStore, provider llm.Provider) (*QuizService, error) {
	if answers == nil {
		return nil, errors.New("usecase: answers store must not be nil")
	}
	bank, err := loadQuestionBank(questionFiles)
	if err != nil {
		return nil, err
	}
	s := &QuizService{
		answers:  answers,
		provider: provider,
		sessions: make(map[string]*quizSession),
		bank:     bank,
		now:      time.Now,
		pick:     rand.Intn,
		newID:    uuid.NewString,
	}
	s.genCall = s.generateQuestion
	return s, nil
}

func loadQuestionBank(fsys fs.FS) (map[string][]domain.Question, error) {
	bank := make(map[string][]domain.Question, len(QuizFields))
	for _, field := range QuizFields {
		raw, err := fs.ReadFile(fsys, "questions/"+field+".json")
		if err != nil {
			return nil, fmt.Errorf("usecase: load questions for %s: %w", field, err)
		}
		var questions []domain.Question
		if err := json.Unmarshal(raw, &questions); err != nil {
			return nil, fmt.Errorf("usecase: decode questions for %s: %w", field, err)
		}
		bank[field] = questions
	}
	return bank, nil
}

// StartQuiz validates the field and resets the user's session.
func (s *QuizService) StartQuiz(userID, field string) error {
	field = strings.ToLower(strings.TrimSpace(field))
	if !validField(field) {
		return newError(ErrorInvalidInput, "unsupported_field", nil)
	}
	if strings.TrimSpace(userID) == "" {
		return newError(ErrorInvalidInput, "empty_user_id", nil)
	}
	s.mu.Lock()
	s.sessions[userID] = newQuizSession(field)
	s.mu.Unlock()
	return nil
}

// NextQuestion returns an unused question at the session's current
// difficulty, falling back to model generation when the bank is exhausted.
func (s *QuizService) NextQuestion(ctx context.Context, userID, field string) (domain.Question, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	if !validField(field) {
		return domain.Question{}, newError(ErrorInvalidInput, "unsupported_field", nil)
	}

	s.mu.Lock()
	session, ok := s.sessions[userID]
	if !ok || session.field != field {
		session = newQuizSession(field)
		s.sessions[userID] = session
	}
	difficulty := session.difficulty
	candidates := s.unusedQuestions(session)
	var question domain.Question
	if len(candidates) > 0 {
		question = candidates[s.pick(len(candidates))]
	}
	s.mu.Unlock()

	if question.ID == "" {
		if s.provider == nil {
			return domain.Question{}, newError(ErrorNotFound, "question_bank_exhausted", nil)
		}
		generated, err := s.genCall(ctx, field, difficulty)
		if err != nil {
			return domain.Question{}, err
		}
		question = generated
	}

	s.mu.Lock()
	session.asked[question.ID] = true
	session.issued[question.ID] = question
	s.mu.Unlock()
	return question, nil
}

// SubmitAnswer grades an answer, adjusts difficulty on streaks and logs the
// outcome. Answer comparison is case-insensitive.
func (s *QuizService) SubmitAnswer(ctx context.Context, userID, questionID, answer string) (bool, string, error) {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	if !ok {
		s.mu.Unlock()
		return false, "", newError(ErrorInvalidInput, "session_not_started", nil)
	}
	question, ok := session.issued[questionID]
	if !ok {
		question, ok = s.findBankQuestion(session.field, questionID)
	}
	if !ok {
		s.mu.Unlock()
		return false, "", newError(ErrorNotFound, "question_not_found", nil)
	}

	correct := strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(question.Answer))
	if correct {
		session.score++
		session.streak++
	} else {
		session.streak = 0
	}
	// Two in a row steps difficulty up; a miss steps it down.
	if correct && session.streak >= 2 {
		session.difficulty = adjustDifficulty(session.difficulty, true)
		session.streak = 0
	} else if !correct {
		session.difficulty = adjustDifficulty(session.difficulty, false)
	}
	field := session.field
	s.mu.Unlock()

	if err := s.answers.LogAnswer(ctx, domain.QuizAnswer{
		UserID:      userID,
		Timestamp:   s.now().UTC().Format(time.RFC3339Nano),
		QuestionID:  question.ID,
		Field:       field,
		Difficulty:  question.Difficulty,
		GivenAnswer: answer,
		Correct:     correct,
	}); err != nil {
		return false, "", storeError("log_answer", err)
	}
	return correct, question.Explanation, nil
}

// AnswerHistory returns the user's logged answers, oldest first.
func (s *QuizService) AnswerHistory(ctx context.Context, userID string) ([]domain.QuizAnswer, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, newError(ErrorInvalidInput, "empty_user_id", nil)
	}
	answers, err := s.answers.ListAnswersForUser(ctx, userID)
	if err != nil {
		return nil, storeError("answer_history", err)
	}
	return answers, nil
}

func (s *QuizService) unusedQuestions(session *quizSession) []domain.Question {
	var out []domain.Question
	for _, q := range s.bank[session.field] {
		if q.Difficulty == session.difficulty && !session.asked[q.ID] {
			out = append(out, q)
		}
	}
	return out
}

func (s *QuizService) findBankQuestion(field, questionID string) (domain.Question, bool) {
	for _, q := range s.bank[field] {
		if q.ID == questionID {
			return q, true
		}
	}
	return domain.Question{}, false
}

// generateQuestion asks the provider for one multiple-choice question as
// JSON matching the bank schema.
func (s *QuizService) generateQuestion(ctx context.Context, field, difficulty string) (domain.Question, error) {
	const system = `You write quiz questions. Respond with a single JSON object only, no prose, with keys: question, choices (array of exactly 4 strings), answer (one of the choices), explanation.`
	user := fmt.Sprintf("Write one %s multiple-choice question in the field of %s.", difficulty, field)

	raw, err := s.provider.Complete(ctx, system, user)
	if err != nil {
		return domain.Question{}, upstreamError("generate_question", err)
	}
	var q domain.Question
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &q); err != nil {
		return domain.Question{}, newError(ErrorUpstream, "bad_generated_question", err)
	}
	if q.Question == "" || len(q.Choices) == 0 || q.Answer == "" {
		return domain.Question{}, newError(ErrorUpstream, "incomplete_generated_question", nil)
	}
	q.ID = "gen-" + s.newID()
	q.Field = field
	q.Difficulty = difficulty
	return q, nil
}

func newQuizSession(field string) *quizSession {
	return &quizSession{
		field:      field,
		asked:      make(map[string]bool),
		issued:     make(map[string]domain.Question),
		difficulty: difficultyOrder[0],
	}
}

func validField(field string) bool {
	for _, f := range QuizFields {
		if f == field {
			return true
		}
	}
	return false
}

func adjustDifficulty(current string, up bool) string {
	for i, d := range difficultyOrder {
		if d != current {
			continue
		}
		if up && i < len(difficultyOrder)-1 {
			return difficultyOrder[i+1]
		}
		if !up && i > 0 {
			return difficultyOrder[i-1]
		}
		return current
	}
	return difficultyOrder[0]
}

// extractJSONObject returns the first balanced {...} block of s, tolerating
// models that wrap JSON in prose or code fences.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return s
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}
