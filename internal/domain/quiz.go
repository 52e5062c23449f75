package domain

// QuizAnswer is a logged response to an evaluation prompt, keyed by user and
// timestamp. Append-only, never updated.
type QuizAnswer struct {
	UserID      string
	Timestamp   string
	QuestionID  string
	Field       string
	Difficulty  string
	GivenAnswer string
	Correct     bool
}

// Question is one entry of the quiz question bank.
type Question struct {
	ID          string   `json:"id"`
	Field       string   `json:"field"`
	Difficulty  string   `json:"difficulty"`
	Question    string   `json:"question"`
	Choices     []string `json:"choices"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}
