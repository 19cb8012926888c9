package domain

import (
	"strings"
	"time"
)

// QuestionType tells the evaluator which matching strategy applies.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, ShortAnswer:
		return true
	}
	return false
}

// Difficulty labels passed to the generator. Callers decide the mapping.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case Easy, Medium, Hard:
		return true
	}
	return false
}

// Choice is one labeled option of a multiple-choice question.
type Choice struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// AnswerKeyEntry is the server-held answer for one question.
type AnswerKeyEntry struct {
	QuestionID      string       `json:"questionId"`
	CanonicalAnswer string       `json:"canonicalAnswer"`
	QuestionType    QuestionType `json:"questionType"`
	Explanation     string       `json:"explanation,omitempty"`
}

// PublicQuestion is the only question shape that is sent to clients before they answer.
// It deliberately has no answer or explanation field.
type PublicQuestion struct {
	ID         string       `json:"id"`
	Type       QuestionType `json:"type"`
	Prompt     string       `json:"prompt"`
	Choices    []Choice     `json:"choices,omitempty"`
	Category   string       `json:"category"`
	Difficulty Difficulty   `json:"difficulty"`
	Points     int          `json:"points,omitempty"`
}

// KeyedQuestion is a generated question together with its answer. Server side only.
type KeyedQuestion struct {
	PublicQuestion
	Answer      string `json:"answer"`
	Explanation string `json:"explanation,omitempty"`
}

// Key returns the answer key entry for q.
func (q KeyedQuestion) Key() AnswerKeyEntry {
	return AnswerKeyEntry{
		QuestionID:      q.ID,
		CanonicalAnswer: q.Answer,
		QuestionType:    q.Type,
		Explanation:     q.Explanation,
	}
}

// Evaluation is the stored verdict for one (scope, question) pair.
type Evaluation struct {
	Scope        string    `json:"scope"`
	QuestionID   string    `json:"questionId"`
	UserResponse string    `json:"userResponse"`
	IsCorrect    bool      `json:"isCorrect"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Verdict is what a caller learns after submitting an answer.
type Verdict struct {
	QuestionID      string `json:"questionId"`
	Correct         bool   `json:"correct"`
	CanonicalAnswer string `json:"canonicalAnswer"`
	Explanation     string `json:"explanation"`
	// AlreadyAnswered is set when the verdict was stored by an earlier submission.
	AlreadyAnswered bool `json:"alreadyAnswered"`
	// Response is the answer the stored verdict was given for.
	Response string `json:"-"`
}

// QuestionAttempt is one answered question inside a completed session.
type QuestionAttempt struct {
	QuestionID    string `json:"questionId"`
	Prompt        string `json:"prompt"`
	Category      string `json:"category,omitempty"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	Correct       bool   `json:"correct"`
	Points        int    `json:"points"`
}

// Game modes recorded in session history.
const (
	ModeSurvival = "survival"
	ModeJeopardy = "jeopardy"
	ModeTower    = "tower"
	ModeFaceoff  = "faceoff"
	ModeDaily    = "daily"
	ModePractice = "practice"
)

// CompletedSession is the append-only history record written at a terminal state.
type CompletedSession struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Mode        string            `json:"mode"`
	Bucket      string            `json:"bucket"`
	Score       int               `json:"score"`
	Streak      int               `json:"streak"`
	Attempts    []QuestionAttempt `json:"attempts"`
	TimePlayed  time.Duration     `json:"timePlayed"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt"`
}

// Standing is the rank projection computed when a session completes.
type Standing struct {
	Rank         int  `json:"rank"`
	PersonalBest bool `json:"personalBest"`
	// Degraded is set when the projection could not be computed.
	Degraded bool `json:"degraded,omitempty"`
}

// LeaderboardEntry is one row of a leaderboard projection.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"userId"`
	Score       int       `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
}

// Leaderboard is the ordered best-score board for a mode and bucket.
type Leaderboard struct {
	Mode    string             `json:"mode"`
	Bucket  string             `json:"bucket"`
	Entries []LeaderboardEntry `json:"entries"`
}

// QuizSettings describes how a batch of questions was generated.
type QuizSettings struct {
	Category     string       `json:"category"`
	Difficulty   Difficulty   `json:"difficulty"`
	QuestionType QuestionType `json:"questionType,omitempty"`
	Count        int          `json:"count"`
}

// FaceoffChallenge is an immutable shared quiz referenced by a share code.
type FaceoffChallenge struct {
	ID           string          `json:"id"`
	ShareCode    string          `json:"shareCode"`
	CreatorID    string          `json:"creatorId"`
	Questions    []KeyedQuestion `json:"questions"`
	Settings     QuizSettings    `json:"settings"`
	CreatorScore int             `json:"creatorScore"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// PublicQuestions strips answers from the challenge questions.
func (c FaceoffChallenge) PublicQuestions() []PublicQuestion {
	return Public(c.Questions)
}

// Public strips answers from keyed questions.
func Public(questions []KeyedQuestion) []PublicQuestion {
	out := make([]PublicQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, q.PublicQuestion)
	}
	return out
}

// NormalizeLoose lowercases and trims s. Used for multiple-choice and true/false matching.
func NormalizeLoose(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
