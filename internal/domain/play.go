package domain

import "time"

// PlaySession is one player's pass over a shared quiz (Faceoff challenge or daily quiz).
// ContainerID names the shared answer key; ID is the player's evaluation scope.
type PlaySession struct {
	ID          string                     `json:"id"`
	OwnerID     string                     `json:"ownerId"`
	ContainerID string                     `json:"containerId"`
	Mode        string                     `json:"mode"`
	Bucket      string                     `json:"bucket"`
	Questions   []PublicQuestion           `json:"questions"`
	Answered    map[string]QuestionAttempt `json:"answered"`
	Score       int                        `json:"score"`
	Correct     int                        `json:"correct"`
	Status      GameStatus                 `json:"status"`
	StartedAt   time.Time                  `json:"startedAt"`
	CompletedAt time.Time                  `json:"completedAt,omitempty"`
}

// NewPlaySession starts a session over questions.
func NewPlaySession(id, ownerID, containerID, mode, bucket string, questions []PublicQuestion, now time.Time) *PlaySession {
	return &PlaySession{
		ID:          id,
		OwnerID:     ownerID,
		ContainerID: containerID,
		Mode:        mode,
		Bucket:      bucket,
		Questions:   questions,
		Answered:    make(map[string]QuestionAttempt, len(questions)),
		Status:      GameInProgress,
		StartedAt:   now,
	}
}

// Question returns the public question with id.
func (s *PlaySession) Question(id string) (PublicQuestion, bool) {
	return findQuestion(s.Questions, id)
}

// Answer records a verdict. Every correct answer is worth one point.
func (s *PlaySession) Answer(attempt QuestionAttempt) error {
	if s.Status != GameInProgress {
		return ErrSessionFinished
	}
	q, ok := s.Question(attempt.QuestionID)
	if !ok {
		return ErrQuestionNotFound
	}
	if _, done := s.Answered[attempt.QuestionID]; done {
		return ErrNoPendingQuestion
	}
	attempt.Category = q.Category
	if attempt.Correct {
		attempt.Points = 1
		s.Correct++
		s.Score++
	}
	s.Answered[attempt.QuestionID] = attempt
	return nil
}

// Finish closes the session. Unanswered questions simply score nothing.
func (s *PlaySession) Finish(now time.Time) error {
	if s.Status != GameInProgress {
		return ErrSessionFinished
	}
	s.Status = GameComplete
	s.CompletedAt = now
	return nil
}

// AllAnswered reports whether every question has a verdict.
func (s *PlaySession) AllAnswered() bool {
	return len(s.Answered) == len(s.Questions)
}

// Completed builds the history record for a finished session.
func (s *PlaySession) Completed(recordID string) CompletedSession {
	return CompletedSession{
		ID:          recordID,
		UserID:      s.OwnerID,
		Mode:        s.Mode,
		Bucket:      s.Bucket,
		Score:       s.Score,
		Attempts:    orderedAttempts(s.Questions, s.Answered),
		TimePlayed:  s.CompletedAt.Sub(s.StartedAt),
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
	}
}

// PracticeQuiz is a generated quiz played by a single user or guest.
// Its ID is both the answer key container and the evaluation scope.
type PracticeQuiz struct {
	ID        string                     `json:"id"`
	OwnerID   string                     `json:"ownerId,omitempty"`
	Settings  QuizSettings               `json:"settings"`
	Questions []PublicQuestion           `json:"questions"`
	Answered  map[string]QuestionAttempt `json:"answered"`
	Correct   int                        `json:"correct"`
	CreatedAt time.Time                  `json:"createdAt"`
}

// NewPracticeQuiz wraps generated questions.
func NewPracticeQuiz(id, ownerID string, settings QuizSettings, questions []PublicQuestion, now time.Time) *PracticeQuiz {
	return &PracticeQuiz{
		ID:        id,
		OwnerID:   ownerID,
		Settings:  settings,
		Questions: questions,
		Answered:  make(map[string]QuestionAttempt, len(questions)),
		CreatedAt: now,
	}
}

// Question returns the public question with id.
func (q *PracticeQuiz) Question(id string) (PublicQuestion, bool) {
	return findQuestion(q.Questions, id)
}

// Record stores the first verdict for a question. Later records for the same question are ignored.
func (q *PracticeQuiz) Record(attempt QuestionAttempt) bool {
	if _, done := q.Answered[attempt.QuestionID]; done {
		return false
	}
	if attempt.Correct {
		attempt.Points = 1
		q.Correct++
	}
	q.Answered[attempt.QuestionID] = attempt
	return true
}

// Completed reports whether every question has a verdict.
func (q *PracticeQuiz) Completed() bool {
	return len(q.Questions) > 0 && len(q.Answered) == len(q.Questions)
}

func findQuestion(questions []PublicQuestion, id string) (PublicQuestion, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return PublicQuestion{}, false
}

func orderedAttempts(questions []PublicQuestion, answered map[string]QuestionAttempt) []QuestionAttempt {
	out := make([]QuestionAttempt, 0, len(answered))
	for _, q := range questions {
		if at, ok := answered[q.ID]; ok {
			out = append(out, at)
		}
	}
	return out
}

// DailyQuiz is the shared quiz of one calendar day (UTC). Its answers live in the container DailyContainer(Date).
type DailyQuiz struct {
	Date      string           `json:"date"`
	Settings  QuizSettings     `json:"settings"`
	Questions []PublicQuestion `json:"questions"`
	CreatedAt time.Time        `json:"createdAt"`
}

// DailyContainer names the answer key container of a daily quiz.
func DailyContainer(date string) string {
	return "daily:" + date
}
