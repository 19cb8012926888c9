package app

import (
	"context"
	"errors"
	"time"

	"echo-trivia/internal/domain"
	"echo-trivia/internal/generator"
)

// AnswerKeyStore holds server-side answers per container (quiz, run, game, challenge).
// Entries are append-only: storing an existing question id keeps the first answer.
type AnswerKeyStore interface {
	Store(ctx context.Context, containerID string, entries []domain.AnswerKeyEntry, ttl time.Duration) error
	// Lookup returns domain.ErrNotFound for unknown or expired containers and questions.
	Lookup(ctx context.Context, containerID, questionID string) (domain.AnswerKeyEntry, error)
	Entries(ctx context.Context, containerID string) ([]domain.AnswerKeyEntry, error)
	Invalidate(ctx context.Context, containerID string) error
}

// EvaluationStore keeps at most one evaluation per (scope, question).
type EvaluationStore interface {
	// Get returns domain.ErrNotFound when nothing was recorded.
	Get(ctx context.Context, scope, questionID string) (domain.Evaluation, error)
	// InsertIfAbsent atomically stores ev unless a record exists; it returns the stored record
	// and whether this call created it.
	InsertIfAbsent(ctx context.Context, ev domain.Evaluation) (domain.Evaluation, bool, error)
}

// ErrStateConflict is returned by StateStore.Swap when the record changed since it was read.
var ErrStateConflict = errors.New("state version conflict")

// StateRecord is an opaque versioned blob.
type StateRecord struct {
	Value   []byte
	Version int64
}

// StateStore is the TTL-bounded ephemeral state store with compare-and-swap updates.
type StateStore interface {
	// Create stores value at version 1; it returns ErrStateConflict if the key exists.
	Create(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns domain.ErrNotFound for missing or expired keys.
	Get(ctx context.Context, key string) (StateRecord, error)
	// Swap replaces the value if the stored version equals version and returns the new version.
	Swap(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
}

// SessionHistory stores completed sessions and answers rank questions about them.
type SessionHistory interface {
	// Save is idempotent on rec.ID: saving a record id again is a no-op.
	Save(ctx context.Context, rec domain.CompletedSession) error
	// Rank is 1 + the number of sessions in mode/bucket with a strictly greater score.
	Rank(ctx context.Context, mode, bucket string, score int) (int, error)
	// PersonalBest reports whether score beats every earlier session of userID in mode/bucket,
	// ignoring the session excludeID. With no earlier session it is true.
	PersonalBest(ctx context.Context, userID, mode, bucket string, score int, excludeID string) (bool, error)
}

// LeaderboardReader is the read projection over completed sessions.
type LeaderboardReader interface {
	Top(ctx context.Context, mode, bucket string, limit int) (domain.Leaderboard, error)
}

// ProgressStore keeps durable tower progress.
type ProgressStore interface {
	// Get returns domain.ErrNotFound for users that never played.
	Get(ctx context.Context, userID string) (domain.TowerProgress, error)
	// Update runs fn on the user's progress as one atomic read-modify-write and returns the
	// result. Users that never played start from domain.NewTowerProgress. HighestFloor is never
	// lowered and achievements are left to AddAchievements.
	Update(ctx context.Context, userID string, fn func(*domain.TowerProgress) error) (domain.TowerProgress, error)
	AddAchievements(ctx context.Context, userID string, names []string) error
}

// ChallengeStore keeps immutable Faceoff challenges.
type ChallengeStore interface {
	Create(ctx context.Context, ch domain.FaceoffChallenge) error
	// ByCode returns domain.ErrChallengeNotFound for unknown share codes.
	ByCode(ctx context.Context, shareCode string) (domain.FaceoffChallenge, error)
}

// SessionCompleted is published after a completed session was persisted.
type SessionCompleted struct {
	SessionID    string    `json:"sessionId"`
	UserID       string    `json:"userId"`
	Mode         string    `json:"mode"`
	Bucket       string    `json:"bucket"`
	Score        int       `json:"score"`
	Rank         int       `json:"rank,omitempty"`
	PersonalBest bool      `json:"personalBest"`
	CompletedAt  time.Time `json:"completedAt"`
}

// EventPublisher delivers session events. Failures are never fatal to the caller.
type EventPublisher interface {
	PublishSessionCompleted(ctx context.Context, ev SessionCompleted) error
}

// QuestionSource generates validated questions.
type QuestionSource interface {
	Generate(ctx context.Context, spec generator.Spec) (generator.RawQuestion, error)
	GenerateBatch(ctx context.Context, specs []generator.Spec) ([]generator.RawQuestion, error)
}

// Judge grades free-text answers.
type Judge interface {
	Judge(ctx context.Context, prompt, canonical, response string) (generator.Judgment, error)
}
