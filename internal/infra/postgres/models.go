package postgres

import (
	"time"

	"echo-trivia/internal/domain"
	"github.com/uptrace/bun"
)

type sessionModel struct {
	bun.BaseModel `bun:"table:completed_sessions"`

	ID           string                   `bun:"id,pk"`
	UserID       string                   `bun:"user_id,notnull"`
	Mode         string                   `bun:"mode,notnull"`
	Bucket       string                   `bun:"bucket,notnull"`
	Score        int                      `bun:"score,notnull"`
	Streak       int                      `bun:"streak,notnull"`
	Attempts     []domain.QuestionAttempt `bun:"attempts,type:jsonb"`
	TimePlayedMS int64                    `bun:"time_played_ms,notnull"`
	StartedAt    time.Time                `bun:"started_at,notnull"`
	CompletedAt  time.Time                `bun:"completed_at,notnull"`
}

func toSessionModel(rec domain.CompletedSession) *sessionModel {
	return &sessionModel{
		ID:           rec.ID,
		UserID:       rec.UserID,
		Mode:         rec.Mode,
		Bucket:       rec.Bucket,
		Score:        rec.Score,
		Streak:       rec.Streak,
		Attempts:     rec.Attempts,
		TimePlayedMS: rec.TimePlayed.Milliseconds(),
		StartedAt:    rec.StartedAt.UTC(),
		CompletedAt:  rec.CompletedAt.UTC(),
	}
}

type progressModel struct {
	bun.BaseModel `bun:"table:tower_progress"`

	UserID         string    `bun:"user_id,pk"`
	CurrentFloor   int       `bun:"current_floor,notnull"`
	HighestFloor   int       `bun:"highest_floor,notnull"`
	TotalQuestions int       `bun:"total_questions,notnull"`
	TotalCorrect   int       `bun:"total_correct,notnull"`
	PerfectFloors  []int     `bun:"perfect_floors,type:jsonb"`
	Achievements   []string  `bun:"achievements,type:jsonb"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`

	AppliedAttempts []string `bun:"applied_attempts,type:jsonb"`
}

func toProgressModel(p domain.TowerProgress) *progressModel {
	m := &progressModel{
		UserID:          p.UserID,
		CurrentFloor:    p.CurrentFloor,
		HighestFloor:    p.HighestFloor,
		TotalQuestions:  p.TotalQuestions,
		TotalCorrect:    p.TotalCorrect,
		PerfectFloors:   p.PerfectFloors,
		Achievements:    p.Achievements,
		UpdatedAt:       p.UpdatedAt.UTC(),
		AppliedAttempts: p.AppliedAttempts,
	}
	if m.PerfectFloors == nil {
		m.PerfectFloors = []int{}
	}
	if m.Achievements == nil {
		m.Achievements = []string{}
	}
	if m.AppliedAttempts == nil {
		m.AppliedAttempts = []string{}
	}
	return m
}

func (m *progressModel) domain() domain.TowerProgress {
	p := domain.TowerProgress{
		UserID:         m.UserID,
		CurrentFloor:   m.CurrentFloor,
		HighestFloor:   m.HighestFloor,
		TotalQuestions: m.TotalQuestions,
		TotalCorrect:   m.TotalCorrect,
		PerfectFloors:  m.PerfectFloors,
		Achievements:   m.Achievements,
		UpdatedAt:      m.UpdatedAt,

		AppliedAttempts: m.AppliedAttempts,
	}
	if p.PerfectFloors == nil {
		p.PerfectFloors = []int{}
	}
	if p.Achievements == nil {
		p.Achievements = []string{}
	}
	return p
}

type challengeModel struct {
	bun.BaseModel `bun:"table:faceoff_challenges"`

	ID           string                 `bun:"id,pk"`
	ShareCode    string                 `bun:"share_code,notnull,unique"`
	CreatorID    string                 `bun:"creator_id,notnull"`
	Questions    []domain.KeyedQuestion `bun:"questions,type:jsonb"`
	Settings     domain.QuizSettings    `bun:"settings,type:jsonb"`
	CreatorScore int                    `bun:"creator_score,notnull"`
	CreatedAt    time.Time              `bun:"created_at,notnull"`
}

func (m *challengeModel) domain() domain.FaceoffChallenge {
	return domain.FaceoffChallenge{
		ID:           m.ID,
		ShareCode:    m.ShareCode,
		CreatorID:    m.CreatorID,
		Questions:    m.Questions,
		Settings:     m.Settings,
		CreatorScore: m.CreatorScore,
		CreatedAt:    m.CreatedAt,
	}
}

type evaluationModel struct {
	bun.BaseModel `bun:"table:evaluations"`

	Scope        string    `bun:"scope,pk"`
	QuestionID   string    `bun:"question_id,pk"`
	UserResponse string    `bun:"user_response,notnull"`
	IsCorrect    bool      `bun:"is_correct,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

func (m *evaluationModel) domain() domain.Evaluation {
	return domain.Evaluation{
		Scope:        m.Scope,
		QuestionID:   m.QuestionID,
		UserResponse: m.UserResponse,
		IsCorrect:    m.IsCorrect,
		CreatedAt:    m.CreatedAt,
	}
}

// Models lists every table owned by this package, in creation order.
func Models() []interface{} {
	return []interface{}{
		(*sessionModel)(nil),
		(*progressModel)(nil),
		(*challengeModel)(nil),
		(*evaluationModel)(nil),
	}
}
