package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"echo-trivia/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// SessionHistory stores completed sessions in completed_sessions.
type SessionHistory struct {
	db bun.IDB
}

func NewSessionHistory(db bun.IDB) *SessionHistory {
	return &SessionHistory{db: db}
}

// Save inserts rec; a record id that is already stored is left untouched.
func (h *SessionHistory) Save(ctx context.Context, rec domain.CompletedSession) error {
	_, err := h.db.NewInsert().Model(toSessionModel(rec)).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert completed session: %w", err)
	}
	return nil
}

func (h *SessionHistory) Rank(ctx context.Context, mode, bucket string, score int) (int, error) {
	better, err := h.db.NewSelect().
		Model((*sessionModel)(nil)).
		Where("mode = ?", mode).
		Where("bucket = ?", bucket).
		Where("score > ?", score).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("rank: %w", err)
	}
	return better + 1, nil
}

func (h *SessionHistory) PersonalBest(ctx context.Context, userID, mode, bucket string, score int, excludeID string) (bool, error) {
	beaten, err := h.db.NewSelect().
		Model((*sessionModel)(nil)).
		Where("user_id = ?", userID).
		Where("mode = ?", mode).
		Where("bucket = ?", bucket).
		Where("id <> ?", excludeID).
		Where("score >= ?", score).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("personal best: %w", err)
	}
	return !beaten, nil
}

// ProgressStore keeps tower progress in tower_progress.
type ProgressStore struct {
	db *bun.DB
}

func NewProgressStore(db *bun.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

func (s *ProgressStore) Get(ctx context.Context, userID string) (domain.TowerProgress, error) {
	m := new(progressModel)
	err := s.db.NewSelect().Model(m).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TowerProgress{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TowerProgress{}, fmt.Errorf("get tower progress: %w", err)
	}
	return m.domain(), nil
}

// Update locks the user's row for the transaction, creating it first when missing.
// highest_floor only moves up and achievements are left to AddAchievements.
func (s *ProgressStore) Update(ctx context.Context, userID string, fn func(*domain.TowerProgress) error) (domain.TowerProgress, error) {
	var out domain.TowerProgress
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		fresh := toProgressModel(domain.NewTowerProgress(userID))
		if _, err := tx.NewInsert().Model(fresh).On("CONFLICT (user_id) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("init tower progress: %w", err)
		}

		m := new(progressModel)
		q := tx.NewSelect().Model(m).Where("user_id = ?", userID)
		if tx.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			return fmt.Errorf("load tower progress: %w", err)
		}

		p := m.domain()
		highest := p.HighestFloor
		if err := fn(&p); err != nil {
			return err
		}
		p.UserID = userID
		if p.HighestFloor < highest {
			p.HighestFloor = highest
		}
		p.Achievements = m.domain().Achievements

		_, err := tx.NewUpdate().
			Model(toProgressModel(p)).
			Column("current_floor", "highest_floor", "total_questions", "total_correct", "perfect_floors", "applied_attempts", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("save tower progress: %w", err)
		}
		out = p
		return nil
	})
	return out, err
}

func (s *ProgressStore) AddAchievements(ctx context.Context, userID string, names []string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		m := new(progressModel)
		q := tx.NewSelect().Model(m).Where("user_id = ?", userID)
		if tx.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		err := q.Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load achievements: %w", err)
		}

		p := m.domain()
		for _, n := range names {
			if !p.HasAchievement(n) {
				p.Achievements = append(p.Achievements, n)
			}
		}
		m.Achievements = p.Achievements
		_, err = tx.NewUpdate().Model(m).Column("achievements").WherePK().Exec(ctx)
		if err != nil {
			return fmt.Errorf("update achievements: %w", err)
		}
		return nil
	})
}

// ChallengeStore keeps immutable Faceoff challenges in faceoff_challenges.
type ChallengeStore struct {
	db bun.IDB
}

func NewChallengeStore(db bun.IDB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

func (s *ChallengeStore) Create(ctx context.Context, ch domain.FaceoffChallenge) error {
	m := &challengeModel{
		ID:           ch.ID,
		ShareCode:    ch.ShareCode,
		CreatorID:    ch.CreatorID,
		Questions:    ch.Questions,
		Settings:     ch.Settings,
		CreatorScore: ch.CreatorScore,
		CreatedAt:    ch.CreatedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

func (s *ChallengeStore) ByCode(ctx context.Context, shareCode string) (domain.FaceoffChallenge, error) {
	m := new(challengeModel)
	err := s.db.NewSelect().Model(m).Where("share_code = ?", shareCode).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FaceoffChallenge{}, domain.ErrChallengeNotFound
	}
	if err != nil {
		return domain.FaceoffChallenge{}, fmt.Errorf("load challenge: %w", err)
	}
	return m.domain(), nil
}

// EvaluationStore is the durable variant of the evaluation record; the unique
// (scope, question_id) key makes the first insert win.
type EvaluationStore struct {
	db bun.IDB
}

func NewEvaluationStore(db bun.IDB) *EvaluationStore {
	return &EvaluationStore{db: db}
}

func (s *EvaluationStore) Get(ctx context.Context, scope, questionID string) (domain.Evaluation, error) {
	m := new(evaluationModel)
	err := s.db.NewSelect().Model(m).
		Where("scope = ?", scope).
		Where("question_id = ?", questionID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Evaluation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("get evaluation: %w", err)
	}
	return m.domain(), nil
}

func (s *EvaluationStore) InsertIfAbsent(ctx context.Context, ev domain.Evaluation) (domain.Evaluation, bool, error) {
	m := &evaluationModel{
		Scope:        ev.Scope,
		QuestionID:   ev.QuestionID,
		UserResponse: ev.UserResponse,
		IsCorrect:    ev.IsCorrect,
		CreatedAt:    ev.CreatedAt.UTC(),
	}
	res, err := s.db.NewInsert().Model(m).On("CONFLICT (scope, question_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return domain.Evaluation{}, false, fmt.Errorf("insert evaluation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Evaluation{}, false, fmt.Errorf("insert evaluation: %w", err)
	}
	if n == 1 {
		return ev, true, nil
	}
	stored, err := s.Get(ctx, ev.Scope, ev.QuestionID)
	return stored, false, err
}
