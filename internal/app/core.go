package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"echo-trivia/internal/domain"
	"echo-trivia/internal/generator"
	"github.com/google/uuid"
)

// TTLs groups lifetimes of ephemeral data.
type TTLs struct {
	State     time.Duration
	AnswerKey time.Duration
	// Claim bounds how long a player stays bound to their Faceoff session.
	Claim time.Duration
}

// Core carries the collaborators shared by every game mode.
type Core struct {
	Keys      AnswerKeyStore
	Evaluator *Evaluator
	States    StateStore
	History   SessionHistory
	Events    EventPublisher
	Source    QuestionSource
	TTL       TTLs
	Log       *slog.Logger
	Now       func() time.Time
	NewID     func() string
}

// NewCore fills defaults for the clock, id source and logger.
func NewCore(c Core) *Core {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.TTL.State <= 0 {
		c.TTL.State = 2 * time.Hour
	}
	if c.TTL.AnswerKey <= 0 {
		c.TTL.AnswerKey = 2 * time.Hour
	}
	if c.TTL.Claim <= 0 {
		c.TTL.Claim = 30 * 24 * time.Hour
	}
	return &c
}

// issue assigns ids to generated questions and stores their answers under container before
// anything is handed back. A key store failure aborts the whole batch.
func (c *Core) issue(ctx context.Context, container string, specs []generator.Spec, raws []generator.RawQuestion, points []int) ([]domain.KeyedQuestion, error) {
	return c.issueFor(ctx, container, specs, raws, points, c.TTL.AnswerKey)
}

func (c *Core) issueFor(ctx context.Context, container string, specs []generator.Spec, raws []generator.RawQuestion, points []int, ttl time.Duration) ([]domain.KeyedQuestion, error) {
	keyed := make([]domain.KeyedQuestion, len(raws))
	entries := make([]domain.AnswerKeyEntry, len(raws))
	for i, raw := range raws {
		q := domain.KeyedQuestion{
			PublicQuestion: domain.PublicQuestion{
				ID:         c.NewID(),
				Type:       raw.Type,
				Prompt:     raw.Prompt,
				Choices:    raw.Choices,
				Category:   specs[i].Category,
				Difficulty: specs[i].Difficulty,
			},
			Answer:      raw.Answer,
			Explanation: raw.Explanation,
		}
		if points != nil {
			q.Points = points[i]
		}
		keyed[i] = q
		entries[i] = q.Key()
	}
	if err := c.Keys.Store(ctx, container, entries, ttl); err != nil {
		return nil, fmt.Errorf("store answer keys: %w", err)
	}
	return keyed, nil
}

// generateOne generates and keys a single question for a one-question-at-a-time mode.
func (c *Core) generateOne(ctx context.Context, container string, spec generator.Spec, points int) (domain.KeyedQuestion, error) {
	raw, err := c.Source.Generate(ctx, spec)
	if err != nil {
		return domain.KeyedQuestion{}, err
	}
	qs, err := c.issue(ctx, container, []generator.Spec{spec}, []generator.RawQuestion{raw}, []int{points})
	if err != nil {
		return domain.KeyedQuestion{}, err
	}
	return qs[0], nil
}

// complete persists a finished session and computes its standing. Persisting is critical;
// the standing and the event are best effort.
func (c *Core) complete(ctx context.Context, rec domain.CompletedSession) (domain.Standing, error) {
	if err := c.History.Save(ctx, rec); err != nil {
		return domain.Standing{}, fmt.Errorf("save completed session: %w", err)
	}

	standing := domain.Standing{}
	rank, err := c.History.Rank(ctx, rec.Mode, rec.Bucket, rec.Score)
	if err != nil {
		c.Log.Warn("rank unavailable", "session", rec.ID, "err", err)
		standing.Degraded = true
	} else {
		standing.Rank = rank
	}
	best, err := c.History.PersonalBest(ctx, rec.UserID, rec.Mode, rec.Bucket, rec.Score, rec.ID)
	if err != nil {
		c.Log.Warn("personal best unavailable", "session", rec.ID, "err", err)
		standing.Degraded = true
	} else {
		standing.PersonalBest = best
	}

	if c.Events != nil {
		ev := SessionCompleted{
			SessionID:    rec.ID,
			UserID:       rec.UserID,
			Mode:         rec.Mode,
			Bucket:       rec.Bucket,
			Score:        rec.Score,
			Rank:         standing.Rank,
			PersonalBest: standing.PersonalBest,
			CompletedAt:  rec.CompletedAt,
		}
		if err := c.Events.PublishSessionCompleted(ctx, ev); err != nil {
			c.Log.Warn("publish session completed", "session", rec.ID, "err", err)
		}
	}
	return standing, nil
}

// invalidate drops answer keys of a finished container. Errors are logged; the keys still expire.
func (c *Core) invalidate(ctx context.Context, container string) {
	if err := c.Keys.Invalidate(ctx, container); err != nil {
		c.Log.Warn("invalidate answer keys", "container", container, "err", err)
	}
}

func checkOwner(ownerID, userID string) error {
	if ownerID != userID {
		return domain.ErrNotOwner
	}
	return nil
}

func attemptFor(q domain.PublicQuestion, response string, v domain.Verdict) domain.QuestionAttempt {
	return domain.QuestionAttempt{
		QuestionID:    q.ID,
		Prompt:        q.Prompt,
		Category:      q.Category,
		UserAnswer:    response,
		CorrectAnswer: v.CanonicalAnswer,
		Correct:       v.Correct,
	}
}
