package app

import (
	"context"
	"errors"
	"fmt"

	"echo-trivia/internal/domain"
	"echo-trivia/internal/generator"
)

// TowerOptions configures the tower campaign.
type TowerOptions struct {
	Categories        []string
	QuestionsPerFloor int
	PassRatio         float64
	QuestionType      domain.QuestionType
}

// TowerView is a user's progress plus the tower layout.
type TowerView struct {
	Progress    domain.TowerProgress `json:"progress"`
	TotalFloors int                  `json:"totalFloors"`
	Next        *domain.FloorPlan    `json:"next,omitempty"`
}

// FloorStart is handed back when a floor begins.
type FloorStart struct {
	AttemptID string                  `json:"attemptId"`
	Plan      domain.FloorPlan        `json:"plan"`
	Questions []domain.PublicQuestion `json:"questions"`
}

// TowerAnswer is the outcome of one floor answer.
type TowerAnswer struct {
	Verdict  domain.Verdict `json:"verdict"`
	Answered int            `json:"answered"`
	Correct  int            `json:"correct"`
	Total    int            `json:"total"`
}

// FloorOutcome is the result of completing a floor.
type FloorOutcome struct {
	Result          domain.FloorResult   `json:"result"`
	Progress        domain.TowerProgress `json:"progress"`
	NewAchievements []string             `json:"newAchievements"`
	Standing        domain.Standing      `json:"standing"`
}

// TowerService runs the floor-by-floor campaign with durable progress.
type TowerService struct {
	core     *Core
	progress ProgressStore
	attempts stateRepo[domain.FloorAttempt]
	opts     TowerOptions
}

func NewTowerService(core *Core, progress ProgressStore, opts TowerOptions) *TowerService {
	if opts.QuestionsPerFloor <= 0 {
		opts.QuestionsPerFloor = 5
	}
	if opts.PassRatio <= 0 || opts.PassRatio > 1 {
		opts.PassRatio = 0.6
	}
	if !opts.QuestionType.Valid() {
		opts.QuestionType = domain.MultipleChoice
	}
	return &TowerService{
		core:     core,
		progress: progress,
		attempts: newStateRepo[domain.FloorAttempt](core.States, towerPrefix, core.TTL.State),
		opts:     opts,
	}
}

// Progress returns the caller's progress; users that never played start at floor 1.
func (s *TowerService) Progress(ctx context.Context, ownerID string) (TowerView, error) {
	if ownerID == "" {
		return TowerView{}, domain.ErrSignInRequired
	}
	p, err := s.load(ctx, ownerID)
	if err != nil {
		return TowerView{}, err
	}
	view := TowerView{Progress: p, TotalFloors: domain.TowerFloors(s.opts.Categories)}
	if plan, err := domain.PlanFloor(p.HighestFloor, s.opts.Categories); err == nil {
		view.Next = &plan
	}
	return view, nil
}

// StartFloor generates the questions of an unlocked floor.
func (s *TowerService) StartFloor(ctx context.Context, ownerID string, floor int) (FloorStart, error) {
	if ownerID == "" {
		return FloorStart{}, domain.ErrSignInRequired
	}
	plan, err := domain.PlanFloor(floor, s.opts.Categories)
	if err != nil {
		return FloorStart{}, err
	}
	p, err := s.load(ctx, ownerID)
	if err != nil {
		return FloorStart{}, err
	}
	if !p.CanAccess(floor) {
		return FloorStart{}, domain.ErrFloorLocked
	}

	specs := make([]generator.Spec, s.opts.QuestionsPerFloor)
	for i := range specs {
		specs[i] = generator.Spec{Category: plan.Category, Difficulty: plan.Difficulty, Type: s.opts.QuestionType}
	}
	raws, err := s.core.Source.GenerateBatch(ctx, specs)
	if err != nil {
		return FloorStart{}, err
	}

	attemptID := s.core.NewID()
	keyed, err := s.core.issue(ctx, attemptID, specs, raws, nil)
	if err != nil {
		return FloorStart{}, err
	}
	questions := domain.Public(keyed)
	attempt := domain.NewFloorAttempt(attemptID, ownerID, plan, questions, s.core.Now())
	if err := s.attempts.create(ctx, attemptID, attempt); err != nil {
		return FloorStart{}, err
	}
	s.core.Log.Info("tower floor started", "attempt", attemptID, "floor", floor, "category", plan.Category)
	return FloorStart{AttemptID: attemptID, Plan: plan, Questions: questions}, nil
}

// SubmitAnswer evaluates one question of a floor attempt.
func (s *TowerService) SubmitAnswer(ctx context.Context, ownerID, attemptID, questionID, response string) (TowerAnswer, error) {
	attempt, _, err := s.attempts.load(ctx, attemptID)
	if err != nil {
		return TowerAnswer{}, err
	}
	if err := checkOwner(attempt.OwnerID, ownerID); err != nil {
		return TowerAnswer{}, err
	}
	question, ok := attempt.Question(questionID)
	if !ok {
		return TowerAnswer{}, domain.ErrQuestionNotFound
	}

	req := EvalRequest{
		Container:     attemptID,
		Scope:         attemptID,
		QuestionID:    questionID,
		Prompt:        question.Prompt,
		Response:      response,
		Authenticated: true,
	}
	v, answered, err := s.core.Evaluator.Previous(ctx, req)
	if err != nil {
		return TowerAnswer{}, err
	}
	if !answered {
		if attempt.Status != domain.GameInProgress {
			return TowerAnswer{}, domain.ErrSessionFinished
		}
		if v, err = s.core.Evaluator.Evaluate(ctx, req); err != nil {
			return TowerAnswer{}, err
		}
	}

	attempt, err = s.attempts.update(ctx, attemptID, func(a *domain.FloorAttempt) error {
		if _, done := a.Answered[questionID]; done || a.Status != domain.GameInProgress {
			return errUnchanged
		}
		return a.Answer(attemptFor(question, v.Response, v))
	})
	if err != nil {
		return TowerAnswer{}, err
	}
	return towerAnswer(v, attempt), nil
}

// CompleteFloor scores a fully answered floor and advances progress when it was passed.
// Progress remembers which attempts it already counted, so a completion that failed halfway
// can be retried.
func (s *TowerService) CompleteFloor(ctx context.Context, ownerID, attemptID string) (FloorOutcome, error) {
	attempt, _, err := s.attempts.load(ctx, attemptID)
	if err != nil {
		return FloorOutcome{}, err
	}
	if err := checkOwner(attempt.OwnerID, ownerID); err != nil {
		return FloorOutcome{}, err
	}

	attempt, err = s.attempts.update(ctx, attemptID, func(a *domain.FloorAttempt) error {
		if a.Status == domain.GameComplete {
			return errUnchanged
		}
		return a.Complete(s.core.Now())
	})
	if err != nil {
		return FloorOutcome{}, err
	}
	result := attempt.Result(s.opts.PassRatio)

	var earned []string
	p, err := s.progress.Update(ctx, ownerID, func(p *domain.TowerProgress) error {
		earned, _ = p.ApplyAttempt(attempt.ID, result, s.opts.Categories, attempt.CompletedAt)
		return nil
	})
	if err != nil {
		return FloorOutcome{}, fmt.Errorf("save tower progress: %w", err)
	}
	if len(earned) > 0 {
		if err := s.progress.AddAchievements(ctx, ownerID, earned); err != nil {
			s.core.Log.Warn("record achievements", "user", ownerID, "err", err)
			earned = nil
		} else {
			p.Achievements = append(p.Achievements, earned...)
		}
	}

	standing, err := s.core.complete(ctx, domain.CompletedSession{
		ID:          attempt.ID,
		UserID:      ownerID,
		Mode:        domain.ModeTower,
		Bucket:      fmt.Sprintf("floor-%d", result.Floor),
		Score:       result.Correct,
		Attempts:    attempt.Attempts(),
		TimePlayed:  attempt.CompletedAt.Sub(attempt.StartedAt),
		StartedAt:   attempt.StartedAt,
		CompletedAt: attempt.CompletedAt,
	})
	if err != nil {
		return FloorOutcome{}, err
	}

	s.core.invalidate(ctx, attemptID)
	if err := s.attempts.delete(ctx, attemptID); err != nil {
		s.core.Log.Warn("delete floor attempt", "attempt", attemptID, "err", err)
	}
	s.core.Log.Info("tower floor complete", "attempt", attemptID, "floor", result.Floor, "passed", result.Passed)
	if earned == nil {
		earned = []string{}
	}
	return FloorOutcome{Result: result, Progress: p, NewAchievements: earned, Standing: standing}, nil
}

func (s *TowerService) load(ctx context.Context, ownerID string) (domain.TowerProgress, error) {
	p, err := s.progress.Get(ctx, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewTowerProgress(ownerID), nil
	}
	if err != nil {
		return domain.TowerProgress{}, fmt.Errorf("load tower progress: %w", err)
	}
	return p, nil
}

func towerAnswer(v domain.Verdict, a *domain.FloorAttempt) TowerAnswer {
	return TowerAnswer{Verdict: v, Answered: len(a.Answered), Correct: a.Correct, Total: len(a.Questions)}
}
