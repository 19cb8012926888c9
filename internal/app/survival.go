package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"echo-trivia/internal/domain"
	"echo-trivia/internal/generator"
)

// SurvivalQuestion is the public view handed out for the next question.
type SurvivalQuestion struct {
	RunID    string                `json:"runId"`
	Streak   int                   `json:"streak"`
	Question domain.PublicQuestion `json:"question"`
}

// SurvivalResult is the outcome of one survival answer.
type SurvivalResult struct {
	Verdict        domain.Verdict   `json:"verdict"`
	Streak         int              `json:"streak"`
	Status         domain.RunStatus `json:"status"`
	CategoriesSeen []string         `json:"categoriesSeen"`
	Standing       *domain.Standing `json:"standing,omitempty"`
}

// SurvivalService runs endless one-question-at-a-time games that end on the first miss.
type SurvivalService struct {
	core       *Core
	runs       stateRepo[domain.RunState]
	categories []string
	qtype      domain.QuestionType

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSurvivalService(core *Core, categories []string) *SurvivalService {
	return &SurvivalService{
		core:       core,
		runs:       newStateRepo[domain.RunState](core.States, survivalPrefix, core.TTL.State),
		categories: categories,
		qtype:      domain.MultipleChoice,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start opens a new run for ownerID.
func (s *SurvivalService) Start(ctx context.Context, ownerID string, mode domain.SurvivalMode, category string) (*domain.RunState, error) {
	if ownerID == "" {
		return nil, domain.ErrSignInRequired
	}
	if mode == domain.SurvivalMixed && len(s.categories) == 0 {
		return nil, domain.Validationf("no categories configured for mixed mode")
	}
	run, err := domain.NewRunState(s.core.NewID(), ownerID, mode, category, s.core.Now())
	if err != nil {
		return nil, err
	}
	if err := s.runs.create(ctx, run.ID, run); err != nil {
		return nil, err
	}
	s.core.Log.Info("survival run started", "run", run.ID, "mode", mode, "category", run.Category)
	return run, nil
}

// NextQuestion generates the next question. Asking again before answering is rejected.
func (s *SurvivalService) NextQuestion(ctx context.Context, ownerID, runID string) (SurvivalQuestion, error) {
	run, _, err := s.runs.load(ctx, runID)
	if err != nil {
		return SurvivalQuestion{}, err
	}
	if err := checkOwner(run.OwnerID, ownerID); err != nil {
		return SurvivalQuestion{}, err
	}
	if run.Terminal() {
		return SurvivalQuestion{}, domain.ErrRunTerminated
	}
	if run.Pending != nil {
		return SurvivalQuestion{}, domain.ErrQuestionPending
	}

	spec := generator.Spec{Category: s.pickCategory(run), Difficulty: run.NextDifficulty(), Type: s.qtype}
	q, err := s.core.generateOne(ctx, runID, spec, 0)
	if err != nil {
		return SurvivalQuestion{}, err
	}

	run, err = s.runs.update(ctx, runID, func(r *domain.RunState) error {
		return r.Ask(q.PublicQuestion, s.core.Now())
	})
	if err != nil {
		return SurvivalQuestion{}, err
	}
	return SurvivalQuestion{RunID: runID, Streak: run.Streak, Question: q.PublicQuestion}, nil
}

// SubmitAnswer evaluates the pending question. A miss terminates and persists the run.
// A verdict stored by an earlier call is applied if its question is still pending, and a
// terminated run that was not recorded yet is recorded again, so failed submits can be retried.
func (s *SurvivalService) SubmitAnswer(ctx context.Context, ownerID, runID, questionID, response string) (SurvivalResult, error) {
	run, _, err := s.runs.load(ctx, runID)
	if err != nil {
		return SurvivalResult{}, err
	}
	if err := checkOwner(run.OwnerID, ownerID); err != nil {
		return SurvivalResult{}, err
	}

	req := EvalRequest{Container: runID, Scope: runID, QuestionID: questionID, Response: response, Authenticated: true}
	v, answered, err := s.core.Evaluator.Previous(ctx, req)
	if err != nil {
		return SurvivalResult{}, err
	}
	if !answered {
		if run.Terminal() {
			return SurvivalResult{}, domain.ErrRunTerminated
		}
		if run.Pending == nil || run.Pending.Question.ID != questionID {
			return SurvivalResult{}, domain.ErrNoPendingQuestion
		}
		req.Prompt = run.Pending.Question.Prompt
		if v, err = s.core.Evaluator.Evaluate(ctx, req); err != nil {
			return SurvivalResult{}, err
		}
	}

	run, err = s.runs.update(ctx, runID, func(r *domain.RunState) error {
		if r.Terminal() || r.Pending == nil || r.Pending.Question.ID != questionID {
			return errUnchanged
		}
		return r.Answer(attemptFor(r.Pending.Question, v.Response, v), s.core.Now())
	})
	if err != nil {
		return SurvivalResult{}, err
	}
	if !run.Terminal() {
		return s.result(v, run, nil), nil
	}

	standing, err := s.finish(ctx, run)
	if err != nil {
		return SurvivalResult{}, err
	}
	return s.result(v, run, &standing), nil
}

// End finishes an active run early and persists it with the current streak. Ending a run
// that is already over but not recorded yet records it.
func (s *SurvivalService) End(ctx context.Context, ownerID, runID string) (SurvivalResult, error) {
	run, _, err := s.runs.load(ctx, runID)
	if err != nil {
		return SurvivalResult{}, err
	}
	if err := checkOwner(run.OwnerID, ownerID); err != nil {
		return SurvivalResult{}, err
	}
	run, err = s.runs.update(ctx, runID, func(r *domain.RunState) error {
		if r.Terminal() {
			return errUnchanged
		}
		return r.End(s.core.Now())
	})
	if err != nil {
		return SurvivalResult{}, err
	}
	standing, err := s.finish(ctx, run)
	if err != nil {
		return SurvivalResult{}, err
	}
	return SurvivalResult{Streak: run.Streak, Status: run.Status, CategoriesSeen: run.CategoriesSeen, Standing: &standing}, nil
}

// finish records a terminated run and drops its state. The state is only deleted after the
// record is saved, and saving is idempotent on the run id.
func (s *SurvivalService) finish(ctx context.Context, run *domain.RunState) (domain.Standing, error) {
	standing, err := s.core.complete(ctx, run.Completed(run.ID))
	if err != nil {
		return domain.Standing{}, err
	}
	s.core.invalidate(ctx, run.ID)
	if err := s.runs.delete(ctx, run.ID); err != nil {
		s.core.Log.Warn("delete survival run", "run", run.ID, "err", err)
	}
	s.core.Log.Info("survival run over", "run", run.ID, "streak", run.Streak, "rank", standing.Rank)
	return standing, nil
}

func (s *SurvivalService) result(v domain.Verdict, run *domain.RunState, standing *domain.Standing) SurvivalResult {
	return SurvivalResult{
		Verdict:        v,
		Streak:         run.Streak,
		Status:         run.Status,
		CategoriesSeen: run.CategoriesSeen,
		Standing:       standing,
	}
}

func (s *SurvivalService) pickCategory(run *domain.RunState) string {
	if run.Mode == domain.SurvivalCategory {
		return run.Category
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories[s.rnd.Intn(len(s.categories))]
}
