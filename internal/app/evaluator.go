package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"echo-trivia/internal/domain"
)

// DefaultFuzzyThreshold is the minimum judge score counted as correct.
const DefaultFuzzyThreshold = 0.85

// EvalRequest identifies one answer submission.
// Container names the answer key, Scope the play session that owns the evaluation.
type EvalRequest struct {
	Container     string
	Scope         string
	QuestionID    string
	Prompt        string
	Response      string
	Authenticated bool
}

// Evaluator validates answers exactly once per (scope, question).
type Evaluator struct {
	keys      AnswerKeyStore
	evals     EvaluationStore
	judge     Judge
	threshold float64
	now       func() time.Time
	log       *slog.Logger
}

// NewEvaluator builds an Evaluator. judge may be nil, in which case short answers are exact-match only.
func NewEvaluator(keys AnswerKeyStore, evals EvaluationStore, judge Judge, threshold float64, log *slog.Logger) *Evaluator {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{keys: keys, evals: evals, judge: judge, threshold: threshold, now: time.Now, log: log}
}

// Previous returns the stored verdict for a question if the scope already answered it.
func (e *Evaluator) Previous(ctx context.Context, req EvalRequest) (domain.Verdict, bool, error) {
	entry, err := e.lookupKey(ctx, req)
	if err != nil {
		return domain.Verdict{}, false, err
	}
	ev, err := e.evals.Get(ctx, req.Scope, req.QuestionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Verdict{}, false, nil
	}
	if err != nil {
		return domain.Verdict{}, false, fmt.Errorf("load evaluation: %w", err)
	}
	return verdict(entry, ev, true), true, nil
}

// Evaluate judges the response and records the verdict. A repeated or racing submission gets
// the first verdict back with AlreadyAnswered set. Game state is keyed on the question, so
// callers may apply any returned verdict as long as the transition itself is idempotent.
func (e *Evaluator) Evaluate(ctx context.Context, req EvalRequest) (domain.Verdict, error) {
	entry, err := e.lookupKey(ctx, req)
	if err != nil {
		return domain.Verdict{}, err
	}

	prev, err := e.evals.Get(ctx, req.Scope, req.QuestionID)
	switch {
	case err == nil:
		return verdict(entry, prev, true), nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Verdict{}, fmt.Errorf("load evaluation: %w", err)
	}

	correct, err := e.grade(ctx, entry, req)
	if err != nil {
		return domain.Verdict{}, err
	}

	stored, inserted, err := e.evals.InsertIfAbsent(ctx, domain.Evaluation{
		Scope:        req.Scope,
		QuestionID:   req.QuestionID,
		UserResponse: req.Response,
		IsCorrect:    correct,
		CreatedAt:    e.now(),
	})
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("store evaluation: %w", err)
	}
	if !inserted {
		e.log.Info("lost evaluation race", "scope", req.Scope, "question", req.QuestionID)
	}
	return verdict(entry, stored, !inserted), nil
}

func (e *Evaluator) lookupKey(ctx context.Context, req EvalRequest) (domain.AnswerKeyEntry, error) {
	if req.Container == "" || req.Scope == "" || req.QuestionID == "" {
		return domain.AnswerKeyEntry{}, domain.Validationf("container, scope and question id are required")
	}
	entry, err := e.keys.Lookup(ctx, req.Container, req.QuestionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.AnswerKeyEntry{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.AnswerKeyEntry{}, fmt.Errorf("lookup answer key: %w", err)
	}
	return entry, nil
}

func (e *Evaluator) grade(ctx context.Context, entry domain.AnswerKeyEntry, req EvalRequest) (bool, error) {
	switch entry.QuestionType {
	case domain.MultipleChoice, domain.TrueFalse:
		return domain.NormalizeLoose(req.Response) == domain.NormalizeLoose(entry.CanonicalAnswer), nil
	}

	if NormalizeAnswer(req.Response) == NormalizeAnswer(entry.CanonicalAnswer) {
		return true, nil
	}
	if !req.Authenticated || e.judge == nil || NormalizeAnswer(req.Response) == "" {
		return false, nil
	}
	j, err := e.judge.Judge(ctx, req.Prompt, entry.CanonicalAnswer, req.Response)
	if err != nil {
		if errors.Is(err, domain.ErrGeneration) {
			return false, err
		}
		return false, fmt.Errorf("%w: judge: %v", domain.ErrGeneration, err)
	}
	return j.Score >= e.threshold, nil
}

func verdict(entry domain.AnswerKeyEntry, ev domain.Evaluation, already bool) domain.Verdict {
	correct := ev.IsCorrect
	explanation := entry.Explanation
	if explanation == "" {
		if correct {
			explanation = "Correct!"
		} else {
			explanation = "The correct answer is: " + entry.CanonicalAnswer
		}
	}
	return domain.Verdict{
		QuestionID:      entry.QuestionID,
		Correct:         correct,
		CanonicalAnswer: entry.CanonicalAnswer,
		Explanation:     explanation,
		AlreadyAnswered: already,
		Response:        ev.UserResponse,
	}
}

// NormalizeAnswer casefolds s and drops punctuation and extra whitespace.
func NormalizeAnswer(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}
