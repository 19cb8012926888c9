package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"echo-trivia/internal/app"
	"echo-trivia/internal/domain"
	"echo-trivia/internal/infra/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluator(t *testing.T, entries ...domain.AnswerKeyEntry) (*app.Evaluator, *memory.EvaluationStore, *fakeJudge) {
	t.Helper()
	keys := memory.NewAnswerKeyStore()
	require.NoError(t, keys.Store(context.Background(), "quiz-1", entries, time.Hour))
	evals := memory.NewEvaluationStore()
	judge := &fakeJudge{}
	return app.NewEvaluator(keys, evals, judge, 0, slog.New(slog.NewTextHandler(io.Discard, nil))), evals, judge
}

func TestEvaluateAtMostOnce(t *testing.T) {
	ctx := context.Background()
	ev, _, _ := newEvaluator(t, domain.AnswerKeyEntry{QuestionID: "q1", CanonicalAnswer: "Paris", QuestionType: domain.MultipleChoice})
	req := app.EvalRequest{Container: "quiz-1", Scope: "quiz-1", QuestionID: "q1", Response: "  paris "}

	first, err := ev.Evaluate(ctx, req)
	require.NoError(t, err)
	assert.True(t, first.Correct)
	assert.False(t, first.AlreadyAnswered)
	assert.Equal(t, "Correct!", first.Explanation)

	req.Response = "Lyon"
	second, err := ev.Evaluate(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Correct, "second submission must return the first verdict")
	assert.True(t, second.AlreadyAnswered)
}

func TestEvaluateFailsClosedForUnknownContainer(t *testing.T) {
	ev, _, _ := newEvaluator(t, domain.AnswerKeyEntry{QuestionID: "q1", CanonicalAnswer: "Paris", QuestionType: domain.MultipleChoice})

	_, err := ev.Evaluate(context.Background(), app.EvalRequest{Container: "quiz-2", Scope: "quiz-2", QuestionID: "q1", Response: "Paris"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = ev.Evaluate(context.Background(), app.EvalRequest{Container: "quiz-1", Scope: "quiz-1", QuestionID: "q9", Response: "Paris"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEvaluateIncorrectExplanationFallback(t *testing.T) {
	ev, _, _ := newEvaluator(t, domain.AnswerKeyEntry{QuestionID: "q1", CanonicalAnswer: "True", QuestionType: domain.TrueFalse})

	v, err := ev.Evaluate(context.Background(), app.EvalRequest{Container: "quiz-1", Scope: "quiz-1", QuestionID: "q1", Response: "false"})
	require.NoError(t, err)
	assert.False(t, v.Correct)
	assert.Equal(t, "The correct answer is: True", v.Explanation)
	assert.Equal(t, "True", v.CanonicalAnswer)
}

func TestEvaluateShortAnswerNormalization(t *testing.T) {
	ev, _, judge := newEvaluator(t, domain.AnswerKeyEntry{QuestionID: "q1", CanonicalAnswer: "Mount Everest", QuestionType: domain.ShortAnswer, Explanation: "Tallest."})

	v, err := ev.Evaluate(context.Background(), app.EvalRequest{Container: "quiz-1", Scope: "s1", QuestionID: "q1", Response: "mount   everest!"})
	require.NoError(t, err)
	assert.True(t, v.Correct)
	assert.Equal(t, "Tallest.", v.Explanation)
	assert.Zero(t, judge.calls)
}

func TestEvaluateFuzzyJudgeOnlyForSignedInUsers(t *testing.T) {
	ctx := context.Background()
	ev, _, judge := newEvaluator(t, domain.AnswerKeyEntry{QuestionID: "q1", CanonicalAnswer: "Mount Everest", QuestionType: domain.ShortAnswer})
	judge.score = 0.9

	guest, err := ev.Evaluate(ctx, app.EvalRequest{Container: "quiz-1", Scope: "guest", QuestionID: "q1", Response: "Mt Everest"})
	require.NoError(t, err)
	assert.False(t, guest.Correct)
	assert.Zero(t, judge.calls)

	user, err := ev.Evaluate(ctx, app.EvalRequest{Container: "quiz-1", Scope: "user", QuestionID: "q1", Response: "Mt Everest", Authenticated: true})
	require.NoError(t, err)
	assert.True(t, user.Correct)
	assert.Equal(t, 1, judge.calls)
}

func TestEvaluateFuzzyThreshold(t *testing.T) {
	ev, _, judge := newEvaluator(t, domain.AnswerKeyEntry{QuestionID: "q1", CanonicalAnswer: "Mount Everest", QuestionType: domain.ShortAnswer})
	judge.score = 0.84

	v, err := ev.Evaluate(context.Background(), app.EvalRequest{Container: "quiz-1", Scope: "s", QuestionID: "q1", Response: "Everest?", Authenticated: true})
	require.NoError(t, err)
	assert.False(t, v.Correct)
}

func TestEvaluateJudgeFailureRecordsNothing(t *testing.T) {
	ctx := context.Background()
	ev, evals, judge := newEvaluator(t, domain.AnswerKeyEntry{QuestionID: "q1", CanonicalAnswer: "Mount Everest", QuestionType: domain.ShortAnswer})
	judge.err = errors.New("timeout")

	_, err := ev.Evaluate(ctx, app.EvalRequest{Container: "quiz-1", Scope: "s", QuestionID: "q1", Response: "Everest", Authenticated: true})
	require.ErrorIs(t, err, domain.ErrGeneration)

	_, err = evals.Get(ctx, "s", "q1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEvaluateConcurrentSubmitsAgree(t *testing.T) {
	ev, _, _ := newEvaluator(t, domain.AnswerKeyEntry{QuestionID: "q1", CanonicalAnswer: "Paris", QuestionType: domain.MultipleChoice})

	const n = 16
	results := make([]domain.Verdict, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := "Paris"
			if i%2 == 1 {
				resp = "Rome"
			}
			v, err := ev.Evaluate(context.Background(), app.EvalRequest{Container: "quiz-1", Scope: "s", QuestionID: "q1", Response: resp})
			if err != nil {
				t.Errorf("evaluate: %v", err)
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	fresh := 0
	for _, v := range results {
		if !v.AlreadyAnswered {
			fresh++
		}
		assert.Equal(t, results[0].Correct, v.Correct, "all submissions must share one verdict")
	}
	assert.Equal(t, 1, fresh)
}

func TestNormalizeAnswer(t *testing.T) {
	assert.Equal(t, "the beatles", app.NormalizeAnswer("  The   Beatles!! "))
	assert.Equal(t, "rock n roll", app.NormalizeAnswer("Rock 'n' Roll"))
}
