package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"echo-trivia/internal/app"
	"echo-trivia/internal/domain"
	"echo-trivia/internal/generator"
	"echo-trivia/internal/infra/memory"
)

// fakeSource generates questions with known answers:
// multiple choice "Right", true/false "True", short answer "Mount Everest".
type fakeSource struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeSource) Generate(_ context.Context, spec generator.Spec) (generator.RawQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return generator.RawQuestion{}, fmt.Errorf("%w: provider down", domain.ErrGeneration)
	}
	q := generator.RawQuestion{Type: spec.Type, Prompt: fmt.Sprintf("%s question %d", spec.Category, f.calls)}
	switch spec.Type {
	case domain.MultipleChoice:
		q.Choices = []domain.Choice{{Label: "A", Text: "Wrong"}, {Label: "B", Text: "Right"}, {Label: "C", Text: "Nope"}, {Label: "D", Text: "Never"}}
		q.Answer = "Right"
	case domain.TrueFalse:
		q.Answer = "True"
	default:
		q.Answer = "Mount Everest"
	}
	return q, nil
}

func (f *fakeSource) GenerateBatch(ctx context.Context, specs []generator.Spec) ([]generator.RawQuestion, error) {
	out := make([]generator.RawQuestion, 0, len(specs))
	for _, s := range specs {
		q, err := f.Generate(ctx, s)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeJudge struct {
	score float64
	err   error
	calls int
}

func (j *fakeJudge) Judge(context.Context, string, string, string) (generator.Judgment, error) {
	j.calls++
	if j.err != nil {
		return generator.Judgment{}, j.err
	}
	return generator.Judgment{Score: j.score}, nil
}

type failingHistory struct{ *memory.SessionHistory }

func (failingHistory) Save(context.Context, domain.CompletedSession) error {
	return errors.New("database unavailable")
}

type testEnv struct {
	core     *app.Core
	keys     *memory.AnswerKeyStore
	evals    *memory.EvaluationStore
	states   *memory.StateStore
	history  *memory.SessionHistory
	events   *memory.EventLog
	progress *memory.ProgressStore
	source   *fakeSource
	judge    *fakeJudge
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		keys:     memory.NewAnswerKeyStore(),
		evals:    memory.NewEvaluationStore(),
		states:   memory.NewStateStore(),
		history:  memory.NewSessionHistory(),
		events:   memory.NewEventLog(),
		progress: memory.NewProgressStore(),
		source:   &fakeSource{},
		judge:    &fakeJudge{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.core = app.NewCore(app.Core{
		Keys:      env.keys,
		Evaluator: app.NewEvaluator(env.keys, env.evals, env.judge, 0, logger),
		States:    env.states,
		History:   env.history,
		Events:    env.events,
		Source:    env.source,
		TTL:       app.TTLs{State: time.Hour, AnswerKey: time.Hour},
		Log:       logger,
	})
	return env
}

var testCategories = []string{"History", "Science", "Geography", "Music", "Sports"}

// flakyStates fails the next failSwaps compare-and-swaps, then recovers.
type flakyStates struct {
	*memory.StateStore
	mu        sync.Mutex
	failSwaps int
}

func (f *flakyStates) failNextSwaps(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSwaps = n
}

func (f *flakyStates) Swap(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	if f.failSwaps > 0 {
		f.failSwaps--
		f.mu.Unlock()
		return 0, errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.StateStore.Swap(ctx, key, version, value, ttl)
}

// flakyHistory fails the next failSaves saves, then recovers.
type flakyHistory struct {
	*memory.SessionHistory
	mu        sync.Mutex
	failSaves int
}

func (h *flakyHistory) Save(ctx context.Context, rec domain.CompletedSession) error {
	h.mu.Lock()
	if h.failSaves > 0 {
		h.failSaves--
		h.mu.Unlock()
		return errors.New("database unavailable")
	}
	h.mu.Unlock()
	return h.SessionHistory.Save(ctx, rec)
}

// withFlakyStates routes the env's state writes through a flakyStates. Call it before
// building services.
func (env *testEnv) withFlakyStates() *flakyStates {
	f := &flakyStates{StateStore: env.states}
	env.core.States = f
	return f
}

// withFlakyHistory routes completed sessions through a flakyHistory failing n saves.
func (env *testEnv) withFlakyHistory(n int) *flakyHistory {
	h := &flakyHistory{SessionHistory: env.history, failSaves: n}
	env.core.History = h
	return h
}
