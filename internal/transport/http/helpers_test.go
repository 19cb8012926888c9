package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"echo-trivia/internal/app"
	"echo-trivia/internal/auth"
	"echo-trivia/internal/domain"
	"echo-trivia/internal/generator"
	"echo-trivia/internal/infra/memory"
)

// stubSource answers multiple choice with "Right" and true/false with "True".
type stubSource struct {
	mu sync.Mutex
	n  int
}

func (s *stubSource) Generate(_ context.Context, spec generator.Spec) (generator.RawQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	q := generator.RawQuestion{Type: spec.Type, Prompt: fmt.Sprintf("%s question %d", spec.Category, s.n)}
	switch spec.Type {
	case domain.MultipleChoice:
		q.Choices = []domain.Choice{{Label: "A", Text: "Wrong"}, {Label: "B", Text: "Right"}, {Label: "C", Text: "Nope"}, {Label: "D", Text: "Never"}}
		q.Answer = "Right"
	case domain.TrueFalse:
		q.Answer = "True"
	default:
		q.Answer = "Everest"
	}
	return q, nil
}

func (s *stubSource) GenerateBatch(ctx context.Context, specs []generator.Spec) ([]generator.RawQuestion, error) {
	out := make([]generator.RawQuestion, 0, len(specs))
	for _, sp := range specs {
		q, _ := s.Generate(ctx, sp)
		out = append(out, q)
	}
	return out, nil
}

type testAPI struct {
	server *httptest.Server
	auth   *auth.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	keys := memory.NewAnswerKeyStore()
	history := memory.NewSessionHistory()
	core := app.NewCore(app.Core{
		Keys:      keys,
		Evaluator: app.NewEvaluator(keys, memory.NewEvaluationStore(), nil, 0, log),
		States:    memory.NewStateStore(),
		History:   history,
		Events:    memory.NewEventLog(),
		Source:    &stubSource{},
		Log:       log,
	})
	categories := []string{"History", "Science", "Music"}
	practice := app.NewPracticeService(core)
	play := app.NewPlayService(core)
	svc := Services{
		Practice:    practice,
		Daily:       app.NewDailyService(core, play, app.DailyOptions{Categories: categories, Count: 2}),
		Survival:    app.NewSurvivalService(core, categories),
		Jeopardy:    app.NewJeopardyService(core, categories, app.NewLiveHub()),
		Tower:       app.NewTowerService(core, memory.NewProgressStore(), app.TowerOptions{Categories: categories, QuestionsPerFloor: 2}),
		Faceoff:     app.NewFaceoffService(core, practice, play, memory.NewChallengeStore()),
		Play:        play,
		Leaderboard: app.NewLeaderboardService(history),
	}
	authSvc := auth.NewService("test-secret", time.Hour)
	srv := httptest.NewServer(NewServer(svc, authSvc, log).Router(nil))
	t.Cleanup(srv.Close)
	return &testAPI{server: srv, auth: authSvc}
}

func (a *testAPI) token(t *testing.T, user string) string {
	t.Helper()
	tok, err := a.auth.IssueToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

// do sends body as JSON and decodes the response into out when out is non-nil.
func (a *testAPI) do(t *testing.T, method, path, user string, body, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(t, user))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}
