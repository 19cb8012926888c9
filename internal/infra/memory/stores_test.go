package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"echo-trivia/internal/app"
	"echo-trivia/internal/domain"
	"echo-trivia/internal/generator"
)

func TestAnswerKeyStoreAppendOnly(t *testing.T) {
	ctx := context.Background()
	store := NewAnswerKeyStore()

	if err := store.Store(ctx, "run-1", []domain.AnswerKeyEntry{{QuestionID: "q1", CanonicalAnswer: "Paris"}}, time.Minute); err != nil {
		t.Fatalf("store: %v", err)
	}
	_ = store.Store(ctx, "run-1", []domain.AnswerKeyEntry{
		{QuestionID: "q1", CanonicalAnswer: "Lyon"},
		{QuestionID: "q2", CanonicalAnswer: "Rome"},
	}, time.Minute)

	e, err := store.Lookup(ctx, "run-1", "q1")
	if err != nil || e.CanonicalAnswer != "Paris" {
		t.Fatalf("expected first answer kept, got %+v %v", e, err)
	}
	entries, _ := store.Entries(ctx, "run-1")
	if len(entries) != 2 || entries[1].QuestionID != "q2" {
		t.Fatalf("expected ordered entries, got %+v", entries)
	}

	_ = store.Invalidate(ctx, "run-1")
	if _, err := store.Lookup(ctx, "run-1", "q1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after invalidate, got %v", err)
	}
}

func TestAnswerKeyStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewAnswerKeyStore()
	now := time.Now()
	store.clock = func() time.Time { return now }

	_ = store.Store(ctx, "c", []domain.AnswerKeyEntry{{QuestionID: "q1", CanonicalAnswer: "x"}}, time.Minute)
	now = now.Add(time.Minute)
	if _, err := store.Lookup(ctx, "c", "q1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected expired container to be not found, got %v", err)
	}
}

func TestEvaluationStoreFirstWins(t *testing.T) {
	ctx := context.Background()
	store := NewEvaluationStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, inserted, err := store.InsertIfAbsent(ctx, domain.Evaluation{Scope: "s", QuestionID: "q", IsCorrect: i%2 == 0})
			if err != nil {
				t.Errorf("insert: %v", err)
			}
			if inserted {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("expected exactly one insert, got %d", created)
	}
}

func TestStateStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore()

	if err := store.Create(ctx, "k", []byte("a"), time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, "k", []byte("b"), time.Minute); !errors.Is(err, app.ErrStateConflict) {
		t.Fatalf("expected conflict on second create, got %v", err)
	}
	rec, _ := store.Get(ctx, "k")
	v, err := store.Swap(ctx, "k", rec.Version, []byte("c"), time.Minute)
	if err != nil || v != rec.Version+1 {
		t.Fatalf("swap: %d %v", v, err)
	}
	if _, err := store.Swap(ctx, "k", rec.Version, []byte("d"), time.Minute); !errors.Is(err, app.ErrStateConflict) {
		t.Fatalf("expected stale swap to conflict, got %v", err)
	}
	_ = store.Delete(ctx, "k")
	if _, err := store.Get(ctx, "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionHistoryRankAndBest(t *testing.T) {
	ctx := context.Background()
	h := NewSessionHistory()
	now := time.Now()
	save := func(id, user string, score int) {
		if err := h.Save(ctx, domain.CompletedSession{ID: id, UserID: user, Mode: "survival", Bucket: "mixed", Score: score, CompletedAt: now}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	save("a", "alice", 5)
	save("b", "bob", 7)
	save("c", "alice", 7)

	rank, _ := h.Rank(ctx, "survival", "mixed", 7)
	if rank != 1 {
		t.Fatalf("expected rank 1 for a tie at the top, got %d", rank)
	}
	rank, _ = h.Rank(ctx, "survival", "mixed", 5)
	if rank != 3 {
		t.Fatalf("expected rank 3, got %d", rank)
	}
	best, _ := h.PersonalBest(ctx, "alice", "survival", "mixed", 7, "c")
	if !best {
		t.Fatalf("expected 7 to beat previous 5")
	}
	best, _ = h.PersonalBest(ctx, "alice", "survival", "mixed", 5, "a")
	if best {
		t.Fatalf("expected a lower score not to be a personal best")
	}

	lb, _ := h.Top(ctx, "survival", "mixed", 10)
	if len(lb.Entries) != 2 || lb.Entries[0].Score != 7 || lb.Entries[1].Score != 7 {
		t.Fatalf("unexpected leaderboard %+v", lb.Entries)
	}
}

func TestProgressStoreNeverLowersHighestFloor(t *testing.T) {
	ctx := context.Background()
	s := NewProgressStore()
	setFloor := func(floor int) func(*domain.TowerProgress) error {
		return func(p *domain.TowerProgress) error {
			p.HighestFloor = floor
			return nil
		}
	}
	_, _ = s.Update(ctx, "alice", setFloor(4))
	got, _ := s.Update(ctx, "alice", setFloor(2))
	if got.HighestFloor != 4 {
		t.Fatalf("expected highest floor 4, got %d", got.HighestFloor)
	}
	_ = s.AddAchievements(ctx, "alice", []string{"first_floor", "first_floor"})
	got, _ = s.Get(ctx, "alice")
	if len(got.Achievements) != 1 {
		t.Fatalf("expected deduplicated achievements, got %v", got.Achievements)
	}
}

func TestProgressStoreConcurrentUpdatesKeepEveryCount(t *testing.T) {
	ctx := context.Background()
	s := NewProgressStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "alice", func(p *domain.TowerProgress) error {
				p.TotalQuestions += 5
				return nil
			})
			if err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, "alice")
	if got.TotalQuestions != 100 {
		t.Fatalf("expected 100 questions counted, got %d", got.TotalQuestions)
	}
}

func TestSessionHistorySaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := NewSessionHistory()
	rec := domain.CompletedSession{ID: "r1", UserID: "alice", Mode: "survival", Bucket: "mixed", Score: 3}
	if err := h.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec.Score = 9
	if err := h.Save(ctx, rec); err != nil {
		t.Fatalf("resave: %v", err)
	}
	sessions := h.Sessions("alice")
	if len(sessions) != 1 || sessions[0].Score != 3 {
		t.Fatalf("expected the first record only, got %+v", sessions)
	}
}

func TestCannedCompleterProducesValidQuestions(t *testing.T) {
	g := generator.New(NewCannedCompleter(), generator.Options{})
	for _, typ := range []domain.QuestionType{domain.MultipleChoice, domain.TrueFalse, domain.ShortAnswer} {
		q, err := g.Generate(context.Background(), generator.Spec{Category: "Science", Difficulty: domain.Easy, Type: typ})
		if err != nil {
			t.Fatalf("generate %s: %v", typ, err)
		}
		if q.Answer == "" {
			t.Fatalf("expected answer for %s", typ)
		}
	}
}
