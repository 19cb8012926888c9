package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"echo-trivia/internal/domain"
)

func TestChallengeCacheCaches(t *testing.T) {
	store := NewChallengeStore()
	if err := store.Create(context.Background(), sampleChallenge()); err != nil {
		t.Fatalf("create: %v", err)
	}
	loader := &countingLoader{ChallengeLoader: store}
	cache := NewChallengeCache(loader, time.Minute)

	if _, err := cache.ByCode(context.Background(), "ABCD2345"); err != nil {
		t.Fatalf("by code: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	ch, err := cache.ByCode(context.Background(), "ABCD2345")
	if err != nil {
		t.Fatalf("by code 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
	if ch.ID != "ch-1" || len(ch.Questions) != 1 {
		t.Fatalf("unexpected challenge %+v", ch)
	}
}

func TestChallengeCacheExpires(t *testing.T) {
	store := NewChallengeStore()
	_ = store.Create(context.Background(), sampleChallenge())
	loader := &countingLoader{ChallengeLoader: store}
	cache := NewChallengeCache(loader, time.Minute)
	now := time.Now()
	cache.clock = func() time.Time { return now }

	_, _ = cache.ByCode(context.Background(), "ABCD2345")
	now = now.Add(2 * time.Minute)
	_, _ = cache.ByCode(context.Background(), "ABCD2345")
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.calls)
	}
}

func TestChallengeCacheUnknownCode(t *testing.T) {
	cache := NewChallengeCache(NewChallengeStore(), time.Minute)
	_, err := cache.ByCode(context.Background(), "NOPE")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChallengeStoreRejectsDuplicateCode(t *testing.T) {
	store := NewChallengeStore()
	if err := store.Create(context.Background(), sampleChallenge()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(context.Background(), sampleChallenge()); !errors.Is(err, ErrDuplicateShareCode) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

type countingLoader struct {
	ChallengeLoader
	calls int
}

func (l *countingLoader) ByCode(ctx context.Context, code string) (domain.FaceoffChallenge, error) {
	l.calls++
	return l.ChallengeLoader.ByCode(ctx, code)
}

func sampleChallenge() domain.FaceoffChallenge {
	return domain.FaceoffChallenge{
		ID:        "ch-1",
		ShareCode: "ABCD2345",
		CreatorID: "alice",
		Questions: []domain.KeyedQuestion{
			{
				PublicQuestion: domain.PublicQuestion{
					ID:       "q1",
					Type:     domain.TrueFalse,
					Prompt:   "2 + 2 = 4",
					Category: "Math",
				},
				Answer: "True",
			},
		},
		Settings:     domain.QuizSettings{Category: "Math", Difficulty: domain.Easy, Count: 1},
		CreatorScore: 1,
		CreatedAt:    time.Now(),
	}
}
