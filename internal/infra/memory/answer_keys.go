package memory

import (
	"context"
	"sync"
	"time"

	"echo-trivia/internal/domain"
)

// AnswerKeyStore is an in-memory implementation of app.AnswerKeyStore.
type AnswerKeyStore struct {
	clock func() time.Time

	mu         sync.RWMutex
	containers map[string]*keyRecord
}

type keyRecord struct {
	order     []string
	entries   map[string]domain.AnswerKeyEntry
	expiresAt time.Time
}

func NewAnswerKeyStore() *AnswerKeyStore {
	return &AnswerKeyStore{
		clock:      time.Now,
		containers: make(map[string]*keyRecord),
	}
}

// Store appends entries; question ids already present keep their first answer. ttl refreshes expiry.
func (s *AnswerKeyStore) Store(_ context.Context, containerID string, entries []domain.AnswerKeyEntry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	rec, ok := s.containers[containerID]
	if !ok || rec.expired(now) {
		rec = &keyRecord{entries: make(map[string]domain.AnswerKeyEntry)}
		s.containers[containerID] = rec
	}
	for _, e := range entries {
		if _, exists := rec.entries[e.QuestionID]; exists {
			continue
		}
		rec.entries[e.QuestionID] = e
		rec.order = append(rec.order, e.QuestionID)
	}
	rec.expiresAt = time.Time{}
	if ttl > 0 {
		rec.expiresAt = now.Add(ttl)
	}
	return nil
}

func (s *AnswerKeyStore) Lookup(_ context.Context, containerID, questionID string) (domain.AnswerKeyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.containers[containerID]
	if !ok || rec.expired(s.clock()) {
		return domain.AnswerKeyEntry{}, domain.ErrNotFound
	}
	e, ok := rec.entries[questionID]
	if !ok {
		return domain.AnswerKeyEntry{}, domain.ErrNotFound
	}
	return e, nil
}

func (s *AnswerKeyStore) Entries(_ context.Context, containerID string) ([]domain.AnswerKeyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.containers[containerID]
	if !ok || rec.expired(s.clock()) {
		return nil, domain.ErrNotFound
	}
	out := make([]domain.AnswerKeyEntry, 0, len(rec.order))
	for _, id := range rec.order {
		out = append(out, rec.entries[id])
	}
	return out, nil
}

func (s *AnswerKeyStore) Invalidate(_ context.Context, containerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.containers, containerID)
	return nil
}

func (r *keyRecord) expired(now time.Time) bool {
	return !r.expiresAt.IsZero() && !r.expiresAt.After(now)
}
