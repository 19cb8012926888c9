package memory

import (
	"context"
	"sync"

	"echo-trivia/internal/domain"
)

// EvaluationStore is an in-memory implementation of app.EvaluationStore.
type EvaluationStore struct {
	mu    sync.Mutex
	evals map[evalKey]domain.Evaluation
}

type evalKey struct {
	scope      string
	questionID string
}

func NewEvaluationStore() *EvaluationStore {
	return &EvaluationStore{evals: make(map[evalKey]domain.Evaluation)}
}

func (s *EvaluationStore) Get(_ context.Context, scope, questionID string) (domain.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.evals[evalKey{scope, questionID}]
	if !ok {
		return domain.Evaluation{}, domain.ErrNotFound
	}
	return ev, nil
}

// InsertIfAbsent stores ev unless the key is taken; the mutex makes check-and-insert atomic.
func (s *EvaluationStore) InsertIfAbsent(_ context.Context, ev domain.Evaluation) (domain.Evaluation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := evalKey{ev.Scope, ev.QuestionID}
	if existing, ok := s.evals[key]; ok {
		return existing, false, nil
	}
	s.evals[key] = ev
	return ev, true, nil
}
