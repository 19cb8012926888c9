package memory

import (
	"context"
	"sync"
	"time"

	"echo-trivia/internal/app"
	"echo-trivia/internal/domain"
)

// StateStore is an in-memory implementation of app.StateStore.
type StateStore struct {
	clock func() time.Time

	mu      sync.Mutex
	records map[string]stateRecord
}

type stateRecord struct {
	value     []byte
	version   int64
	expiresAt time.Time
}

func NewStateStore() *StateStore {
	return &StateStore{
		clock:   time.Now,
		records: make(map[string]stateRecord),
	}
}

func (s *StateStore) Create(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liveLocked(key); ok {
		return app.ErrStateConflict
	}
	s.records[key] = stateRecord{value: clone(value), version: 1, expiresAt: s.expiry(ttl)}
	return nil
}

func (s *StateStore) Get(_ context.Context, key string) (app.StateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.liveLocked(key)
	if !ok {
		return app.StateRecord{}, domain.ErrNotFound
	}
	return app.StateRecord{Value: clone(rec.value), Version: rec.version}, nil
}

func (s *StateStore) Swap(_ context.Context, key string, version int64, value []byte, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.liveLocked(key)
	if !ok {
		return 0, domain.ErrNotFound
	}
	if rec.version != version {
		return 0, app.ErrStateConflict
	}
	next := stateRecord{value: clone(value), version: version + 1, expiresAt: s.expiry(ttl)}
	s.records[key] = next
	return next.version, nil
}

func (s *StateStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *StateStore) liveLocked(key string) (stateRecord, bool) {
	rec, ok := s.records[key]
	if !ok {
		return stateRecord{}, false
	}
	if !rec.expiresAt.IsZero() && !rec.expiresAt.After(s.clock()) {
		delete(s.records, key)
		return stateRecord{}, false
	}
	return rec, true
}

func (s *StateStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.clock().Add(ttl)
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
