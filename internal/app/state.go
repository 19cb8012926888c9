package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"echo-trivia/internal/domain"
)

const maxSwapAttempts = 5

// errUnchanged makes update return the stored state without writing it.
var errUnchanged = errors.New("state unchanged")

// Key namespaces in the state store.
const (
	claimPrefix    = "claim:"
	survivalPrefix = "survival:"
	jeopardyPrefix = "jeopardy:"
	towerPrefix    = "tower:"
	playPrefix     = "play:"
	practicePrefix = "practice:"
	dailyPrefix    = "daily:"
)

// stateRepo stores one JSON-encoded state type under a key prefix.
type stateRepo[T any] struct {
	store  StateStore
	prefix string
	ttl    time.Duration
}

func newStateRepo[T any](store StateStore, prefix string, ttl time.Duration) stateRepo[T] {
	return stateRepo[T]{store: store, prefix: prefix, ttl: ttl}
}

// withTTL returns a copy of the repo that writes with ttl.
func (r stateRepo[T]) withTTL(ttl time.Duration) stateRepo[T] {
	r.ttl = ttl
	return r
}

func (r stateRepo[T]) create(ctx context.Context, id string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s%s: %w", r.prefix, id, err)
	}
	return r.store.Create(ctx, r.prefix+id, raw, r.ttl)
}

// load returns domain.ErrSessionExpired when the state is gone.
func (r stateRepo[T]) load(ctx context.Context, id string) (*T, int64, error) {
	rec, err := r.store.Get(ctx, r.prefix+id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, 0, domain.ErrSessionExpired
	}
	if err != nil {
		return nil, 0, err
	}
	var v T
	if err := json.Unmarshal(rec.Value, &v); err != nil {
		return nil, 0, fmt.Errorf("decode %s%s: %w", r.prefix, id, err)
	}
	return &v, rec.Version, nil
}

func (r stateRepo[T]) delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, r.prefix+id)
}

// update re-reads the state and applies fn until the swap wins. fn must re-validate the
// transition on every call because the state may have moved on between attempts; it returns
// errUnchanged when there is nothing to write.
func (r stateRepo[T]) update(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		v, version, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(v); errors.Is(err, errUnchanged) {
			return v, nil
		} else if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s%s: %w", r.prefix, id, err)
		}
		_, err = r.store.Swap(ctx, r.prefix+id, version, raw, r.ttl)
		if errors.Is(err, ErrStateConflict) {
			continue
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrSessionExpired
		}
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("update %s%s: %w", r.prefix, id, ErrStateConflict)
}
