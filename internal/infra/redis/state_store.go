package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"echo-trivia/internal/app"
	"echo-trivia/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	fieldVersion = "v"
	fieldData    = "d"
)

// StateStore keeps versioned game state in a hash per key:
//
//	HSET state:{key} v {version} d {payload}
//
// Create and Swap run under WATCH so concurrent writers observe ErrStateConflict.
type StateStore struct {
	client *redis.Client
}

func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

// hashReader is satisfied by both *redis.Client and *redis.Tx.
type hashReader interface {
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
}

func (s *StateStore) Create(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k := s.key(key)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, k).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return app.ErrStateConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, fieldVersion, 1, fieldData, value)
			if ttl > 0 {
				pipe.PExpire(ctx, k, ttl)
			}
			return nil
		})
		return err
	}, k)
	return s.mapErr("create state", err)
}

func (s *StateStore) Get(ctx context.Context, key string) (app.StateRecord, error) {
	rec, ok, err := s.read(ctx, s.client, s.key(key))
	if err != nil {
		return app.StateRecord{}, fmt.Errorf("get state: %w", err)
	}
	if !ok {
		return app.StateRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *StateStore) Swap(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (int64, error) {
	k := s.key(key)
	next := version + 1
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		rec, ok, err := s.read(ctx, tx, k)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}
		if rec.Version != version {
			return app.ErrStateConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, fieldVersion, next, fieldData, value)
			if ttl > 0 {
				pipe.PExpire(ctx, k, ttl)
			}
			return nil
		})
		return err
	}, k)
	if err := s.mapErr("swap state", err); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *StateStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *StateStore) read(ctx context.Context, c hashReader, k string) (app.StateRecord, bool, error) {
	vals, err := c.HMGet(ctx, k, fieldVersion, fieldData).Result()
	if err != nil {
		return app.StateRecord{}, false, err
	}
	vs, ok1 := vals[0].(string)
	data, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return app.StateRecord{}, false, nil
	}
	version, err := strconv.ParseInt(vs, 10, 64)
	if err != nil {
		return app.StateRecord{}, false, fmt.Errorf("state version %q: %w", vs, err)
	}
	return app.StateRecord{Value: []byte(data), Version: version}, true, nil
}

func (s *StateStore) mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return app.ErrStateConflict
	case errors.Is(err, app.ErrStateConflict), errors.Is(err, domain.ErrNotFound):
		return err
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (s *StateStore) key(key string) string {
	return "state:" + key
}
