package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"echo-trivia/internal/domain"
	"github.com/redis/go-redis/v9"
)

// EvaluationStore records one verdict per scope and question:
//
//	HSETNX evaluation:{scope} {questionID} {evaluation json}
type EvaluationStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEvaluationStore(client *redis.Client, ttl time.Duration) *EvaluationStore {
	return &EvaluationStore{client: client, ttl: ttl}
}

func (s *EvaluationStore) Get(ctx context.Context, scope, questionID string) (domain.Evaluation, error) {
	raw, err := s.client.HGet(ctx, s.key(scope), questionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Evaluation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("get evaluation: %w", err)
	}
	var ev domain.Evaluation
	if err := json.Unmarshal(raw, &ev); err != nil {
		return domain.Evaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}
	return ev, nil
}

func (s *EvaluationStore) InsertIfAbsent(ctx context.Context, ev domain.Evaluation) (domain.Evaluation, bool, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return domain.Evaluation{}, false, fmt.Errorf("encode evaluation: %w", err)
	}
	key := s.key(ev.Scope)
	var setnx *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setnx = pipe.HSetNX(ctx, key, ev.QuestionID, raw)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return domain.Evaluation{}, false, fmt.Errorf("insert evaluation: %w", err)
	}
	if !setnx.Val() {
		stored, err := s.Get(ctx, ev.Scope, ev.QuestionID)
		return stored, false, err
	}
	return ev, true, nil
}

func (s *EvaluationStore) key(scope string) string {
	return "evaluation:" + scope
}
