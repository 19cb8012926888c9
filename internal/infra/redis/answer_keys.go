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

// appendEntries writes every absent question id and remembers insertion order.
// KEYS[1] entries hash, KEYS[2] order list; ARGV = id, entry, id, entry, ..., ttl in ms.
var appendEntries = redis.NewScript(`
local added = 0
for i = 1, #ARGV - 1, 2 do
  if redis.call('HSETNX', KEYS[1], ARGV[i], ARGV[i + 1]) == 1 then
    redis.call('RPUSH', KEYS[2], ARGV[i])
    added = added + 1
  end
end
local ttl = tonumber(ARGV[#ARGV])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
  redis.call('PEXPIRE', KEYS[2], ttl)
end
return added
`)

// AnswerKeyStore keeps answers in Redis:
//
//	HSETNX answerkey:{containerID} {questionID} {entry json}
//	RPUSH  answerkey:{containerID}:order {questionID}
//
// The braces keep both keys in one cluster slot.
type AnswerKeyStore struct {
	client *redis.Client
}

func NewAnswerKeyStore(client *redis.Client) *AnswerKeyStore {
	return &AnswerKeyStore{client: client}
}

func (s *AnswerKeyStore) Store(ctx context.Context, containerID string, entries []domain.AnswerKeyEntry, ttl time.Duration) error {
	args := make([]interface{}, 0, 2*len(entries)+1)
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode answer key: %w", err)
		}
		args = append(args, e.QuestionID, raw)
	}
	args = append(args, ttl.Milliseconds())
	keys := []string{s.entriesKey(containerID), s.orderKey(containerID)}
	if err := appendEntries.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("store answer keys: %w", err)
	}
	return nil
}

func (s *AnswerKeyStore) Lookup(ctx context.Context, containerID, questionID string) (domain.AnswerKeyEntry, error) {
	raw, err := s.client.HGet(ctx, s.entriesKey(containerID), questionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AnswerKeyEntry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.AnswerKeyEntry{}, fmt.Errorf("lookup answer key: %w", err)
	}
	var e domain.AnswerKeyEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.AnswerKeyEntry{}, fmt.Errorf("decode answer key: %w", err)
	}
	return e, nil
}

func (s *AnswerKeyStore) Entries(ctx context.Context, containerID string) ([]domain.AnswerKeyEntry, error) {
	ids, err := s.client.LRange(ctx, s.orderKey(containerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list answer keys: %w", err)
	}
	if len(ids) == 0 {
		return nil, domain.ErrNotFound
	}
	vals, err := s.client.HMGet(ctx, s.entriesKey(containerID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load answer keys: %w", err)
	}
	out := make([]domain.AnswerKeyEntry, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// order and hash expire together; a gap means the container is going away
			return nil, fmt.Errorf("%w: answer key %s missing", domain.ErrNotFound, ids[i])
		}
		var e domain.AnswerKeyEntry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			return nil, fmt.Errorf("decode answer key: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *AnswerKeyStore) Invalidate(ctx context.Context, containerID string) error {
	return s.client.Del(ctx, s.entriesKey(containerID), s.orderKey(containerID)).Err()
}

func (s *AnswerKeyStore) entriesKey(containerID string) string {
	return "answerkey:{" + containerID + "}"
}

func (s *AnswerKeyStore) orderKey(containerID string) string {
	return "answerkey:{" + containerID + "}:order"
}
