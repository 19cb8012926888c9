package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"echo-trivia/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ChallengeBackend is the durable store behind the cache (Postgres in production).
type ChallengeBackend interface {
	Create(ctx context.Context, ch domain.FaceoffChallenge) error
	ByCode(ctx context.Context, shareCode string) (domain.FaceoffChallenge, error)
}

// ChallengeCache caches challenges in Redis and falls back to the backend on a miss.
// Challenges are stored as: SET challenge:{shareCode} {challenge json} EX ttl
type ChallengeCache struct {
	client  *redis.Client
	backend ChallengeBackend
	ttl     time.Duration
	sf      singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewChallengeCache(client *redis.Client, backend ChallengeBackend, ttl time.Duration) *ChallengeCache {
	return &ChallengeCache{
		client:  client,
		backend: backend,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Create writes through to the backend and warms the cache.
func (c *ChallengeCache) Create(ctx context.Context, ch domain.FaceoffChallenge) error {
	if err := c.backend.Create(ctx, ch); err != nil {
		return err
	}
	c.fill(ctx, ch)
	return nil
}

func (c *ChallengeCache) ByCode(ctx context.Context, shareCode string) (domain.FaceoffChallenge, error) {
	if ch, ok := c.cached(ctx, shareCode); ok {
		return ch, nil
	}

	result, err, _ := c.sf.Do(shareCode, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if ch, ok := c.cached(ctx, shareCode); ok {
			return ch, nil
		}
		ch, err := c.backend.ByCode(ctx, shareCode)
		if err != nil {
			return domain.FaceoffChallenge{}, err
		}
		c.fill(ctx, ch)
		return ch, nil
	})
	if err != nil {
		return domain.FaceoffChallenge{}, err
	}
	return result.(domain.FaceoffChallenge), nil
}

func (c *ChallengeCache) cached(ctx context.Context, shareCode string) (domain.FaceoffChallenge, bool) {
	raw, err := c.client.Get(ctx, c.key(shareCode)).Bytes()
	if err != nil {
		return domain.FaceoffChallenge{}, false
	}
	var ch domain.FaceoffChallenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return domain.FaceoffChallenge{}, false
	}
	return ch, true
}

// fill is best effort; a failed write only costs a backend read later.
func (c *ChallengeCache) fill(ctx context.Context, ch domain.FaceoffChallenge) {
	raw, err := json.Marshal(ch)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(ch.ShareCode), raw, c.ttlWithJitter()).Err()
}

func (c *ChallengeCache) key(shareCode string) string {
	return "challenge:" + shareCode
}

func (c *ChallengeCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
