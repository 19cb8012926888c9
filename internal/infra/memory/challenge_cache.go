package memory

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"echo-trivia/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ChallengeLoader reads challenges from the durable store.
type ChallengeLoader interface {
	Create(ctx context.Context, ch domain.FaceoffChallenge) error
	ByCode(ctx context.Context, shareCode string) (domain.FaceoffChallenge, error)
}

// ChallengeCache caches challenges by share code with TTL to avoid repeated DB hits.
// Challenges are immutable, so a cached copy never goes stale.
type ChallengeCache struct {
	loader ChallengeLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedChallenge
}

type cachedChallenge struct {
	challenge domain.FaceoffChallenge
	expiresAt time.Time
}

func NewChallengeCache(loader ChallengeLoader, ttl time.Duration) *ChallengeCache {
	return &ChallengeCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedChallenge),
	}
}

// Create writes through to the loader.
func (c *ChallengeCache) Create(ctx context.Context, ch domain.FaceoffChallenge) error {
	return c.loader.Create(ctx, ch)
}

func (c *ChallengeCache) ByCode(ctx context.Context, shareCode string) (domain.FaceoffChallenge, error) {
	if ch, ok := c.cached(shareCode); ok {
		return ch, nil
	}

	result, err, _ := c.sf.Do(shareCode, func() (interface{}, error) {
		if ch, ok := c.cached(shareCode); ok {
			return ch, nil
		}
		ch, err := c.loader.ByCode(ctx, shareCode)
		if err != nil {
			return domain.FaceoffChallenge{}, err
		}

		expiresAt := c.clock().Add(c.ttlWithJitter())
		c.mu.Lock()
		c.cache[shareCode] = cachedChallenge{challenge: ch, expiresAt: expiresAt}
		c.mu.Unlock()
		return ch, nil
	})
	if err != nil {
		return domain.FaceoffChallenge{}, err
	}
	return result.(domain.FaceoffChallenge), nil
}

func (c *ChallengeCache) cached(shareCode string) (domain.FaceoffChallenge, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[shareCode]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.FaceoffChallenge{}, false
	}
	return entry.challenge, true
}

func (c *ChallengeCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// ChallengeStore is a map-backed challenge store (useful for tests/demos).
type ChallengeStore struct {
	mu     sync.RWMutex
	byCode map[string]domain.FaceoffChallenge
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{byCode: make(map[string]domain.FaceoffChallenge)}
}

// ErrDuplicateShareCode is returned when a share code is already taken.
var ErrDuplicateShareCode = errors.New("share code already exists")

func (s *ChallengeStore) Create(_ context.Context, ch domain.FaceoffChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[ch.ShareCode]; ok {
		return ErrDuplicateShareCode
	}
	s.byCode[ch.ShareCode] = ch
	return nil
}

func (s *ChallengeStore) ByCode(_ context.Context, shareCode string) (domain.FaceoffChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ch, ok := s.byCode[shareCode]; ok {
		return ch, nil
	}
	return domain.FaceoffChallenge{}, domain.ErrChallengeNotFound
}
