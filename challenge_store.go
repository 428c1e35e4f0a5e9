package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeKeyPrefix = "occ"

// ChannelChallenge is an issued channel code addressable by its account
// and channel. The store holds at most one live challenge per pair;
// putting a new one replaces the old.
type ChannelChallenge struct {
	ID      string      `json:"id"`
	Account string      `json:"account"`
	Code    OneTimeCode `json:"code"`
}

// ChallengeStore holds live channel codes keyed by (account, channel).
// Get performs lazy expiry; Consume invalidates after a successful
// verification. Implementations must be safe for concurrent use.
type ChallengeStore interface {
	Put(ctx context.Context, ch ChannelChallenge) error
	Get(ctx context.Context, account string, channel Channel) (ChannelChallenge, error)
	Consume(ctx context.Context, account string, channel Channel) error
	Sweep(ctx context.Context, now time.Time) int
}

type memoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]ChannelChallenge
	clock      func() time.Time
}

func newMemoryChallengeStore(clock func() time.Time) *memoryChallengeStore {
	return &memoryChallengeStore{
		challenges: make(map[string]ChannelChallenge),
		clock:      clock,
	}
}

func challengeKey(account string, channel Channel) string {
	return account + ":" + channel.String()
}

func (s *memoryChallengeStore) Put(_ context.Context, ch ChannelChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challengeKey(ch.Account, ch.Code.Channel)] = ch
	return nil
}

func (s *memoryChallengeStore) Get(_ context.Context, account string, channel Channel) (ChannelChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := challengeKey(account, channel)
	ch, ok := s.challenges[key]
	if !ok {
		return ChannelChallenge{}, ErrChallengeNotFound
	}
	if ch.Code.Expired(s.clock()) {
		delete(s.challenges, key)
		return ChannelChallenge{}, ErrChallengeExpired
	}
	return ch, nil
}

func (s *memoryChallengeStore) Consume(_ context.Context, account string, channel Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, challengeKey(account, channel))
	return nil
}

func (s *memoryChallengeStore) Sweep(_ context.Context, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, ch := range s.challenges {
		if ch.Code.Expired(now) {
			delete(s.challenges, key)
			removed++
		}
	}
	return removed
}

type redisChallengeStore struct {
	redis redis.UniversalClient
	clock func() time.Time
}

func newRedisChallengeStore(client redis.UniversalClient, clock func() time.Time) *redisChallengeStore {
	return &redisChallengeStore{redis: client, clock: clock}
}

func (s *redisChallengeStore) key(account string, channel Channel) string {
	return challengeKeyPrefix + ":" + challengeKey(account, channel)
}

func (s *redisChallengeStore) Put(ctx context.Context, ch ChannelChallenge) error {
	ttl := ch.Code.ExpiresAt.Sub(s.clock())
	if ttl <= 0 {
		return nil
	}
	encoded, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(ch.Account, ch.Code.Channel), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *redisChallengeStore) Get(ctx context.Context, account string, channel Channel) (ChannelChallenge, error) {
	data, err := s.redis.Get(ctx, s.key(account, channel)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ChannelChallenge{}, ErrChallengeNotFound
		}
		return ChannelChallenge{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var ch ChannelChallenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return ChannelChallenge{}, fmt.Errorf("%w: corrupt challenge record", ErrStoreUnavailable)
	}
	if ch.Code.Expired(s.clock()) {
		_ = s.redis.Del(ctx, s.key(account, channel)).Err()
		return ChannelChallenge{}, ErrChallengeExpired
	}
	return ch, nil
}

func (s *redisChallengeStore) Consume(ctx context.Context, account string, channel Channel) error {
	if err := s.redis.Del(ctx, s.key(account, channel)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Sweep is a no-op: Redis TTLs reclaim expired challenges.
func (s *redisChallengeStore) Sweep(context.Context, time.Time) int {
	return 0
}
