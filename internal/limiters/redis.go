package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLockout is the shared-store variant of MemoryLockout. The failure
// counter carries a TTL set on the first failure, so the counter doubles
// as a rolling window and the key's remaining TTL yields LockedUntil.
type RedisLockout struct {
	redis     redis.UniversalClient
	prefix    string
	threshold int
	lockFor   time.Duration
}

// NewRedisLockout creates a Redis-backed lockout store under the given
// key prefix.
func NewRedisLockout(client redis.UniversalClient, prefix string, threshold int, lockFor time.Duration) *RedisLockout {
	return &RedisLockout{redis: client, prefix: prefix, threshold: threshold, lockFor: lockFor}
}

func (s *RedisLockout) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisLockout) Check(ctx context.Context, key string, now time.Time) (Decision, error) {
	count, err := s.redis.Get(ctx, s.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Decision{Allowed: true, Remaining: s.threshold}, nil
		}
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count >= int64(s.threshold) {
		return Decision{RetryAt: s.retryAt(ctx, key, now)}, nil
	}
	return Decision{Allowed: true, Remaining: s.threshold - int(count)}, nil
}

func (s *RedisLockout) RecordFailure(ctx context.Context, key string, now time.Time) (Decision, error) {
	count, err := s.redis.Incr(ctx, s.key(key)).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count == 1 {
		// TTL on first failure: the counter auto-resets after the lockout
		// duration, acting as a rolling window for counting failures.
		if err := s.redis.Expire(ctx, s.key(key), s.lockFor).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if count == int64(s.threshold) {
		// Re-arm to the full duration when the lock triggers, so the lock
		// lasts lockFor from now, not the remainder of the counting window.
		if err := s.redis.Expire(ctx, s.key(key), s.lockFor).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if count >= int64(s.threshold) {
		return Decision{RetryAt: s.retryAt(ctx, key, now)}, nil
	}
	return Decision{Allowed: true, Remaining: s.threshold - int(count)}, nil
}

func (s *RedisLockout) RecordSuccess(ctx context.Context, key string, _ time.Time) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Sweep is a no-op: Redis TTLs reclaim expired records.
func (s *RedisLockout) Sweep(context.Context, time.Time) int {
	return 0
}

func (s *RedisLockout) retryAt(ctx context.Context, key string, now time.Time) time.Time {
	ttl, err := s.redis.PTTL(ctx, s.key(key)).Result()
	if err != nil || ttl <= 0 {
		return now.Add(s.lockFor)
	}
	return now.Add(ttl)
}

// RedisWindow is the shared-store variant of MemoryWindow. Success writes
// a zero back under the existing TTL rather than deleting the key, so the
// window survives a successful login from a shared address.
type RedisWindow struct {
	redis     redis.UniversalClient
	prefix    string
	threshold int
	window    time.Duration
}

// NewRedisWindow creates a Redis-backed windowed store under the given
// key prefix.
func NewRedisWindow(client redis.UniversalClient, prefix string, threshold int, window time.Duration) *RedisWindow {
	return &RedisWindow{redis: client, prefix: prefix, threshold: threshold, window: window}
}

func (s *RedisWindow) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisWindow) Check(ctx context.Context, key string, now time.Time) (Decision, error) {
	count, err := s.redis.Get(ctx, s.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Decision{Allowed: true, Remaining: s.threshold}, nil
		}
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count >= int64(s.threshold) {
		return Decision{RetryAt: s.retryAt(ctx, key, now)}, nil
	}
	return Decision{Allowed: true, Remaining: s.threshold - int(count)}, nil
}

func (s *RedisWindow) RecordFailure(ctx context.Context, key string, now time.Time) (Decision, error) {
	count, err := s.redis.Incr(ctx, s.key(key)).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count == 1 {
		if err := s.redis.Expire(ctx, s.key(key), s.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if count >= int64(s.threshold) {
		return Decision{RetryAt: s.retryAt(ctx, key, now)}, nil
	}
	return Decision{Allowed: true, Remaining: s.threshold - int(count)}, nil
}

func (s *RedisWindow) RecordSuccess(ctx context.Context, key string, _ time.Time) error {
	// SetXX: only reset a counter that exists, so success never plants a
	// key without a TTL.
	_, err := s.redis.SetXX(ctx, s.key(key), 0, redis.KeepTTL).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Sweep is a no-op: Redis TTLs reclaim expired records.
func (s *RedisWindow) Sweep(context.Context, time.Time) int {
	return 0
}

func (s *RedisWindow) retryAt(ctx context.Context, key string, now time.Time) time.Time {
	ttl, err := s.redis.PTTL(ctx, s.key(key)).Result()
	if err != nil || ttl <= 0 {
		return now.Add(s.window)
	}
	return now.Add(ttl)
}
