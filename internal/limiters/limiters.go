package limiters

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the backing store is unreachable. In-process
// stores never return it.
var ErrUnavailable = errors.New("attempt store unavailable")

// Decision is the outcome of a keyed attempt check.
type Decision struct {
	Allowed   bool
	Remaining int       // attempts left before denial; valid when Allowed
	RetryAt   time.Time // when the key unlocks; zero when Allowed
}

// AttemptStore tracks failed attempts per key with atomic
// read-modify-write semantics. Check performs lazy expiry: a key whose
// lock or window has elapsed is cleared and reported as allowed without
// waiting for Sweep.
type AttemptStore interface {
	Check(ctx context.Context, key string, now time.Time) (Decision, error)
	RecordFailure(ctx context.Context, key string, now time.Time) (Decision, error)
	RecordSuccess(ctx context.Context, key string, now time.Time) error
	// Sweep removes expired records proactively and returns the number
	// removed. It is a memory-hygiene optimization, not a correctness
	// requirement.
	Sweep(ctx context.Context, now time.Time) int
}
