package limiters

import (
	"context"
	"sync"
	"time"
)

type lockoutRecord struct {
	attempts    int
	lockedUntil time.Time
	lastAttempt time.Time
}

// MemoryLockout is the in-process account lockout store: a failure counter
// per key that locks the key for a fixed duration once the threshold is
// reached and clears entirely on success.
type MemoryLockout struct {
	mu        sync.Mutex
	records   map[string]*lockoutRecord
	threshold int
	lockFor   time.Duration
}

// NewMemoryLockout creates a lockout store that denies a key after
// threshold failures for the lockFor duration.
func NewMemoryLockout(threshold int, lockFor time.Duration) *MemoryLockout {
	return &MemoryLockout{
		records:   make(map[string]*lockoutRecord),
		threshold: threshold,
		lockFor:   lockFor,
	}
}

func (s *MemoryLockout) Check(_ context.Context, key string, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return Decision{Allowed: true, Remaining: s.threshold}, nil
	}

	if !rec.lockedUntil.IsZero() && now.After(rec.lockedUntil) {
		delete(s.records, key)
		return Decision{Allowed: true, Remaining: s.threshold}, nil
	}

	if rec.attempts >= s.threshold {
		return Decision{RetryAt: rec.lockedUntil}, nil
	}

	return Decision{Allowed: true, Remaining: s.threshold - rec.attempts}, nil
}

func (s *MemoryLockout) RecordFailure(_ context.Context, key string, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || (!rec.lockedUntil.IsZero() && now.After(rec.lockedUntil)) {
		rec = &lockoutRecord{}
		s.records[key] = rec
	}

	rec.attempts++
	rec.lastAttempt = now
	if rec.attempts >= s.threshold && rec.lockedUntil.IsZero() {
		rec.lockedUntil = now.Add(s.lockFor)
	}

	if rec.attempts >= s.threshold {
		return Decision{RetryAt: rec.lockedUntil}, nil
	}
	return Decision{Allowed: true, Remaining: s.threshold - rec.attempts}, nil
}

func (s *MemoryLockout) RecordSuccess(_ context.Context, key string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *MemoryLockout) Sweep(_ context.Context, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, rec := range s.records {
		if !rec.lockedUntil.IsZero() && now.After(rec.lockedUntil) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

type windowRecord struct {
	attempts    int
	lastAttempt time.Time
}

// MemoryWindow is the in-process per-IP store: a failure counter per key
// inside a rolling window measured from the last attempt. Success zeroes
// the counter but keeps the record; the whole record is lazily dropped
// once the window has elapsed since the last attempt.
type MemoryWindow struct {
	mu        sync.Mutex
	records   map[string]*windowRecord
	threshold int
	window    time.Duration
}

// NewMemoryWindow creates a windowed store that denies a key after
// threshold attempts until the window elapses.
func NewMemoryWindow(threshold int, window time.Duration) *MemoryWindow {
	return &MemoryWindow{
		records:   make(map[string]*windowRecord),
		threshold: threshold,
		window:    window,
	}
}

func (s *MemoryWindow) Check(_ context.Context, key string, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return Decision{Allowed: true, Remaining: s.threshold}, nil
	}

	if now.Sub(rec.lastAttempt) > s.window {
		delete(s.records, key)
		return Decision{Allowed: true, Remaining: s.threshold}, nil
	}

	if rec.attempts >= s.threshold {
		return Decision{RetryAt: rec.lastAttempt.Add(s.window)}, nil
	}

	return Decision{Allowed: true, Remaining: s.threshold - rec.attempts}, nil
}

func (s *MemoryWindow) RecordFailure(_ context.Context, key string, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || now.Sub(rec.lastAttempt) > s.window {
		rec = &windowRecord{}
		s.records[key] = rec
	}

	rec.attempts++
	rec.lastAttempt = now

	if rec.attempts >= s.threshold {
		return Decision{RetryAt: rec.lastAttempt.Add(s.window)}, nil
	}
	return Decision{Allowed: true, Remaining: s.threshold - rec.attempts}, nil
}

// RecordSuccess zeroes the counter without deleting the record: bursty
// success from a shared address is still informative, so the window stays
// live until it naturally elapses.
func (s *MemoryWindow) RecordSuccess(_ context.Context, key string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok {
		rec.attempts = 0
	}
	return nil
}

func (s *MemoryWindow) Sweep(_ context.Context, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, rec := range s.records {
		if now.Sub(rec.lastAttempt) > s.window {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}
