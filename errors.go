package authcore

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine method is called on a
	// nil or incompletely built engine.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrLockedOut is returned when the account lockout guard denies an
	// attempt. The accompanying SecurityCheck carries LockedUntil.
	ErrLockedOut = errors.New("account temporarily locked")

	// ErrRateLimited is returned when the per-IP rate limiter denies an
	// attempt.
	ErrRateLimited = errors.New("too many attempts from this address")

	// ErrThrottled is returned when the process-wide verification
	// throttle rejects a call before any per-key check runs.
	ErrThrottled = errors.New("verification throttled")

	// ErrBackupCodesExhausted is returned when every code in a backup set
	// has been used. Recovery requires re-enrollment; this is a terminal
	// state, not a wrong-code failure.
	ErrBackupCodesExhausted = errors.New("backup codes exhausted")

	// ErrChallengeNotFound is returned when no live channel code exists
	// for the requested account and channel.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrChallengeExpired is returned when the live channel code for the
	// account and channel has passed its expiry.
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrStoreUnavailable wraps backend failures from Redis-backed stores.
	ErrStoreUnavailable = errors.New("security store unavailable")

	// ErrReceiptInvalid is returned for verification receipts that fail
	// signature, expiry, or claim checks.
	ErrReceiptInvalid = errors.New("verification receipt invalid")

	// ErrSecretInvalid is returned by secret generation when the random
	// source fails. Verification never returns it; malformed secrets fail
	// closed as a plain negative result.
	ErrSecretInvalid = errors.New("secret generation failed")
)
