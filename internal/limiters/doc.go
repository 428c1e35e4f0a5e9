// Package limiters implements the keyed attempt-counting stores behind the
// account lockout guard and the per-IP rate limiter: an in-process map
// implementation for single-instance deployments and a Redis implementation
// sharing the same contract for fleets.
package limiters
