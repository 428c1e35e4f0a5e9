// Package authcore is the authentication-security primitive layer behind
// the BindMe product: one-time password generation and verification
// (RFC 4226 HOTP, RFC 6238 TOTP), SMS/email one-time codes, backup
// recovery codes, per-account lockout and per-IP rate limiting,
// constant-time comparison helpers, CSRF tokens and session fingerprints,
// and an in-memory security audit log with anomaly detection.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (SecurityCheck, AuditEvent, OneTimeCode, etc.). Keyed
// attempt bookkeeping lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Speak HTTP, SQL, SMS, or SMTP. Callers own transport, persistence,
//     and message delivery; authcore only generates and verifies.
//   - Perform I/O on verification paths when running on the default
//     in-process stores. With a Redis client attached, each keyed check is
//     allowed one round-trip.
//   - Surface why a verification failed. Verifiers return booleans and
//     structured allow/deny results, never oracle-grade detail.
//
// # State
//
// All mutable state (lockout records, IP attempt records, issued channel
// codes, the audit ring) lives behind store contracts constructed once by
// [Builder.Build]. Without Redis the stores are process-local maps; with
// [Builder.WithRedis] the same contracts run against a shared Redis, which
// is the supported path for multi-instance deployments.
package authcore
