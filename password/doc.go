// Package password hashes credentials with Argon2id in PHC string format
// and evaluates candidate passwords against a strength policy. It has no
// storage; callers persist the encoded hash.
package password
