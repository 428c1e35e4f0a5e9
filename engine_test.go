package authcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// testClock is a mutable time source shared with the engine under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *testClock) {
	t.Helper()

	cfg := defaultConfig()
	cfg.Receipt.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newTestClock()
	engine, err := New().WithConfig(cfg).WithClock(clock.Now).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, clock
}

func testClient() Client {
	return Client{IP: "203.0.113.7", UserAgent: "test/1.0", AcceptLanguage: "en-US", AcceptEncoding: "gzip"}
}

func TestEngineTOTPRoundTrip(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	enrollment, err := engine.GenerateTOTPEnrollment(ctx, "alice")
	if err != nil {
		t.Fatalf("GenerateTOTPEnrollment: %v", err)
	}
	if enrollment.SecretBase32 == "" || enrollment.URI == "" {
		t.Fatalf("incomplete enrollment %+v", enrollment)
	}

	code, err := engine.TOTPCode(enrollment.SecretBase32)
	if err != nil {
		t.Fatalf("TOTPCode: %v", err)
	}

	result, err := engine.VerifyTOTP(ctx, "alice", enrollment.SecretBase32, code, testClient())
	if err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	if !result.Verified {
		t.Fatal("freshly generated code must verify")
	}

	result, err = engine.VerifyTOTP(ctx, "alice", enrollment.SecretBase32, "000000", testClient())
	if err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	if result.Verified {
		t.Fatal("wrong code must not verify")
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricTOTPSuccess] != 1 || snap.Counters[MetricTOTPFailure] != 1 {
		t.Fatalf("unexpected counters %v", snap.Counters)
	}
}

func TestEngineLockoutAfterRepeatedFailures(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	ctx := context.Background()
	client := testClient()

	enrollment, err := engine.GenerateTOTPEnrollment(ctx, "bob")
	if err != nil {
		t.Fatalf("GenerateTOTPEnrollment: %v", err)
	}

	var result AttemptResult
	for i := 0; i < 5; i++ {
		result, err = engine.VerifyTOTP(ctx, "bob", enrollment.SecretBase32, "000000", client)
		if err != nil {
			t.Fatalf("VerifyTOTP %d: %v", i, err)
		}
	}

	// Sixth attempt is denied by the lockout, not by code comparison.
	result, err = engine.VerifyTOTP(ctx, "bob", enrollment.SecretBase32, "000000", client)
	if err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	if result.Check.Allowed {
		t.Fatal("locked account must be denied")
	}
	if result.Check.Reason != lockedReason {
		t.Fatalf("unexpected reason %q", result.Check.Reason)
	}
	if result.Check.LockedUntil.IsZero() {
		t.Fatal("denial must carry the unlock time")
	}

	// A correct code does not bypass the lock.
	code, err := engine.TOTPCode(enrollment.SecretBase32)
	if err != nil {
		t.Fatalf("TOTPCode: %v", err)
	}
	result, err = engine.VerifyTOTP(ctx, "bob", enrollment.SecretBase32, code, client)
	if err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	if result.Verified || result.Check.Allowed {
		t.Fatal("correct code must still be denied while locked")
	}

	// After the lock window the account recovers.
	clock.Advance(16 * time.Minute)
	code, _ = engine.TOTPCode(enrollment.SecretBase32)
	result, err = engine.VerifyTOTP(ctx, "bob", enrollment.SecretBase32, code, client)
	if err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	if !result.Verified {
		t.Fatal("expired lock must clear on the next attempt")
	}
}

func TestEngineSuccessResetsLockout(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()
	client := testClient()

	enrollment, _ := engine.GenerateTOTPEnrollment(ctx, "carol")
	for i := 0; i < 4; i++ {
		engine.VerifyTOTP(ctx, "carol", enrollment.SecretBase32, "000000", client)
	}

	code, _ := engine.TOTPCode(enrollment.SecretBase32)
	result, err := engine.VerifyTOTP(ctx, "carol", enrollment.SecretBase32, code, client)
	if err != nil || !result.Verified {
		t.Fatalf("verify before lock must succeed, result=%+v err=%v", result, err)
	}

	check, err := engine.CheckLockout(ctx, "carol")
	if err != nil {
		t.Fatalf("CheckLockout: %v", err)
	}
	if !check.Allowed || check.RemainingAttempts != 5 {
		t.Fatalf("success must clear the failure count, check=%+v", check)
	}
}

func TestEngineIPRateLimitIndependentOfAccount(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.IPRate.MaxAttempts = 3
	})
	ctx := context.Background()
	client := Client{IP: "198.51.100.9", UserAgent: "curl/8.0"}

	enrollment, _ := engine.GenerateTOTPEnrollment(ctx, "seed")

	// Spray across distinct accounts from one address.
	for i, account := range []string{"u1", "u2", "u3"} {
		result, err := engine.VerifyTOTP(ctx, account, enrollment.SecretBase32, "000000", client)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if !result.Check.Allowed {
			t.Fatalf("attempt %d should pass the guards, check=%+v", i, result.Check)
		}
	}

	result, err := engine.VerifyTOTP(ctx, "u4", enrollment.SecretBase32, "000000", client)
	if err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	if result.Check.Allowed {
		t.Fatal("fourth attempt from the address must be denied regardless of account")
	}
	if result.Check.Reason != ipReason {
		t.Fatalf("unexpected reason %q", result.Check.Reason)
	}

	// A different address is unaffected.
	check, err := engine.CheckIPRateLimit(ctx, "203.0.113.99")
	if err != nil || !check.Allowed {
		t.Fatalf("other address must be allowed, check=%+v err=%v", check, err)
	}
}

func TestEngineChannelCodeFlow(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()
	client := testClient()

	code, err := engine.IssueChannelCode(ctx, "alice", ChannelEmail, client)
	if err != nil {
		t.Fatalf("IssueChannelCode: %v", err)
	}
	if len(code.Code) != 8 {
		t.Fatalf("email code must be 8 characters, got %q", code.Code)
	}

	// Wrong code fails but leaves the challenge pending.
	result, err := engine.VerifyChannelCode(ctx, "alice", ChannelEmail, "WRONGXXX", client)
	if err != nil {
		t.Fatalf("VerifyChannelCode: %v", err)
	}
	if result.Verified {
		t.Fatal("wrong code must fail")
	}

	result, err = engine.VerifyChannelCode(ctx, "alice", ChannelEmail, code.Code, client)
	if err != nil {
		t.Fatalf("VerifyChannelCode: %v", err)
	}
	if !result.Verified {
		t.Fatal("correct code must verify after an earlier wrong attempt")
	}

	// Success consumed the challenge: replay fails.
	result, err = engine.VerifyChannelCode(ctx, "alice", ChannelEmail, code.Code, client)
	if err != nil {
		t.Fatalf("VerifyChannelCode: %v", err)
	}
	if result.Verified {
		t.Fatal("consumed code must not verify again")
	}
}

func TestEngineChannelCodeExpiry(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	ctx := context.Background()
	client := testClient()

	code, err := engine.IssueChannelCode(ctx, "alice", ChannelSMS, client)
	if err != nil {
		t.Fatalf("IssueChannelCode: %v", err)
	}

	clock.Advance(6 * time.Minute)
	result, err := engine.VerifyChannelCode(ctx, "alice", ChannelSMS, code.Code, client)
	if err != nil {
		t.Fatalf("VerifyChannelCode: %v", err)
	}
	if result.Verified {
		t.Fatal("expired code must not verify")
	}
	if engine.MetricsSnapshot().Counters[MetricChannelCodeExpired] != 1 {
		t.Fatal("expired attempt must be counted")
	}
}

func TestEngineChannelCodeReissueReplaces(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()
	client := testClient()

	first, _ := engine.IssueChannelCode(ctx, "alice", ChannelSMS, client)
	second, _ := engine.IssueChannelCode(ctx, "alice", ChannelSMS, client)

	if first.Code != second.Code {
		result, err := engine.VerifyChannelCode(ctx, "alice", ChannelSMS, first.Code, client)
		if err != nil {
			t.Fatalf("VerifyChannelCode: %v", err)
		}
		if result.Verified {
			t.Fatal("replaced code must no longer verify")
		}
	}

	result, err := engine.VerifyChannelCode(ctx, "alice", ChannelSMS, second.Code, client)
	if err != nil || !result.Verified {
		t.Fatalf("latest code must verify, result=%+v err=%v", result, err)
	}
}

func TestEngineBackupCodeFlow(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()
	client := testClient()

	codes, err := engine.GenerateBackupCodes(ctx, "alice")
	if err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	if len(codes) != 10 {
		t.Fatalf("expected 10 codes, got %d", len(codes))
	}

	result, err := engine.VerifyBackupCode(ctx, "alice", codes[3].Code, codes, client)
	if err != nil || !result.Verified {
		t.Fatalf("valid code must verify, result=%+v err=%v", result, err)
	}
	if !codes[3].Used {
		t.Fatal("matched code must be marked used in place")
	}

	result, err = engine.VerifyBackupCode(ctx, "alice", codes[3].Code, codes, client)
	if err != nil {
		t.Fatalf("VerifyBackupCode: %v", err)
	}
	if result.Verified {
		t.Fatal("used code must not verify again")
	}
}

func TestEngineBackupCodesExhausted(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	codes := []BackupCode{
		{Code: "AAAA-BBBB", Used: true},
		{Code: "CCCC-DDDD", Used: true},
	}
	_, err := engine.VerifyBackupCode(ctx, "alice", "AAAA-BBBB", codes, testClient())
	if !errors.Is(err, ErrBackupCodesExhausted) {
		t.Fatalf("expected ErrBackupCodesExhausted, got %v", err)
	}
	if engine.MetricsSnapshot().Counters[MetricBackupCodesExhausted] != 1 {
		t.Fatal("exhaustion must be counted")
	}
}

func TestEngineThrottle(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Throttle.VerifyPerSecond = 1
		cfg.Throttle.Burst = 1
	})
	ctx := context.Background()

	enrollment, _ := engine.GenerateTOTPEnrollment(ctx, "alice")

	// First attempt consumes the sole token; the second is shed.
	if _, err := engine.VerifyTOTP(ctx, "alice", enrollment.SecretBase32, "000000", testClient()); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	_, err := engine.VerifyTOTP(ctx, "alice", enrollment.SecretBase32, "000000", testClient())
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	if engine.MetricsSnapshot().Counters[MetricAttemptThrottled] != 1 {
		t.Fatal("shed attempt must be counted")
	}
}

func TestEngineSuspiciousSigns(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()
	client := testClient()

	signs, err := engine.SuspiciousSigns(ctx, "quiet", "")
	if err != nil {
		t.Fatalf("SuspiciousSigns: %v", err)
	}
	if len(signs) != 0 {
		t.Fatalf("quiet account must have no warnings, got %v", signs)
	}

	for i := 0; i < 3; i++ {
		if err := engine.RecordFailure(ctx, "noisy", client); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	signs, err = engine.SuspiciousSigns(ctx, "noisy", client.IP)
	if err != nil {
		t.Fatalf("SuspiciousSigns: %v", err)
	}
	found := false
	for _, s := range signs {
		if s == "multiple failed attempts for account" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected account warning in %v", signs)
	}
}

func TestEngineAuditQueries(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()
	client := testClient()

	engine.LogAuth(ctx, "login", client, true, "alice", "alice@example.com", nil)
	engine.LogAuth(ctx, "login", client, false, "bob", "", nil)
	engine.LogSecurity(ctx, "csrf_token_mismatch", client, SeverityHigh, "", "", nil)

	if got := engine.RecentEvents(0); len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got := engine.EventsByType("login", 0); len(got) != 2 {
		t.Fatalf("expected 2 login events, got %d", len(got))
	}
	if got := engine.EventsByUser("alice", 0); len(got) != 1 {
		t.Fatalf("expected 1 alice event, got %d", len(got))
	}
	if got := engine.FailedEvents(0); len(got) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(got))
	}

	m := engine.SecurityMetrics()
	if m.TotalEvents != 3 || m.FailedEvents != 2 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestEngineCriticalAlertHook(t *testing.T) {
	var (
		mu     sync.Mutex
		fired  []AuditEvent
		client = testClient()
	)

	cfg := defaultConfig()
	clock := newTestClock()
	engine, err := New().
		WithConfig(cfg).
		WithClock(clock.Now).
		WithAlertFunc(func(ev AuditEvent) {
			mu.Lock()
			fired = append(fired, ev)
			mu.Unlock()
		}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	engine.LogSecurity(context.Background(), "intrusion_detected", client, SeverityCritical, "", "", nil)
	engine.LogSecurity(context.Background(), "noise", client, SeverityHigh, "", "", nil)

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0].EventType != "intrusion_detected" {
		t.Fatalf("alert hook must fire exactly for critical events, got %+v", fired)
	}
	if engine.MetricsSnapshot().Counters[MetricCriticalAlert] != 1 {
		t.Fatal("critical events must be counted")
	}
}

func TestEngineCSRFTokens(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	tok, err := engine.GenerateCSRFToken()
	if err != nil {
		t.Fatalf("GenerateCSRFToken: %v", err)
	}
	if !engine.ValidateCSRFToken(ctx, tok, tok, testClient()) {
		t.Fatal("token must validate against itself")
	}
	if engine.ValidateCSRFToken(ctx, tok, "deadbeef", testClient()) {
		t.Fatal("mismatched token must fail")
	}
	if got := engine.EventsByType("csrf_token_mismatch", 0); len(got) != 1 {
		t.Fatalf("mismatch must be audited, got %d events", len(got))
	}
}

func TestEngineFingerprint(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()
	client := testClient()

	stored := Fingerprint(client)
	if !engine.CheckFingerprint(ctx, client, stored) {
		t.Fatal("matching fingerprint must pass")
	}

	moved := client
	moved.IP = "198.51.100.200"
	if engine.CheckFingerprint(ctx, moved, stored) {
		t.Fatal("changed client profile must fail")
	}
	if engine.MetricsSnapshot().Counters[MetricFingerprintMismatch] != 1 {
		t.Fatal("mismatch must be counted")
	}
}

func TestEngineClosedIsIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	engine.Close()
	engine.Close() // second close must not panic
}

func TestEngineFailedAttemptLogsSingleEvent(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()
	client := testClient()

	enrollment, _ := engine.GenerateTOTPEnrollment(ctx, "seed")
	if _, err := engine.VerifyTOTP(ctx, "mallory", enrollment.SecretBase32, "000000", client); err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}

	events := engine.EventsByUser("mallory", 0)
	if len(events) != 1 {
		t.Fatalf("one failed attempt must log exactly one event, got %d: %+v", len(events), events)
	}
	if events[0].EventType != "totp_verify" || events[0].Success {
		t.Fatalf("unexpected outcome event %+v", events[0])
	}
}

func TestEngineAnomalyUserFlaggedAtThreeFailures(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()
	client := testClient()

	enrollment, _ := engine.GenerateTOTPEnrollment(ctx, "seed")

	for i := 0; i < 2; i++ {
		if _, err := engine.VerifyTOTP(ctx, "mallory", enrollment.SecretBase32, "000000", client); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	report := engine.DetectAnomalousActivity()
	if len(report.SuspiciousUsers) != 0 {
		t.Fatalf("two failures must not flag the user, got %v", report.SuspiciousUsers)
	}

	if _, err := engine.VerifyTOTP(ctx, "mallory", enrollment.SecretBase32, "000000", client); err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	report = engine.DetectAnomalousActivity()
	if len(report.SuspiciousUsers) != 1 || report.SuspiciousUsers[0] != "mallory" {
		t.Fatalf("third failure must flag the user, got %v", report.SuspiciousUsers)
	}
}

func TestEngineAnomalyIPFlaggedAtFiveFailures(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()
	client := Client{IP: "198.51.100.77", UserAgent: "curl/8.0"}

	enrollment, _ := engine.GenerateTOTPEnrollment(ctx, "seed")

	// One failure per account so no lockout event inflates the count.
	for i, account := range []string{"u1", "u2", "u3", "u4"} {
		if _, err := engine.VerifyTOTP(ctx, account, enrollment.SecretBase32, "000000", client); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	report := engine.DetectAnomalousActivity()
	if len(report.SuspiciousIPs) != 0 {
		t.Fatalf("four failures must not flag the address, got %v", report.SuspiciousIPs)
	}

	if _, err := engine.VerifyTOTP(ctx, "u5", enrollment.SecretBase32, "000000", client); err != nil {
		t.Fatalf("fifth attempt: %v", err)
	}
	report = engine.DetectAnomalousActivity()
	if len(report.SuspiciousIPs) != 1 || report.SuspiciousIPs[0] != client.IP {
		t.Fatalf("fifth failure must flag the address, got %v", report.SuspiciousIPs)
	}
}

func TestEngineSuspiciousSignsSingleFailureNotRapid(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()
	client := testClient()

	enrollment, _ := engine.GenerateTOTPEnrollment(ctx, "dave")
	if _, err := engine.VerifyTOTP(ctx, "dave", enrollment.SecretBase32, "000000", client); err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}

	signs, err := engine.SuspiciousSigns(ctx, "dave", client.IP)
	if err != nil {
		t.Fatalf("SuspiciousSigns: %v", err)
	}
	for _, s := range signs {
		if s == "rapid successive attempts detected" {
			t.Fatalf("one attempt must not read as rapid, got %v", signs)
		}
	}

	// A second attempt inside the same second does.
	if _, err := engine.VerifyTOTP(ctx, "dave", enrollment.SecretBase32, "000000", client); err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	signs, err = engine.SuspiciousSigns(ctx, "dave", client.IP)
	if err != nil {
		t.Fatalf("SuspiciousSigns: %v", err)
	}
	found := false
	for _, s := range signs {
		if s == "rapid successive attempts detected" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected rapid-attempts warning in %v", signs)
	}
}

// faultingChallengeStore fails every read the way an unreachable Redis
// would.
type faultingChallengeStore struct{}

func (faultingChallengeStore) Put(context.Context, ChannelChallenge) error { return nil }

func (faultingChallengeStore) Get(context.Context, string, Channel) (ChannelChallenge, error) {
	return ChannelChallenge{}, fmt.Errorf("%w: connection refused", ErrStoreUnavailable)
}

func (faultingChallengeStore) Consume(context.Context, string, Channel) error { return nil }

func (faultingChallengeStore) Sweep(context.Context, time.Time) int { return 0 }

func TestEngineChannelStoreFaultSurfaces(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()
	client := testClient()

	engine.challenges = faultingChallengeStore{}

	_, err := engine.VerifyChannelCode(ctx, "erin", ChannelEmail, "ABCD1234", client)
	if !IsStoreUnavailable(err) {
		t.Fatalf("store fault must surface, got %v", err)
	}

	// The fault must not count as a failed attempt against the account.
	check, cerr := engine.CheckLockout(ctx, "erin")
	if cerr != nil {
		t.Fatalf("CheckLockout: %v", cerr)
	}
	if !check.Allowed || check.RemainingAttempts != engine.config.Lockout.MaxAttempts {
		t.Fatalf("fault counted as an attempt, check=%+v", check)
	}
	if got := engine.MetricsSnapshot().Counters[MetricChannelCodeFailure]; got != 0 {
		t.Fatalf("fault counted as a wrong code, failures=%d", got)
	}
}
