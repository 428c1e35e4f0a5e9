package authcore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bindme/authcore/internal/limiters"
)

const (
	lockedReason = "Account temporarily locked due to too many failed attempts"
	ipReason     = "Too many attempts from this IP address"
)

// AttemptResult is the outcome of a guarded verification. A guard denial
// shows up as Check.Allowed == false with the retry time; a wrong code
// shows up as Verified == false with Check.Allowed == true.
type AttemptResult struct {
	Verified bool
	Check    SecurityCheck
}

// Engine is the process-wide security core. Build one with [Builder] at
// startup; all methods are safe for concurrent use afterwards.
type Engine struct {
	config     Config
	totp       *totpManager
	channel    *channelOTPManager
	lockouts   limiters.AttemptStore
	ipAttempts limiters.AttemptStore
	challenges ChallengeStore
	audit      *auditDispatcher
	log        *auditLog
	metrics    *Metrics
	throttle   *rate.Limiter
	alert      func(AuditEvent)
	clock      func() time.Time

	sweepStop chan struct{}
	sweepWG   sync.WaitGroup
	closeOnce sync.Once
}

func (e *Engine) now() time.Time {
	return e.clock()
}

// Close stops the background sweeper and drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.sweepStop != nil {
			close(e.sweepStop)
			e.sweepWG.Wait()
		}
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events the dispatcher dropped under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

/*
====================================
ATTEMPT GUARDS
====================================
*/

// CheckLockout reports whether the identifier may attempt authentication.
// An expired lock is cleared on read; no sweep is needed for correctness.
func (e *Engine) CheckLockout(ctx context.Context, identifier string) (SecurityCheck, error) {
	if e == nil {
		return SecurityCheck{}, ErrEngineNotReady
	}
	dec, err := e.lockouts.Check(ctx, identifier, e.now())
	if err != nil {
		return SecurityCheck{}, err
	}
	return lockoutCheck(dec), nil
}

// CheckIPRateLimit reports whether the source address may attempt
// authentication, independent of any account identity.
func (e *Engine) CheckIPRateLimit(ctx context.Context, ip string) (SecurityCheck, error) {
	if e == nil {
		return SecurityCheck{}, ErrEngineNotReady
	}
	dec, err := e.ipAttempts.Check(ctx, ip, e.now())
	if err != nil {
		return SecurityCheck{}, err
	}
	return ipCheck(dec), nil
}

// CheckAttempt runs both guards: the IP limiter first, then the account
// lockout guard. The first denial wins.
func (e *Engine) CheckAttempt(ctx context.Context, identifier, ip string) (SecurityCheck, error) {
	if e == nil {
		return SecurityCheck{}, ErrEngineNotReady
	}

	if ip != "" {
		check, err := e.CheckIPRateLimit(ctx, ip)
		if err != nil {
			return SecurityCheck{}, err
		}
		if !check.Allowed {
			e.metricInc(MetricIPRateDenied)
			return check, nil
		}
	}

	check, err := e.CheckLockout(ctx, identifier)
	if err != nil {
		return SecurityCheck{}, err
	}
	if !check.Allowed {
		e.metricInc(MetricLockoutDenied)
	}
	return check, nil
}

// RecordFailure counts a failed attempt against both the identifier and
// the source address, and logs it.
func (e *Engine) RecordFailure(ctx context.Context, identifier string, client Client) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.recordFailure(ctx, identifier, client, "auth_failure")
}

// recordFailure does the store bookkeeping for a failed attempt and logs
// exactly one failure event of the given type. The anomaly detector
// counts events, so an attempt must never produce more than one failure
// event for the same user and address.
func (e *Engine) recordFailure(ctx context.Context, identifier string, client Client, eventType string) error {
	now := e.now()

	dec, err := e.lockouts.RecordFailure(ctx, identifier, now)
	if err != nil {
		return err
	}
	if !dec.Allowed {
		e.metricInc(MetricLockoutTriggered)
		e.Log(ctx, AuditEvent{
			EventType: "account_locked",
			UserID:    identifier,
			IP:        client.IP,
			UserAgent: client.UserAgent,
			Severity:  SeverityHigh,
			Details:   map[string]string{"locked_until": dec.RetryAt.Format(time.RFC3339)},
		})
	}

	if client.IP != "" {
		if _, err := e.ipAttempts.RecordFailure(ctx, client.IP, now); err != nil {
			return err
		}
	}

	e.Log(ctx, AuditEvent{
		EventType: eventType,
		UserID:    identifier,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Severity:  SeverityMedium,
	})
	return nil
}

// RecordSuccess clears the identifier's lockout record entirely and
// zeroes the address counter. Only the succeeding address is touched: a
// success elsewhere never launders another address's history.
func (e *Engine) RecordSuccess(ctx context.Context, identifier string, client Client) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.recordSuccess(ctx, identifier, client, "auth_success")
}

func (e *Engine) recordSuccess(ctx context.Context, identifier string, client Client, eventType string) error {
	now := e.now()

	if err := e.lockouts.RecordSuccess(ctx, identifier, now); err != nil {
		return err
	}
	if client.IP != "" {
		if err := e.ipAttempts.RecordSuccess(ctx, client.IP, now); err != nil {
			return err
		}
	}

	e.Log(ctx, AuditEvent{
		EventType: eventType,
		UserID:    identifier,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Severity:  SeverityLow,
		Success:   true,
	})
	return nil
}

// SuspiciousSigns returns advisory warnings about an identifier/address
// pair: elevated failure counts and rapid successive attempts. It blocks
// nothing.
func (e *Engine) SuspiciousSigns(ctx context.Context, identifier, ip string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	var warnings []string
	now := e.now()

	if dec, err := e.lockouts.Check(ctx, identifier, now); err == nil {
		attempts := e.config.Lockout.MaxAttempts - dec.Remaining
		if !dec.Allowed {
			attempts = e.config.Lockout.MaxAttempts
		}
		if attempts > 2 {
			warnings = append(warnings, "multiple failed attempts for account")
		}
	}

	if ip != "" {
		if dec, err := e.ipAttempts.Check(ctx, ip, now); err == nil {
			attempts := e.config.IPRate.MaxAttempts - dec.Remaining
			if !dec.Allowed {
				attempts = e.config.IPRate.MaxAttempts
			}
			if attempts > 10 {
				warnings = append(warnings, "high number of attempts from address")
			}
		}
	}

	// One failed attempt is one event; account_locked rides along with
	// the attempt that triggered it and is not a separate attempt.
	failures := e.log.failedByUser(identifier, 2)
	if len(failures) == 2 {
		if failures[1].Timestamp.Sub(failures[0].Timestamp) < time.Second {
			warnings = append(warnings, "rapid successive attempts detected")
		}
	}

	return warnings, nil
}

/*
====================================
GUARDED VERIFICATION
====================================
*/

// guardedVerify is the shared attempt pipeline: process throttle, IP and
// lockout guards, the verifier itself, then outcome bookkeeping and audit.
// Audit recording is log-then-continue; it can never fail the attempt.
// Every attempt appends exactly one outcome event, typed by the flow.
// A verifier error means the backing store failed, not that the code was
// wrong: it surfaces without counting an attempt.
func (e *Engine) guardedVerify(
	ctx context.Context,
	identifier string,
	client Client,
	eventType string,
	metricOK, metricFail MetricID,
	verify func() (bool, error),
) (AttemptResult, error) {
	if e == nil {
		return AttemptResult{}, ErrEngineNotReady
	}

	start := e.now()
	defer func() {
		e.metrics.Observe(MetricVerifyLatency, e.now().Sub(start))
	}()

	if e.throttle != nil && !e.throttle.Allow() {
		e.metricInc(MetricAttemptThrottled)
		return AttemptResult{}, ErrThrottled
	}

	check, err := e.CheckAttempt(ctx, identifier, client.IP)
	if err != nil {
		return AttemptResult{}, err
	}
	if !check.Allowed {
		e.Log(ctx, AuditEvent{
			EventType: eventType,
			UserID:    identifier,
			IP:        client.IP,
			UserAgent: client.UserAgent,
			Severity:  SeverityMedium,
			Details:   map[string]string{"denied": check.Reason},
		})
		return AttemptResult{Check: check}, nil
	}

	ok, err := verify()
	if err != nil {
		return AttemptResult{}, err
	}

	if ok {
		e.metricInc(metricOK)
		if err := e.recordSuccess(ctx, identifier, client, eventType); err != nil {
			return AttemptResult{}, err
		}
		return AttemptResult{Verified: true, Check: check}, nil
	}

	e.metricInc(metricFail)
	if err := e.recordFailure(ctx, identifier, client, eventType); err != nil {
		return AttemptResult{}, err
	}
	return AttemptResult{Check: check}, nil
}

func lockoutCheck(dec limiters.Decision) SecurityCheck {
	if dec.Allowed {
		return SecurityCheck{Allowed: true, RemainingAttempts: dec.Remaining}
	}
	return SecurityCheck{Reason: lockedReason, LockedUntil: dec.RetryAt}
}

func ipCheck(dec limiters.Decision) SecurityCheck {
	if dec.Allowed {
		return SecurityCheck{Allowed: true, RemainingAttempts: dec.Remaining}
	}
	return SecurityCheck{Reason: ipReason, LockedUntil: dec.RetryAt}
}

/*
====================================
AUDIT SURFACE
====================================
*/

// Log stamps and records an audit event: ring append, async sink emit,
// and the out-of-band alert hook for critical severity. It never blocks
// the caller on sink latency and never returns an error.
func (e *Engine) Log(ctx context.Context, event AuditEvent) {
	if e == nil {
		return
	}

	event.Timestamp = e.now()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	e.log.append(event)
	e.audit.Emit(ctx, event)

	if event.Severity == SeverityCritical {
		e.metricInc(MetricCriticalAlert)
		if e.alert != nil {
			e.alert(event)
		}
	}
}

// LogAuth records an authentication-flow event with severity derived
// from the outcome.
func (e *Engine) LogAuth(ctx context.Context, eventType string, client Client, success bool, userID, email string, details map[string]string) {
	severity := SeverityMedium
	if success {
		severity = SeverityLow
	}
	e.Log(ctx, AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Details:   details,
		Severity:  severity,
		Success:   success,
	})
}

// LogSecurity records a security observation at an explicit severity.
// Security events are failures by definition.
func (e *Engine) LogSecurity(ctx context.Context, eventType string, client Client, severity Severity, userID, email string, details map[string]string) {
	e.Log(ctx, AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Details:   details,
		Severity:  severity,
	})
}

// LogSystem records an event originating from the process itself rather
// than a client request.
func (e *Engine) LogSystem(ctx context.Context, eventType string, severity Severity, details map[string]string) {
	e.Log(ctx, AuditEvent{
		EventType: eventType,
		IP:        "system",
		UserAgent: "system",
		Details:   details,
		Severity:  severity,
		Success:   true,
	})
}

// RecentEvents returns the most recent events, oldest first.
func (e *Engine) RecentEvents(limit int) []AuditEvent {
	if e == nil {
		return nil
	}
	return e.log.recent(limit)
}

// EventsByType returns the most recent events of one type, oldest first.
func (e *Engine) EventsByType(eventType string, limit int) []AuditEvent {
	if e == nil {
		return nil
	}
	return e.log.byType(eventType, limit)
}

// EventsByUser returns the most recent events for one user, oldest first.
func (e *Engine) EventsByUser(userID string, limit int) []AuditEvent {
	if e == nil {
		return nil
	}
	return e.log.byUser(userID, limit)
}

// FailedEvents returns the most recent failed events, oldest first.
func (e *Engine) FailedEvents(limit int) []AuditEvent {
	if e == nil {
		return nil
	}
	return e.log.failed(limit)
}

// SecurityMetrics recomputes the aggregate snapshot over the audit ring.
func (e *Engine) SecurityMetrics() SecurityMetrics {
	if e == nil {
		return SecurityMetrics{}
	}
	return e.log.securityMetrics()
}

// DetectAnomalousActivity scans the last hour of the audit ring for
// addresses and accounts with repeated failures. Advisory only.
func (e *Engine) DetectAnomalousActivity() AnomalyReport {
	if e == nil {
		return AnomalyReport{}
	}
	return e.log.detectAnomalies()
}

// IsStoreUnavailable reports whether err stems from an unreachable
// backing store, as opposed to a negative security decision.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, limiters.ErrUnavailable)
}
