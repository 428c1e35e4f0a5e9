package authcore

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// FailureTypeCount pairs an event type with its failure count.
type FailureTypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// SecurityMetrics is an on-demand aggregate over the audit ring. It is
// recomputed per call; the ring's bounded size keeps the scan cheap and
// the absence of incremental counters keeps it correct.
type SecurityMetrics struct {
	TotalEvents     int                `json:"total_events"`
	FailedEvents    int                `json:"failed_events"`
	CriticalEvents  int                `json:"critical_events"`
	RecentFailures  int                `json:"recent_failures"`
	TopFailureTypes []FailureTypeCount `json:"top_failure_types"`
}

// AnomalyReport is the advisory output of the anomaly detector. It never
// blocks anything by itself; the lockout guard and IP rate limiter are
// the enforcement points.
type AnomalyReport struct {
	SuspiciousIPs   []string `json:"suspicious_ips"`
	SuspiciousUsers []string `json:"suspicious_users"`
	Alerts          []string `json:"alerts"`
}

// auditLog is the bounded in-memory event ring: append-only up to
// capacity, oldest evicted beyond it.
type auditLog struct {
	mu     sync.Mutex
	buf    []AuditEvent
	head   int // index of the oldest event
	count  int
	config AuditConfig
	clock  func() time.Time
}

func newAuditLog(cfg AuditConfig, clock func() time.Time) *auditLog {
	return &auditLog{
		buf:    make([]AuditEvent, cfg.RingCapacity),
		config: cfg,
		clock:  clock,
	}
}

// append stores the event, evicting the oldest entry when full. Append
// and eviction happen under one lock acquisition so concurrent appends
// never interleave into a torn ring.
func (l *auditLog) append(event AuditEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count < len(l.buf) {
		l.buf[(l.head+l.count)%len(l.buf)] = event
		l.count++
		return
	}
	l.buf[l.head] = event
	l.head = (l.head + 1) % len(l.buf)
}

// snapshotFiltered copies up to limit matching events, oldest first,
// keeping only the most recent matches.
func (l *auditLog) snapshotFiltered(limit int, keep func(AuditEvent) bool) []AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	matched := make([]AuditEvent, 0, l.count)
	for i := 0; i < l.count; i++ {
		ev := l.buf[(l.head+i)%len(l.buf)]
		if keep == nil || keep(ev) {
			matched = append(matched, ev)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

func (l *auditLog) recent(limit int) []AuditEvent {
	return l.snapshotFiltered(limit, nil)
}

func (l *auditLog) byType(eventType string, limit int) []AuditEvent {
	return l.snapshotFiltered(limit, func(ev AuditEvent) bool {
		return ev.EventType == eventType
	})
}

func (l *auditLog) byUser(userID string, limit int) []AuditEvent {
	return l.snapshotFiltered(limit, func(ev AuditEvent) bool {
		return ev.UserID == userID
	})
}

// failedByUser returns the user's failed attempt events. The
// account_locked marker is excluded: it shares a timestamp with the
// attempt that triggered it and would double-count that attempt.
func (l *auditLog) failedByUser(userID string, limit int) []AuditEvent {
	return l.snapshotFiltered(limit, func(ev AuditEvent) bool {
		return ev.UserID == userID && !ev.Success && ev.EventType != "account_locked"
	})
}

func (l *auditLog) failed(limit int) []AuditEvent {
	return l.snapshotFiltered(limit, func(ev AuditEvent) bool {
		return !ev.Success
	})
}

func (l *auditLog) securityMetrics() SecurityMetrics {
	events := l.snapshotFiltered(0, nil)
	cutoff := l.clock().Add(-l.config.MetricsWindow)

	metrics := SecurityMetrics{TotalEvents: len(events)}
	failureTypes := make(map[string]int)

	for _, ev := range events {
		if ev.Severity == SeverityCritical {
			metrics.CriticalEvents++
		}
		if ev.Success {
			continue
		}
		metrics.FailedEvents++
		failureTypes[ev.EventType]++
		if ev.Timestamp.After(cutoff) {
			metrics.RecentFailures++
		}
	}

	top := make([]FailureTypeCount, 0, len(failureTypes))
	for t, c := range failureTypes {
		top = append(top, FailureTypeCount{Type: t, Count: c})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Type < top[j].Type
	})
	if len(top) > 5 {
		top = top[:5]
	}
	metrics.TopFailureTypes = top

	return metrics
}

func (l *auditLog) detectAnomalies() AnomalyReport {
	cutoff := l.clock().Add(-l.config.AnomalyWindow)
	recent := l.snapshotFiltered(0, func(ev AuditEvent) bool {
		return ev.Timestamp.After(cutoff)
	})

	ipFailures := make(map[string]int)
	userFailures := make(map[string]int)
	criticalCount := 0

	for _, ev := range recent {
		if ev.Severity == SeverityCritical {
			criticalCount++
		}
		if ev.Success {
			continue
		}
		if ev.IP != "" {
			ipFailures[ev.IP]++
		}
		if ev.UserID != "" {
			userFailures[ev.UserID]++
		}
	}

	report := AnomalyReport{}
	for ip, count := range ipFailures {
		if count >= l.config.AnomalyIPFailures {
			report.SuspiciousIPs = append(report.SuspiciousIPs, ip)
		}
	}
	for user, count := range userFailures {
		if count >= l.config.AnomalyUserFailures {
			report.SuspiciousUsers = append(report.SuspiciousUsers, user)
		}
	}
	sort.Strings(report.SuspiciousIPs)
	sort.Strings(report.SuspiciousUsers)

	if n := len(report.SuspiciousIPs); n > 0 {
		report.Alerts = append(report.Alerts,
			fmt.Sprintf("%d suspicious IP(s) detected with multiple failures", n))
	}
	if n := len(report.SuspiciousUsers); n > 0 {
		report.Alerts = append(report.Alerts,
			fmt.Sprintf("%d user account(s) with multiple failures", n))
	}
	if criticalCount > 0 {
		report.Alerts = append(report.Alerts,
			fmt.Sprintf("%d critical security event(s) in the last hour", criticalCount))
	}

	return report
}
