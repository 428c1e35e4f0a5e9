package authcore

import "context"

// GenerateCSRFToken mints an opaque token at the configured length.
func (e *Engine) GenerateCSRFToken() (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return GenerateToken(e.config.Token.Length)
}

// ValidateCSRFToken compares a submitted token against the stored one.
// Length disagreement is structural and may return early; matched-length
// comparison is constant time.
func (e *Engine) ValidateCSRFToken(ctx context.Context, submitted, expected string, client Client) bool {
	if e == nil {
		return false
	}
	if ValidateToken(submitted, expected) {
		return true
	}
	e.Log(ctx, AuditEvent{
		EventType: "csrf_token_mismatch",
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Severity:  SeverityHigh,
	})
	return false
}

// CheckFingerprint compares the request's session fingerprint against the
// stored one. A mismatch is advisory: it is logged and counted, and the
// caller decides whether to step up or terminate the session.
func (e *Engine) CheckFingerprint(ctx context.Context, client Client, stored string) bool {
	if e == nil {
		return false
	}
	if ValidateFingerprint(client, stored) {
		return true
	}
	e.metricInc(MetricFingerprintMismatch)
	e.Log(ctx, AuditEvent{
		EventType: "fingerprint_mismatch",
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Severity:  SeverityHigh,
	})
	return false
}
