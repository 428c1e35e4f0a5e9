package authcore

import "context"

// GenerateBackupCodes mints a fresh recovery code set for the account.
// Issuing a new set invalidates the old one by replacement; the caller
// owns storage.
func (e *Engine) GenerateBackupCodes(ctx context.Context, account string) ([]BackupCode, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	codes, err := generateBackupCodes(e.config.BackupCode.Count)
	if err != nil {
		return nil, err
	}

	e.Log(ctx, AuditEvent{
		EventType: "backup_codes_generated",
		UserID:    account,
		IP:        "system",
		UserAgent: "system",
		Severity:  SeverityLow,
		Success:   true,
	})
	return codes, nil
}

// VerifyBackupCode checks a submitted recovery code against the account's
// set and marks the matching code used in place. An exhausted set is
// reported as [ErrBackupCodesExhausted] before any attempt is counted, so
// the caller can steer the user to re-enrollment.
func (e *Engine) VerifyBackupCode(ctx context.Context, identifier, submitted string, codes []BackupCode, client Client) (AttemptResult, error) {
	if e == nil {
		return AttemptResult{}, ErrEngineNotReady
	}

	if allBackupCodesUsed(codes) {
		e.metricInc(MetricBackupCodesExhausted)
		e.Log(ctx, AuditEvent{
			EventType: "backup_codes_exhausted",
			UserID:    identifier,
			IP:        client.IP,
			UserAgent: client.UserAgent,
			Severity:  SeverityHigh,
		})
		return AttemptResult{}, ErrBackupCodesExhausted
	}

	return e.guardedVerify(ctx, identifier, client, "backup_code_verify",
		MetricBackupCodeUsed, MetricBackupCodeFailed,
		func() (bool, error) {
			i, ok := verifyBackupCode(submitted, codes)
			if !ok {
				return false, nil
			}
			codes[i].Used = true
			return true, nil
		})
}
