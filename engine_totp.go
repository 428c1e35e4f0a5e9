package authcore

import "context"

// GenerateTOTPEnrollment mints a fresh secret for the account and the
// otpauth URI an authenticator app consumes. The secret is returned once;
// the caller owns persisting it.
func (e *Engine) GenerateTOTPEnrollment(ctx context.Context, account string) (TOTPEnrollment, error) {
	if e == nil {
		return TOTPEnrollment{}, ErrEngineNotReady
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return TOTPEnrollment{}, err
	}

	e.Log(ctx, AuditEvent{
		EventType: "totp_enrollment",
		UserID:    account,
		IP:        "system",
		UserAgent: "system",
		Severity:  SeverityLow,
		Success:   true,
	})

	return TOTPEnrollment{
		SecretBase32: secret,
		URI:          e.totp.EnrollmentURI(secret, account),
	}, nil
}

// TOTPCode computes the current code for a secret. Intended for
// server-initiated delivery and for tests; verification goes through
// [Engine.VerifyTOTP].
func (e *Engine) TOTPCode(secretBase32 string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return e.totp.Code(secretBase32, e.now())
}

// VerifyTOTP checks a submitted authenticator code against the account's
// secret, with the full attempt pipeline around it: throttle, IP and
// lockout guards, attempt bookkeeping, metrics and audit.
func (e *Engine) VerifyTOTP(ctx context.Context, identifier, secretBase32, code string, client Client) (AttemptResult, error) {
	return e.guardedVerify(ctx, identifier, client, "totp_verify",
		MetricTOTPSuccess, MetricTOTPFailure,
		func() (bool, error) {
			return e.totp.Verify(secretBase32, code, e.now()), nil
		})
}
