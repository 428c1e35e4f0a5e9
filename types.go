package authcore

import "time"

// Channel identifies the delivery channel a one-time code was issued for.
type Channel uint8

const (
	// ChannelSMS carries 6-digit numeric codes with a short expiry.
	ChannelSMS Channel = iota
	// ChannelEmail carries 8-character alphanumeric codes with a longer
	// expiry.
	ChannelEmail
)

func (c Channel) String() string {
	switch c {
	case ChannelSMS:
		return "sms"
	case ChannelEmail:
		return "email"
	default:
		return "unknown"
	}
}

// OneTimeCode is a channel-delivered verification code. At most one live
// code exists per (account, channel); issuing a new one replaces it.
type OneTimeCode struct {
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Channel   Channel   `json:"channel"`
}

// Expired reports whether the code's validity window has passed.
func (c OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// BackupCode is a single-use recovery code from a fixed-size enrollment set.
type BackupCode struct {
	Code string `json:"code"`
	Used bool   `json:"used"`
}

// SecurityCheck is the structured allow/deny result of the lockout guard
// and IP rate limiter.
type SecurityCheck struct {
	Allowed           bool
	Reason            string
	RemainingAttempts int
	LockedUntil       time.Time
}

// Client describes the request context a verification attempt arrived
// from. IP and the header-derived fields feed audit events and session
// fingerprints; all of them are spoofable and are treated as advisory
// signals, never as identity proof.
type Client struct {
	IP             string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
}

// TOTPEnrollment is returned by Engine.GenerateTOTPEnrollment: the secret for
// manual entry plus the otpauth URI for QR enrollment.
type TOTPEnrollment struct {
	SecretBase32 string
	URI          string
}

// Receipt is the decoded form of a verification receipt minted after a
// completed second factor.
type Receipt struct {
	UserID    string
	Method    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
