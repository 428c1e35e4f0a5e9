package authcore

import (
	"errors"
	"strings"
	"time"
)

// Config is the full configuration tree for an Engine. Construct it once,
// hand it to [Builder.WithConfig], and treat it as immutable afterwards.
type Config struct {
	TOTP       TOTPConfig
	ChannelOTP ChannelOTPConfig
	BackupCode BackupCodeConfig
	Lockout    LockoutConfig
	IPRate     IPRateConfig
	Token      TokenConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Receipt    ReceiptConfig
	Sweep      SweepConfig
	Throttle   ThrottleConfig
}

// TOTPConfig controls the HOTP/TOTP engine. The defaults (SHA1, 6 digits,
// 30-second period) are what standard authenticator apps expect; change
// them only if every enrolled client changes with you.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int // seconds
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"
	// Skew is the number of adjacent periods accepted on either side of
	// now. Every accepted offset is a replay opportunity; keep it at 1,
	// at most 2.
	Skew int
}

// ChannelOTPConfig controls SMS and email one-time codes.
type ChannelOTPConfig struct {
	SMSCodeLength   int
	SMSExpiry       time.Duration
	EmailCodeLength int
	EmailExpiry     time.Duration
}

// BackupCodeConfig controls recovery code sets.
type BackupCodeConfig struct {
	Count int
}

// LockoutConfig controls the per-identifier lockout guard. The key is the
// logical identifier (normalized email), independent of IP, so rotating
// addresses does not dodge the lock and a shared office IP does not
// penalize legitimate users.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

// IPRateConfig controls the per-source-address limiter. Thresholds are
// deliberately looser than the lockout guard's: many users can share one
// address.
type IPRateConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// TokenConfig controls CSRF/secure token generation.
type TokenConfig struct {
	Length int // bytes of entropy per token
}

// AuditConfig controls the audit ring, dispatcher, and anomaly detector.
type AuditConfig struct {
	BufferSize int
	DropIfFull bool
	// RingCapacity bounds the in-memory event ring; the oldest events are
	// evicted beyond it.
	RingCapacity        int
	MetricsWindow       time.Duration
	AnomalyWindow       time.Duration
	AnomalyIPFailures   int
	AnomalyUserFailures int
}

// MetricsConfig controls the counter/histogram block.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// ReceiptConfig controls signed verification receipts. Disabled unless a
// signing key is provided.
type ReceiptConfig struct {
	SigningKey []byte
	TTL        time.Duration
}

// SweepConfig controls the background expiry sweep. The sweep is a memory
// hygiene measure; every read path already expires records lazily.
type SweepConfig struct {
	Interval time.Duration
}

// ThrottleConfig is a process-wide token bucket in front of every
// verification call. Zero disables it; the per-key limiters always run.
type ThrottleConfig struct {
	VerifyPerSecond float64
	Burst           int
}

func defaultConfig() Config {
	return Config{
		TOTP: TOTPConfig{
			Issuer:    "BindMe",
			Digits:    6,
			Period:    30,
			Algorithm: "SHA1",
			Skew:      1,
		},
		ChannelOTP: ChannelOTPConfig{
			SMSCodeLength:   6,
			SMSExpiry:       5 * time.Minute,
			EmailCodeLength: 8,
			EmailExpiry:     10 * time.Minute,
		},
		BackupCode: BackupCodeConfig{Count: 10},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		IPRate: IPRateConfig{
			MaxAttempts: 20,
			Window:      time.Hour,
		},
		Token: TokenConfig{Length: 32},
		Audit: AuditConfig{
			BufferSize:          256,
			DropIfFull:          true,
			RingCapacity:        10000,
			MetricsWindow:       time.Hour,
			AnomalyWindow:       time.Hour,
			AnomalyIPFailures:   5,
			AnomalyUserFailures: 3,
		},
		Metrics: MetricsConfig{Enabled: true},
		Receipt: ReceiptConfig{TTL: 5 * time.Minute},
		Sweep:   SweepConfig{Interval: 5 * time.Minute},
	}
}

// Validate rejects configurations that would weaken the security
// properties the package promises.
func (c Config) Validate() error {
	if c.TOTP.Issuer == "" {
		return errors.New("totp issuer required")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 10 {
		return errors.New("totp digits must be between 6 and 10")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("totp skew must be between 0 and 2")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("unsupported totp algorithm")
	}

	if c.ChannelOTP.SMSCodeLength < 6 {
		return errors.New("sms code length must be at least 6")
	}
	if c.ChannelOTP.EmailCodeLength < 6 {
		return errors.New("email code length must be at least 6")
	}
	if c.ChannelOTP.SMSExpiry <= 0 || c.ChannelOTP.EmailExpiry <= 0 {
		return errors.New("channel code expiry must be positive")
	}

	if c.BackupCode.Count <= 0 {
		return errors.New("backup code count must be positive")
	}

	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("lockout max attempts must be positive")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if c.IPRate.MaxAttempts <= 0 {
		return errors.New("ip rate max attempts must be positive")
	}
	if c.IPRate.Window <= 0 {
		return errors.New("ip rate window must be positive")
	}

	if c.Token.Length < 16 {
		return errors.New("token length must be at least 16 bytes")
	}

	if c.Audit.RingCapacity <= 0 {
		return errors.New("audit ring capacity must be positive")
	}
	if c.Audit.AnomalyWindow <= 0 || c.Audit.MetricsWindow <= 0 {
		return errors.New("audit windows must be positive")
	}
	if c.Audit.AnomalyIPFailures <= 0 || c.Audit.AnomalyUserFailures <= 0 {
		return errors.New("anomaly thresholds must be positive")
	}

	if len(c.Receipt.SigningKey) > 0 && len(c.Receipt.SigningKey) < 32 {
		return errors.New("receipt signing key must be at least 32 bytes")
	}
	if len(c.Receipt.SigningKey) > 0 && c.Receipt.TTL <= 0 {
		return errors.New("receipt ttl must be positive")
	}

	if c.Throttle.VerifyPerSecond < 0 || c.Throttle.Burst < 0 {
		return errors.New("throttle values must not be negative")
	}

	return nil
}

func cloneConfig(c Config) Config {
	out := c
	if len(c.Receipt.SigningKey) > 0 {
		out.Receipt.SigningKey = append([]byte(nil), c.Receipt.SigningKey...)
	}
	return out
}
