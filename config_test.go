package authcore

import (
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty issuer", func(c *Config) { c.TOTP.Issuer = "" }},
		{"digits too low", func(c *Config) { c.TOTP.Digits = 5 }},
		{"digits too high", func(c *Config) { c.TOTP.Digits = 11 }},
		{"zero period", func(c *Config) { c.TOTP.Period = 0 }},
		{"negative skew", func(c *Config) { c.TOTP.Skew = -1 }},
		{"excessive skew", func(c *Config) { c.TOTP.Skew = 3 }},
		{"bad algorithm", func(c *Config) { c.TOTP.Algorithm = "MD5" }},
		{"short sms code", func(c *Config) { c.ChannelOTP.SMSCodeLength = 4 }},
		{"short email code", func(c *Config) { c.ChannelOTP.EmailCodeLength = 4 }},
		{"zero sms expiry", func(c *Config) { c.ChannelOTP.SMSExpiry = 0 }},
		{"zero backup count", func(c *Config) { c.BackupCode.Count = 0 }},
		{"zero lockout attempts", func(c *Config) { c.Lockout.MaxAttempts = 0 }},
		{"zero lockout duration", func(c *Config) { c.Lockout.Duration = 0 }},
		{"zero ip attempts", func(c *Config) { c.IPRate.MaxAttempts = 0 }},
		{"zero ip window", func(c *Config) { c.IPRate.Window = 0 }},
		{"short token", func(c *Config) { c.Token.Length = 8 }},
		{"zero ring capacity", func(c *Config) { c.Audit.RingCapacity = 0 }},
		{"zero anomaly window", func(c *Config) { c.Audit.AnomalyWindow = 0 }},
		{"zero anomaly thresholds", func(c *Config) { c.Audit.AnomalyIPFailures = 0 }},
		{"short signing key", func(c *Config) { c.Receipt.SigningKey = []byte("too-short") }},
		{"signing key without ttl", func(c *Config) {
			c.Receipt.SigningKey = []byte("0123456789abcdef0123456789abcdef")
			c.Receipt.TTL = 0
		}},
		{"negative throttle", func(c *Config) { c.Throttle.VerifyPerSecond = -1 }},
	}

	for _, tc := range cases {
		cfg := defaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := defaultConfig()

	if cfg.TOTP.Digits != 6 || cfg.TOTP.Period != 30 || cfg.TOTP.Skew != 1 {
		t.Fatalf("unexpected TOTP defaults %+v", cfg.TOTP)
	}
	if cfg.ChannelOTP.SMSCodeLength != 6 || cfg.ChannelOTP.SMSExpiry != 5*time.Minute {
		t.Fatalf("unexpected SMS defaults %+v", cfg.ChannelOTP)
	}
	if cfg.ChannelOTP.EmailCodeLength != 8 || cfg.ChannelOTP.EmailExpiry != 10*time.Minute {
		t.Fatalf("unexpected email defaults %+v", cfg.ChannelOTP)
	}
	if cfg.Lockout.MaxAttempts != 5 || cfg.Lockout.Duration != 15*time.Minute {
		t.Fatalf("unexpected lockout defaults %+v", cfg.Lockout)
	}
	if cfg.IPRate.MaxAttempts != 20 || cfg.IPRate.Window != time.Hour {
		t.Fatalf("unexpected IP rate defaults %+v", cfg.IPRate)
	}
	if cfg.BackupCode.Count != 10 {
		t.Fatalf("unexpected backup count %d", cfg.BackupCode.Count)
	}
	if cfg.Audit.RingCapacity != 10000 {
		t.Fatalf("unexpected ring capacity %d", cfg.Audit.RingCapacity)
	}
}

func TestCloneConfigCopiesSigningKey(t *testing.T) {
	cfg := defaultConfig()
	cfg.Receipt.SigningKey = []byte("0123456789abcdef0123456789abcdef")

	clone := cloneConfig(cfg)
	clone.Receipt.SigningKey[0] = 'X'
	if cfg.Receipt.SigningKey[0] == 'X' {
		t.Fatal("clone must not share the signing key backing array")
	}
}
