package authcore

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"
)

const emailCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type channelOTPManager struct {
	config ChannelOTPConfig
}

func newChannelOTPManager(cfg ChannelOTPConfig) *channelOTPManager {
	return &channelOTPManager{config: cfg}
}

// Generate mints a fresh code for the channel: numeric for SMS,
// uppercase alphanumeric for email.
func (m *channelOTPManager) Generate(channel Channel, now time.Time) (OneTimeCode, error) {
	var code string
	var ttl time.Duration
	var err error

	switch channel {
	case ChannelEmail:
		code, err = randomFromAlphabet(emailCodeAlphabet, m.config.EmailCodeLength)
		ttl = m.config.EmailExpiry
	default:
		code, err = randomDigits(m.config.SMSCodeLength)
		ttl = m.config.SMSExpiry
	}
	if err != nil {
		return OneTimeCode{}, err
	}

	return OneTimeCode{
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Channel:   channel,
	}, nil
}

// Verify checks a submitted code against an issued one. Expiry is checked
// first; both sides are then normalized and compared in constant time.
// A failed attempt does not invalidate the code; retry pressure is
// bounded by the lockout guard, not by single-shot consumption.
func (m *channelOTPManager) Verify(submitted string, code OneTimeCode, now time.Time) bool {
	if code.Expired(now) {
		return false
	}

	provided := normalizeChannelCode(submitted, code.Channel)
	expected := normalizeChannelCode(code.Code, code.Channel)

	wantLen := m.config.SMSCodeLength
	if code.Channel == ChannelEmail {
		wantLen = m.config.EmailCodeLength
	}
	if len(provided) != wantLen || len(expected) != wantLen {
		return false
	}

	return ConstantTimeEqualString(provided, expected)
}

func normalizeChannelCode(code string, channel Channel) string {
	out := strings.TrimSpace(code)
	out = strings.ReplaceAll(out, " ", "")
	out = strings.ReplaceAll(out, "\t", "")
	if channel == ChannelEmail {
		out = strings.ToUpper(out)
	}
	return out
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)

	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + v.Int64()))
	}
	return b.String(), nil
}

func randomFromAlphabet(alphabet string, n int) (string, error) {
	var b strings.Builder
	b.Grow(n)

	size := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[v.Int64()])
	}
	return b.String(), nil
}
