package authcore

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const totpSecretBytes = 20 // 160 bits, RFC 4226 §4 minimum

type totpManager struct {
	config TOTPConfig
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	return &totpManager{config: cfg}
}

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret returns a fresh random secret, base32-encoded for
// transcription into authenticator apps.
func (m *totpManager) GenerateSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSecretInvalid, err)
	}
	return b32.EncodeToString(raw), nil
}

// EnrollmentURI renders the otpauth:// URI consumed by authenticator apps
// during QR enrollment.
func (m *totpManager) EnrollmentURI(secretBase32, account string) string {
	issuer := m.config.Issuer
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", issuer)
	v.Set("algorithm", strings.ToUpper(m.config.Algorithm))
	v.Set("digits", strconv.Itoa(m.config.Digits))
	v.Set("period", strconv.Itoa(m.config.Period))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// Code computes the TOTP code for the secret at the given instant.
func (m *totpManager) Code(secretBase32 string, at time.Time) (string, error) {
	secret, err := decodeSecret(secretBase32)
	if err != nil {
		return "", err
	}
	return hotpCode(secret, at.Unix()/int64(m.config.Period), m.config.Digits, m.config.Algorithm)
}

// Verify checks a submitted code against the secret across the configured
// skew window. It fails closed: malformed secrets and malformed codes both
// yield false with no distinguishing detail.
func (m *totpManager) Verify(secretBase32, code string, now time.Time) bool {
	if m == nil {
		return false
	}

	trimmed := strings.TrimSpace(code)
	if len(trimmed) != m.config.Digits || !isDigits(trimmed) {
		return false
	}

	secret, err := decodeSecret(secretBase32)
	if err != nil {
		return false
	}

	matched := false
	baseCounter := now.Unix() / int64(m.config.Period)
	for step := -m.config.Skew; step <= m.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(secret, counter, m.config.Digits, m.config.Algorithm)
		if err != nil {
			return false
		}
		// Check every window even after a hit so the scan cost does not
		// depend on which offset matched.
		if ConstantTimeEqualString(generated, trimmed) {
			matched = true
		}
	}

	return matched
}

func decodeSecret(secretBase32 string) ([]byte, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(secretBase32, " ", ""))
	normalized = strings.TrimRight(normalized, "=")
	if normalized == "" {
		return nil, errors.New("empty secret")
	}
	return b32.DecodeString(normalized)
}

// hotpCode implements RFC 4226 §5.3: HMAC over the big-endian counter,
// dynamic truncation from the low nibble of the final byte, reduced
// modulo 10^digits.
func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// FormatTOTPCode renders a 6-digit code as "123 456" for display.
func FormatTOTPCode(code string) string {
	if len(code) != 6 {
		return code
	}
	return code[:3] + " " + code[3:]
}
