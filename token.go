package authcore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// UnknownIP is the sentinel returned when no well-formed client address
// can be extracted from a request.
const UnknownIP = "unknown"

// proxyIPHeaders is the fixed precedence order for client-IP extraction.
// Each candidate must parse as an IPv4/IPv6 literal before it is trusted.
var proxyIPHeaders = []string{
	"Cf-Connecting-Ip", // Cloudflare
	"X-Real-Ip",        // nginx
	"X-Forwarded-For",  // standard proxy header
	"X-Client-Ip",
	"X-Forwarded",
	"Forwarded-For",
	"Forwarded",
}

// GenerateToken returns n cryptographically random bytes, hex-encoded.
// Used for CSRF tokens and generic secure tokens.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		n = 32
	}
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSecretInvalid, err)
	}
	return hex.EncodeToString(raw), nil
}

// ValidateToken compares a submitted token against the expected value.
// The length check is structural, not content-based, so it is allowed to
// short-circuit; the content comparison is constant-time.
func ValidateToken(submitted, expected string) bool {
	if submitted == "" || expected == "" || len(submitted) != len(expected) {
		return false
	}
	return ConstantTimeEqualString(submitted, expected)
}

// Fingerprint derives a stable hash of the client-identifying request
// attributes. It detects a session token replayed from a different client
// profile; it is not an identity proof, since every input is spoofable.
func Fingerprint(c Client) string {
	ip := c.IP
	if ip == "" || net.ParseIP(ip) == nil {
		ip = UnknownIP
	}
	material := ip + ":" + c.UserAgent + ":" + c.AcceptLanguage + ":" + c.AcceptEncoding
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

// ValidateFingerprint recomputes the fingerprint for the client and
// compares it against the stored one in constant time.
func ValidateFingerprint(c Client, stored string) bool {
	current := Fingerprint(c)
	if len(current) != len(stored) {
		return false
	}
	return ConstantTimeEqualString(current, stored)
}

// ClientIP extracts the client address from proxy headers in fixed
// precedence order, falling back to the transport remote address, then to
// UnknownIP. Comma-joined header values contribute their first entry.
func ClientIP(header http.Header, remoteAddr string) string {
	for _, name := range proxyIPHeaders {
		value := header.Get(name)
		if value == "" {
			continue
		}
		candidate := strings.TrimSpace(strings.SplitN(value, ",", 2)[0])
		if net.ParseIP(candidate) != nil {
			return candidate
		}
	}

	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(remoteAddr) != nil {
		return remoteAddr
	}

	return UnknownIP
}

// ClientFromRequest captures the fingerprint and audit inputs from an
// incoming HTTP request.
func ClientFromRequest(r *http.Request) Client {
	if r == nil {
		return Client{IP: UnknownIP}
	}
	return Client{
		IP:             ClientIP(r.Header, r.RemoteAddr),
		UserAgent:      r.Header.Get("User-Agent"),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
	}
}
