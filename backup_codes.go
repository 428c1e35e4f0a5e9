package authcore

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

// Backup codes are rendered XXXX-XXXX from A-Z0-9 with the visually
// ambiguous characters 0, O, 1, I, L remapped so a code read off paper
// types back unambiguously.
var backupCodePattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}$`)

const (
	backupCodeRawLength = 8
	backupCodeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	ambiguousChars      = "0O1IL"
)

func newBackupCode() (string, error) {
	var b strings.Builder
	b.Grow(backupCodeRawLength)

	size := big.NewInt(int64(len(backupCodeAlphabet)))
	for i := 0; i < backupCodeRawLength; i++ {
		v, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b.WriteByte(backupCodeAlphabet[v.Int64()])
	}

	code := strings.Map(func(r rune) rune {
		if strings.ContainsRune(ambiguousChars, r) {
			return '9'
		}
		return r
	}, b.String())

	return code[:4] + "-" + code[4:], nil
}

func generateBackupCodes(count int) ([]BackupCode, error) {
	codes := make([]BackupCode, 0, count)
	for i := 0; i < count; i++ {
		code, err := newBackupCode()
		if err != nil {
			return nil, err
		}
		codes = append(codes, BackupCode{Code: code})
	}
	return codes, nil
}

// FormatBackupCode canonicalizes user input to the XXXX-XXXX form:
// uppercase, whitespace stripped, hyphen inserted if omitted.
func FormatBackupCode(code string) string {
	out := strings.ToUpper(strings.TrimSpace(code))
	out = strings.ReplaceAll(out, " ", "")
	if len(out) == backupCodeRawLength && !strings.Contains(out, "-") {
		out = out[:4] + "-" + out[4:]
	}
	return out
}

// verifyBackupCode scans the set for an unused code matching the
// submission and returns its index. Every unused code is compared so the
// scan cost does not reveal which position matched.
func verifyBackupCode(submitted string, codes []BackupCode) (int, bool) {
	canonical := FormatBackupCode(submitted)
	if !backupCodePattern.MatchString(canonical) {
		return -1, false
	}

	match := -1
	for i := range codes {
		if codes[i].Used {
			continue
		}
		if ConstantTimeEqualString(canonical, codes[i].Code) && match < 0 {
			match = i
		}
	}
	return match, match >= 0
}

func allBackupCodesUsed(codes []BackupCode) bool {
	if len(codes) == 0 {
		return true
	}
	for i := range codes {
		if !codes[i].Used {
			return false
		}
	}
	return true
}
