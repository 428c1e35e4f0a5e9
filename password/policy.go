package password

import (
	"crypto/rand"
	"math"
	"math/big"
	"regexp"
	"strings"
)

// Strength grades a candidate password. Score runs 0 (very weak) to 4
// (very strong); Valid means the password clears the acceptance floor,
// not that Feedback is empty.
type Strength struct {
	Score    int
	Feedback []string
	Valid    bool
}

const (
	minLength    = 12
	strongLength = 16
	symbolSet    = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

var commonPasswords = map[string]struct{}{
	"password": {}, "123456": {}, "password123": {}, "admin": {}, "12345678": {},
	"qwerty": {}, "123456789": {}, "letmein": {}, "1234567890": {}, "football": {},
	"iloveyou": {}, "admin123": {}, "welcome": {}, "monkey": {}, "login": {},
	"abc123": {}, "starwars": {}, "123123": {}, "dragon": {}, "passw0rd": {},
	"master": {}, "hello": {}, "freedom": {}, "whatever": {}, "qazwsx": {},
	"trustno1": {}, "654321": {}, "jordan23": {}, "harley": {}, "password1": {},
	"1234": {}, "robert": {}, "matthew": {}, "jordan": {}, "michelle": {},
	"mindy": {}, "patrick": {}, "123abc": {}, "andrew": {}, "joshua": {},
	"1qaz2wsx": {}, "qwertyuiop": {}, "superman": {}, "computer": {},
}

var commonWords = []string{"password", "admin", "user", "login", "welcome", "hello", "world"}

var sequentialPattern = regexp.MustCompile(`(?i)123|abc|qwe|asd|zxc`)

// CheckStrength grades a candidate against the acceptance policy:
// at least 12 characters, at least 3 of the 4 character classes, not a
// known common password, and an overall score of 2 or better.
func CheckStrength(candidate string) Strength {
	var feedback []string
	score := 0

	if len(candidate) < minLength {
		feedback = append(feedback, "password should be at least 12 characters long")
	} else if len(candidate) >= strongLength {
		score++
	}

	variety := classCount(candidate)
	if variety < 3 {
		feedback = append(feedback, "password should include uppercase, lowercase, numbers, and symbols")
	} else if variety == 4 {
		score++
	}

	_, common := commonPasswords[strings.ToLower(candidate)]
	if common {
		feedback = append(feedback, "this password is too common and easily guessed")
		score -= 2
		if score < 0 {
			score = 0
		}
	}

	repeated := hasRepeatedRun(candidate, 3)
	if repeated {
		feedback = append(feedback, "avoid repeating characters")
	}
	if sequentialPattern.MatchString(candidate) {
		feedback = append(feedback, "avoid sequential characters")
	}

	lower := strings.ToLower(candidate)
	for _, word := range commonWords {
		if strings.Contains(lower, word) {
			feedback = append(feedback, "avoid common words in passwords")
			break
		}
	}

	if len(candidate) >= minLength && variety >= 3 && !common {
		score++
	}
	if len(candidate) >= strongLength && variety == 4 && !repeated {
		score++
	}
	if entropyBits(candidate) > 60 {
		score++
	}

	if score > 4 {
		score = 4
	}

	return Strength{
		Score:    score,
		Feedback: feedback,
		Valid:    score >= 2 && len(candidate) >= minLength && variety >= 3 && !common,
	}
}

// Generate returns a random password of the given length guaranteed to
// contain all four character classes. Lengths below 16 are raised to 16.
func Generate(length int) (string, error) {
	if length < strongLength {
		length = strongLength
	}

	const (
		lowercase = "abcdefghijklmnopqrstuvwxyz"
		uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
		digits    = "0123456789"
	)
	all := lowercase + uppercase + digits + symbolSet

	out := make([]byte, length)
	classes := []string{lowercase, uppercase, digits, symbolSet}
	for i := range out {
		source := all
		if i < len(classes) {
			source = classes[i]
		}
		c, err := randomIndex(len(source))
		if err != nil {
			return "", err
		}
		out[i] = source[c]
	}

	// Shuffle so the guaranteed-class characters are not positional.
	for i := len(out) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

func classCount(s string) int {
	var lower, upper, digit, symbol bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(symbolSet, r):
			symbol = true
		}
	}
	n := 0
	for _, ok := range []bool{lower, upper, digit, symbol} {
		if ok {
			n++
		}
	}
	return n
}

func hasRepeatedRun(s string, runLen int) bool {
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run >= runLen {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func entropyBits(s string) float64 {
	var size float64
	var lower, upper, digit, symbol bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(symbolSet, r):
			symbol = true
		}
	}
	if lower {
		size += 26
	}
	if upper {
		size += 26
	}
	if digit {
		size += 10
	}
	if symbol {
		size += 32
	}
	if size == 0 {
		return 0
	}
	return float64(len(s)) * math.Log2(size)
}
