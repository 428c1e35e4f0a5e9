package authcore

import "crypto/subtle"

// ConstantTimeEqual reports whether a and b hold the same bytes without
// leaking the position of the first difference through execution time.
// When the lengths differ the comparison still runs over buffers padded
// to the longer length, so a length mismatch costs the same as a content
// mismatch.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) == len(b) {
		return subtle.ConstantTimeCompare(a, b) == 1
	}

	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	pa := make([]byte, n)
	pb := make([]byte, n)
	copy(pa, a)
	copy(pb, b)
	subtle.ConstantTimeCompare(pa, pb)
	return false
}

// ConstantTimeEqualString is ConstantTimeEqual over string operands.
func ConstantTimeEqualString(a, b string) bool {
	return ConstantTimeEqual([]byte(a), []byte(b))
}
