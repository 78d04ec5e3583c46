package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// CodeLength is fixed by the verification flow and its clients.
const CodeLength = 6

var codeSpace = big.NewInt(1000000)

// GenerateCode returns a uniformly distributed 6-digit numeric code.
// Leading zeros are preserved; the code is a string end to end.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ValidFormat reports whether a candidate looks like a 6-digit code.
// Used for request validation before any store lookup.
func ValidFormat(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// FormatForDisplay groups the code for delivery messages, e.g. "123 456".
func FormatForDisplay(code string) string {
	if len(code) != CodeLength {
		return code
	}
	return strings.Join([]string{code[:3], code[3:]}, " ")
}
