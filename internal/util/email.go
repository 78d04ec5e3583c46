package util

import "strings"

// NormalizeEmail lowercases and trims an email address. Every lookup and
// every stored email goes through this first.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SanitizeInput trims surrounding whitespace from a request field.
func SanitizeInput(s string) string {
	return strings.TrimSpace(s)
}
