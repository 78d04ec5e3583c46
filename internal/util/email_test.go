package util

import "testing"

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Admin@Gmail.COM", "admin@gmail.com"},
		{"  user@example.com  ", "user@example.com"},
		{"already@lower.case", "already@lower.case"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := SanitizeInput("  hello "); got != "hello" {
		t.Errorf("SanitizeInput = %q, want hello", got)
	}
}
