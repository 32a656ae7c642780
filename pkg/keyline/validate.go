package keyline

import (
	"regexp"
	"strings"
)

// Client-side input guards. They exist to catch typos before a network round
// trip and to drive form UX; the identity service re-validates everything.
// None of them is a security boundary.

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// IsValidEmail reports whether s has the shape of an email address
// (local@domain.tld). Full RFC 5322 parsing is the server's job.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && len(s) <= 254 && emailRegex.MatchString(s)
}

// IsValidPassword reports whether the password length falls inside the
// service's accepted 8 to 128 byte range.
func IsValidPassword(s string) bool {
	return len(s) >= minPasswordLength && len(s) <= maxPasswordLength
}

// SanitizeInput trims surrounding whitespace and strips control characters
// from a free-text field such as a display name.
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 0x20 && r != 0x7f {
			b.WriteRune(r)
		}
	}
	return b.String()
}
