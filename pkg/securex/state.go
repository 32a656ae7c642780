package securex

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// stateBytes is the entropy drawn for each OAuth state value.
// 32 random bytes render to 64 hexadecimal characters.
const stateBytes = 32

// CsrfError reports a failed OAuth state validation: the callback either
// carried no state or carried one that differs from the value the caller
// issued before the redirect.
type CsrfError struct {
	Reason string
}

func (e *CsrfError) Error() string {
	return "state validation failed: " + e.Reason
}

// GenerateState returns an unpredictable OAuth state value as a 64-character
// hexadecimal string drawn from the platform CSPRNG.
func GenerateState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// MustGenerateState is like GenerateState but panics on error.
func MustGenerateState() string {
	state, err := GenerateState()
	if err != nil {
		panic(fmt.Sprintf("securex: failed to generate state: %v", err))
	}
	return state
}

// ValidateState compares the state returned on an authorization callback
// against the original value issued before the redirect. The comparison is
// exact and constant-time: no trimming, no case folding. A missing or
// mismatched value returns *CsrfError.
func ValidateState(received, original string) error {
	if received == "" {
		return &CsrfError{Reason: "state parameter missing from callback"}
	}
	if subtle.ConstantTimeCompare([]byte(received), []byte(original)) != 1 {
		return &CsrfError{Reason: "state parameter does not match the original value"}
	}
	return nil
}
