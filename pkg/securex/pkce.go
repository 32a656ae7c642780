package securex

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// PKCEChallenge holds the PKCE verifier and challenge pair.
// The verifier stays with the client; the challenge travels to the
// authorization endpoint.
type PKCEChallenge struct {
	// Verifier is the high-entropy random string kept secret by the client.
	Verifier string

	// Challenge is the base64url-encoded SHA-256 hash of the verifier.
	Challenge string

	// Method is always "S256".
	Method string
}

// GeneratePKCEChallenge creates a new PKCE code verifier and challenge pair
// per RFC 7636, using 256 bits of entropy and S256 hashing.
func GeneratePKCEChallenge() (*PKCEChallenge, error) {
	verifier, err := GenerateToken(TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}

	hash := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(hash[:])

	return &PKCEChallenge{
		Verifier:  verifier,
		Challenge: challenge,
		Method:    "S256",
	}, nil
}
