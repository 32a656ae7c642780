package securex

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratePKCEChallenge(t *testing.T) {
	t.Parallel()

	pkce, err := GeneratePKCEChallenge()
	require.NoError(t, err)
	require.NotNil(t, pkce)

	require.Equal(t, "S256", pkce.Method)
	require.NotEmpty(t, pkce.Verifier)
	require.NotEmpty(t, pkce.Challenge)

	// Challenge must be BASE64URL(SHA256(verifier)).
	hash := sha256.Sum256([]byte(pkce.Verifier))
	expected := base64.RawURLEncoding.EncodeToString(hash[:])
	require.Equal(t, expected, pkce.Challenge)
}

func TestGeneratePKCEChallenge_Uniqueness(t *testing.T) {
	t.Parallel()

	a, err := GeneratePKCEChallenge()
	require.NoError(t, err)

	b, err := GeneratePKCEChallenge()
	require.NoError(t, err)

	require.NotEqual(t, a.Verifier, b.Verifier)
	require.NotEqual(t, a.Challenge, b.Challenge)
}
