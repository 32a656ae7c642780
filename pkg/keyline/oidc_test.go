package keyline_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keylineid/keyline-go/pkg/jwtx"
	"github.com/keylineid/keyline-go/pkg/keyline"
	"github.com/keylineid/keyline-go/pkg/keylinetest"
)

// exchangeIDToken runs a code exchange for user and returns the raw ID token.
func exchangeIDToken(t *testing.T, srv *keylinetest.Server, c *keyline.Client, userID, nonce string) string {
	t.Helper()

	code := srv.MintAuthorizationCode(keylinetest.CodeOptions{
		ClientID:    "c1",
		RedirectURI: callbackURI,
		UserID:      userID,
		Scope:       "openid email",
		Nonce:       nonce,
	})
	tokens, err := c.OAuth().ExchangeCodeForToken(context.Background(), keyline.ExchangeRequest{
		Code: code, ClientID: "c1", RedirectURI: callbackURI,
	})
	require.NoError(t, err)
	require.False(t, tokens.IDToken.IsEmpty())
	return tokens.IDToken.Value()
}

func TestVerifyIDToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("accepts a genuine token and returns its claims", func(t *testing.T) {
		srv := keylinetest.New()
		t.Cleanup(srv.Close)
		srv.SeedClient("c1", "", callbackURI)
		user := srv.SeedUser("mallory@example.com", "correct-horse-10", "Mallory")

		c := newTestClient(t, srv)
		raw := exchangeIDToken(t, srv, c, user.ID, "n-123")

		claims, err := c.VerifyIDToken(ctx, raw, keyline.VerifyOptions{ClientID: "c1", Nonce: "n-123"})
		require.NoError(t, err)
		require.Equal(t, user.ID, claims.Subject)
		require.Equal(t, user.Email, claims.Email)
		require.Equal(t, "n-123", claims.Nonce)
		require.NotEmpty(t, claims.SID, "tokens carry their session binding")
	})

	t.Run("rejects a replayed nonce", func(t *testing.T) {
		srv := keylinetest.New()
		t.Cleanup(srv.Close)
		srv.SeedClient("c1", "", callbackURI)
		user := srv.SeedUser("nick@example.com", "correct-horse-11", "Nick")

		c := newTestClient(t, srv)
		raw := exchangeIDToken(t, srv, c, user.ID, "n-123")

		_, err := c.VerifyIDToken(ctx, raw, keyline.VerifyOptions{ClientID: "c1", Nonce: "n-456"})
		require.ErrorIs(t, err, keyline.ErrNonceMismatch)
	})

	t.Run("rejects a token minted for another client", func(t *testing.T) {
		srv := keylinetest.New()
		t.Cleanup(srv.Close)
		srv.SeedClient("c1", "", callbackURI)
		user := srv.SeedUser("olga@example.com", "correct-horse-12", "Olga")

		c := newTestClient(t, srv)
		raw := exchangeIDToken(t, srv, c, user.ID, "")

		_, err := c.VerifyIDToken(ctx, raw, keyline.VerifyOptions{ClientID: "someone-else"})
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		srv := keylinetest.New(keylinetest.WithIDTokenTTL(-time.Minute))
		t.Cleanup(srv.Close)
		srv.SeedClient("c1", "", callbackURI)
		user := srv.SeedUser("pat@example.com", "correct-horse-13", "Pat")

		c := newTestClient(t, srv)
		raw := exchangeIDToken(t, srv, c, user.ID, "")

		_, err := c.VerifyIDToken(ctx, raw, keyline.VerifyOptions{ClientID: "c1"})
		require.Error(t, err)
	})

	t.Run("caches verification keys across calls", func(t *testing.T) {
		srv := keylinetest.New()
		t.Cleanup(srv.Close)
		srv.SeedClient("c1", "", callbackURI)
		user := srv.SeedUser("quinn@example.com", "correct-horse-14", "Quinn")

		c := newTestClient(t, srv)
		raw := exchangeIDToken(t, srv, c, user.ID, "")

		for range 2 {
			_, err := c.VerifyIDToken(ctx, raw, keyline.VerifyOptions{ClientID: "c1"})
			require.NoError(t, err)
		}
		require.Equal(t, 1, srv.Requests("/.well-known/openid-configuration"))
		require.Equal(t, 1, srv.Requests("/.well-known/jwks.json"))
	})

	t.Run("an unknown signing key triggers one refetch", func(t *testing.T) {
		srv := keylinetest.New()
		t.Cleanup(srv.Close)
		srv.SeedClient("c1", "", callbackURI)
		user := srv.SeedUser("ruth@example.com", "correct-horse-15", "Ruth")

		// A token signed by a key the provider never published, under a kid
		// its JWKS does not list.
		_, key, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		rogue, err := jwtx.NewSignerEdDSAFromKey("rotated-1", key)
		require.NoError(t, err)
		claims := jwtx.NewIDClaims(
			user.ID, "", nil, time.Hour,
			srv.Issuer(), []string{"c1"},
			user.Email, user.Name, time.Now(),
		)
		raw, err := rogue.Sign(claims)
		require.NoError(t, err)

		c := newTestClient(t, srv)
		_, err = c.VerifyIDToken(ctx, raw, keyline.VerifyOptions{ClientID: "c1"})
		require.ErrorIs(t, err, jwtx.ErrNoKey)

		// First load plus the rotation refetch.
		require.Equal(t, 2, srv.Requests("/.well-known/openid-configuration"))
	})
}

func TestJWKS(t *testing.T) {
	t.Parallel()

	srv := keylinetest.New()
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv)

	jwks, err := c.JWKS(context.Background())
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
	require.Equal(t, "EdDSA", jwks.Keys[0].Alg)
}
