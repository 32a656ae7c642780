package httpx_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/keylineid/keyline-go/pkg/httpx"
	"github.com/keylineid/keyline-go/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://id.keyline.test"
	testAudience = "keyline-sdk"
)

func newTestVerifier(t *testing.T) (jwtx.Signer, jwtx.Verifier) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := jwtx.NewSignerEdDSAFromKey("test-key", priv)
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	return signer, jwtx.NewCommonEdDSA(keys, testIssuer, []string{testAudience})
}

func mintToken(t *testing.T, signer jwtx.Signer, scope string, ttl time.Duration) string {
	t.Helper()

	claims := jwtx.NewIDClaims(
		"usr_1", "ses_1",
		[]string{"pwd"},
		ttl,
		testIssuer,
		[]string{testAudience},
		"alice@example.com", "Alice",
		time.Now(),
	)
	claims.Scope = scope

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	return token
}

func TestAuthnMiddleware(t *testing.T) {
	t.Parallel()

	signer, verifier := newTestVerifier(t)

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"user_id":    httpx.UserID(r.Context()),
			"session_id": httpx.SessionID(r.Context()),
		})
	})
	protected := httpx.Chain(echo, httpx.AuthnMiddleware(verifier))

	t.Run("valid token injects identity", func(t *testing.T) {
		token := mintToken(t, signer, "openid profile email", time.Minute)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"user_id":"usr_1"`)
		require.Contains(t, rec.Body.String(), `"session_id":"ses_1"`)
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
		require.Contains(t, rec.Body.String(), `"error":"Unauthorized"`)
	})

	t.Run("wrong scheme is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token := mintToken(t, signer, "openid", -time.Minute)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireAnyScope(t *testing.T) {
	t.Parallel()

	signer, verifier := newTestVerifier(t)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := httpx.Chain(ok,
		httpx.AuthnMiddleware(verifier),
		httpx.RequireAnyScope("openid"),
	)

	t.Run("granted scope passes", func(t *testing.T) {
		token := mintToken(t, signer, "openid profile", time.Minute)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing scope is forbidden", func(t *testing.T) {
		token := mintToken(t, signer, "api:reports", time.Minute)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "insufficient_scope")
		require.Contains(t, rec.Body.String(), `"error":"InsufficientScope"`)
	})

	t.Run("empty scope claim is forbidden", func(t *testing.T) {
		token := mintToken(t, signer, "", time.Minute)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	record := func(name string, trail *[]string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				*trail = append(*trail, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	var trail []string
	h := httpx.Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trail = append(trail, "handler")
		}),
		record("outer", &trail),
		record("inner", &trail),
	)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, trail)
}
