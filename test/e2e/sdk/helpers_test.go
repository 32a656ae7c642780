package sdk_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keylineid/keyline-go/pkg/keyline"
	"github.com/keylineid/keyline-go/pkg/keylinetest"
	"github.com/keylineid/keyline-go/pkg/slogx"
)

/*
 * Common constants and helpers for SDK end-to-end tests. Each test runs the
 * SDK against an in-process identity provider, so the scenarios exercise the
 * full HTTP round trip without external services.
 */

const (
	appClientID  = "demo-app"
	appRedirect  = "https://demo.keyline.test/callback"
	userEmail    = "journey@example.com"
	userPassword = "JourneyPass123!"
	userName     = "Journey Tester"
)

// newProvider starts an identity provider with the demo OAuth client
// registered.
func newProvider(t *testing.T, opts ...keylinetest.Option) *keylinetest.Server {
	t.Helper()

	srv := keylinetest.New(opts...)
	t.Cleanup(srv.Close)
	srv.SeedClient(appClientID, "", appRedirect)
	return srv
}

// newClient builds an SDK client for srv with logging silenced.
func newClient(t *testing.T, srv *keylinetest.Server) *keyline.Client {
	t.Helper()

	cfg := srv.ClientConfig()
	cfg.ClientID = appClientID
	cfg.RedirectURI = appRedirect

	c, err := keyline.New(cfg, keyline.WithLogger(slogx.Discard()))
	require.NoError(t, err)
	return c
}

// approveAuthorization plays the user's browser: it visits authURL with the
// user's bearer token and returns the callback URL the provider redirected
// to, without following it.
func approveAuthorization(t *testing.T, authURL, bearer string) string {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, authURL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bearer)

	agent := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := agent.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.NotEmpty(t, location)
	return location
}

// mustLogin signs the client in and fails the test on any outcome other
// than a clean token.
func mustLogin(t *testing.T, c *keyline.Client, email, password string) {
	t.Helper()

	result, err := c.Login(context.Background(), email, password)
	require.NoError(t, err)
	require.False(t, result.MFARequired)
	require.True(t, c.IsAuthenticated())
}
