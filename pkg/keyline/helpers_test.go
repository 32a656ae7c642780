package keyline_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keylineid/keyline-go/pkg/keyline"
	"github.com/keylineid/keyline-go/pkg/keylinetest"
	"github.com/keylineid/keyline-go/pkg/slogx"
)

// callbackURI is the redirect target registered for test OAuth clients. It
// is never fetched; tests inspect the Location header instead.
const callbackURI = "https://app.keyline.test/callback"

// newTestClient builds an SDK client against the in-process provider with
// logging silenced.
func newTestClient(t *testing.T, srv *keylinetest.Server, opts ...keyline.Option) *keyline.Client {
	t.Helper()

	opts = append([]keyline.Option{keyline.WithLogger(slogx.Discard())}, opts...)
	c, err := keyline.New(srv.ClientConfig(), opts...)
	require.NoError(t, err)
	return c
}

// login authenticates the client and fails the test on anything but a clean
// token outcome.
func login(t *testing.T, c *keyline.Client, email, password string) *keyline.LoginResult {
	t.Helper()

	result, err := c.Login(context.Background(), email, password)
	require.NoError(t, err)
	require.False(t, result.MFARequired)
	require.False(t, result.Token.IsEmpty())
	return result
}

// followAuthorize plays the user's agent: it requests the authorization URL
// with the user's bearer token and returns the callback URL the provider
// redirected to.
func followAuthorize(t *testing.T, authURL, bearer string) string {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, authURL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bearer)

	hc := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := hc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc := resp.Header.Get("Location")
	require.NotEmpty(t, loc)
	return loc
}
