package sdk_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keylineid/keyline-go/pkg/keyline"
)

// TestAuthorizationCodeFlow runs the full browser dance: authorization URL
// with PKCE and a nonce, user approval, callback validation, code exchange,
// and ID-token verification.
func TestAuthorizationCodeFlow(t *testing.T) {
	srv := newProvider(t)
	ctx := t.Context()

	user := srv.SeedUser(userEmail, userPassword, userName)
	_, bearer := srv.IssueSession(user.ID)

	app := newClient(t, srv)
	flow := app.OAuth()

	pkce, err := keyline.GeneratePKCEChallenge()
	require.NoError(t, err)

	authURL, state, err := flow.BuildAuthorizationURL(keyline.AuthorizationRequest{
		Nonce: "e2e-nonce",
		PKCE:  pkce,
	})
	require.NoError(t, err)
	t.Logf("authorization URL built, state %s...", state[:8])

	callbackURL := approveAuthorization(t, authURL, bearer)
	t.Log("user approved; provider redirected to the app callback")

	tokens, err := flow.HandleCallback(ctx, callbackURL, keyline.CallbackOptions{
		OriginalState: state,
		CodeVerifier:  pkce.Verifier,
	})
	require.NoError(t, err)
	require.Equal(t, "Bearer", tokens.TokenType)
	require.True(t, app.IsAuthenticated(), "the exchange installs the access token")

	claims, err := app.VerifyIDToken(ctx, tokens.IDToken.Value(), keyline.VerifyOptions{Nonce: "e2e-nonce"})
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
	require.Equal(t, userEmail, claims.Email)
	t.Logf("ID token verified for subject %s", claims.Subject)

	me, err := app.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, userEmail, me.Email)
}

// TestCallbackForgeryIsRejected plays an attacker who lures the victim's
// browser into delivering a genuine authorization code under the attacker's
// state. The state check must refuse to spend the code.
func TestCallbackForgeryIsRejected(t *testing.T) {
	srv := newProvider(t)
	ctx := t.Context()

	user := srv.SeedUser(userEmail, userPassword, userName)
	_, bearer := srv.IssueSession(user.ID)

	app := newClient(t, srv)
	flow := app.OAuth()

	// The attacker starts their own flow and captures a real callback URL.
	attackerURL, _, err := flow.BuildAuthorizationURL(keyline.AuthorizationRequest{
		State: "attacker-chosen-state",
	})
	require.NoError(t, err)
	forgedCallback := approveAuthorization(t, attackerURL, bearer)

	// The victim's app holds a different original state.
	_, err = flow.HandleCallback(ctx, forgedCallback, keyline.CallbackOptions{
		OriginalState: "victim-original-state",
	})

	var csrfErr *keyline.CsrfError
	require.ErrorAs(t, err, &csrfErr)
	require.Zero(t, srv.Requests("/oauth/token"), "the forged code never reaches the token endpoint")
	require.False(t, app.IsAuthenticated())
	t.Log("forged callback rejected before any exchange")
}

// TestRefreshRotation verifies that refresh tokens are single use and that
// reusing a spent one fails.
func TestRefreshRotation(t *testing.T) {
	srv := newProvider(t)
	ctx := t.Context()

	user := srv.SeedUser(userEmail, userPassword, userName)
	_, bearer := srv.IssueSession(user.ID)

	app := newClient(t, srv)
	flow := app.OAuth()

	authURL, state, err := flow.BuildAuthorizationURL(keyline.AuthorizationRequest{})
	require.NoError(t, err)
	first, err := flow.HandleCallback(ctx, approveAuthorization(t, authURL, bearer), keyline.CallbackOptions{
		OriginalState: state,
	})
	require.NoError(t, err)

	second, err := flow.RefreshToken(ctx, first.RefreshToken.Value(), "")
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken.Value(), second.RefreshToken.Value())
	require.Equal(t, second.AccessToken.Value(), app.Token(), "the refreshed access token is installed")
	t.Log("refresh rotated the token pair")

	_, err = flow.RefreshToken(ctx, first.RefreshToken.Value(), "")
	var sdkErr *keyline.Error
	require.ErrorAs(t, err, &sdkErr)
	require.Equal(t, "invalid_grant", sdkErr.Kind)
	t.Log("spent refresh token refused")

	// The rotated pair still belongs to the original session.
	sessions, err := app.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}
