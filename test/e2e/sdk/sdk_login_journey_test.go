package sdk_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keylineid/keyline-go/pkg/keyline"
)

// TestAccountJourney walks a user from registration through multi-device
// session management to logout, entirely through the SDK.
func TestAccountJourney(t *testing.T) {
	srv := newProvider(t)
	ctx := t.Context()

	laptop := newClient(t, srv)

	// Register. The account exists but nobody is logged in yet.
	user, err := laptop.Register(ctx, keyline.RegisterRequest{
		Email:    userEmail,
		Password: userPassword,
		Name:     userName,
	})
	require.NoError(t, err)
	require.Equal(t, userEmail, user.Email)
	require.False(t, laptop.IsAuthenticated())
	t.Logf("registered account %s", user.ID)

	// Re-registering the same address is refused.
	_, err = laptop.Register(ctx, keyline.RegisterRequest{Email: userEmail, Password: userPassword})
	var sdkErr *keyline.Error
	require.ErrorAs(t, err, &sdkErr)
	require.Equal(t, http.StatusConflict, sdkErr.StatusCode)

	// Log in on two devices.
	mustLogin(t, laptop, userEmail, userPassword)
	phone := newClient(t, srv)
	mustLogin(t, phone, userEmail, userPassword)
	t.Log("logged in on laptop and phone")

	me, err := laptop.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, userName, me.Name)

	// Both sessions are visible from either device; each marks itself as
	// current.
	sessions, err := laptop.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	var current, other *keyline.Session
	for i := range sessions {
		if sessions[i].Current {
			current = &sessions[i]
		} else {
			other = &sessions[i]
		}
	}
	require.NotNil(t, current)
	require.NotNil(t, other)

	// The laptop kills the phone's session.
	require.NoError(t, laptop.RevokeSession(ctx, other.ID))
	t.Logf("revoked session %s", other.ID)

	check, err := phone.CheckSession(ctx)
	require.NoError(t, err)
	require.False(t, check.Valid, "a revoked session reports invalid, not an error")

	_, err = phone.Me(ctx)
	require.ErrorAs(t, err, &sdkErr)
	require.Equal(t, http.StatusUnauthorized, sdkErr.StatusCode)

	// Logout clears the laptop's token and session.
	require.NoError(t, laptop.Logout(ctx))
	require.False(t, laptop.IsAuthenticated())

	check, err = laptop.CheckSession(ctx)
	require.NoError(t, err)
	require.False(t, check.Valid)
	t.Log("journey complete: registered, multi-device, revoked, logged out")
}
