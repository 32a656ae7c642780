package sdk_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keylineid/keyline-go/pkg/keyline"
	"github.com/keylineid/keyline-go/pkg/keylinetest"
)

// TestMFAJourney enrolls TOTP, logs in through the challenge, burns a backup
// code, and disables MFA again, all through the SDK surface.
func TestMFAJourney(t *testing.T) {
	srv := newProvider(t)
	ctx := t.Context()

	user := srv.SeedUser(userEmail, userPassword, userName)
	c := newClient(t, srv)
	mustLogin(t, c, user.Email, user.Password)

	// Enroll and activate.
	enrollment, err := c.EnrollTOTP(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	t.Logf("TOTP enrollment started for %s", enrollment.Account)

	backup, err := c.ActivateTOTP(ctx, keylinetest.TOTPCode(enrollment.Secret))
	require.NoError(t, err)
	require.Len(t, backup.Codes, 10)
	t.Logf("MFA active, received %d backup codes", len(backup.Codes))

	// A fresh login now requires the second factor.
	phone := newClient(t, srv)
	result, err := phone.Login(ctx, user.Email, user.Password)
	require.NoError(t, err)
	require.True(t, result.MFARequired)
	require.Contains(t, result.Methods, "totp")
	require.Contains(t, result.Methods, "backup_code")
	require.False(t, phone.IsAuthenticated(), "no token until the challenge is complete")

	completed, err := phone.CompleteMFAChallenge(ctx, result.MFAToken.Value(), keylinetest.TOTPCode(enrollment.Secret))
	require.NoError(t, err)
	require.False(t, completed.Token.IsEmpty())
	require.True(t, phone.IsAuthenticated())
	t.Log("challenge completed with a TOTP code")

	// Backup codes work exactly once.
	tablet := newClient(t, srv)
	result, err = tablet.Login(ctx, user.Email, user.Password)
	require.NoError(t, err)
	_, err = tablet.CompleteMFAChallenge(ctx, result.MFAToken.Value(), backup.Codes[0])
	require.NoError(t, err)
	t.Log("challenge completed with a backup code")

	tv := newClient(t, srv)
	result, err = tv.Login(ctx, user.Email, user.Password)
	require.NoError(t, err)
	_, err = tv.CompleteMFAChallenge(ctx, result.MFAToken.Value(), backup.Codes[0])
	var sdkErr *keyline.Error
	require.ErrorAs(t, err, &sdkErr)
	require.Equal(t, "InvalidMFACode", sdkErr.Kind)
	t.Log("spent backup code refused")

	// Disable: logins are single factor again.
	require.NoError(t, c.DisableTOTP(ctx, keylinetest.TOTPCode(enrollment.Secret)))
	mustLogin(t, newClient(t, srv), user.Email, user.Password)
	t.Log("MFA disabled, password login restored")
}
