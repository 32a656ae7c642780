package keyline_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keylineid/keyline-go/pkg/keyline"
	"github.com/keylineid/keyline-go/pkg/keylinetest"
)

// TestMFALifecycle walks the whole second-factor journey: enroll, activate,
// log in through a challenge, burn a backup code, regenerate the set, and
// finally disable MFA again.
func TestMFALifecycle(t *testing.T) {
	t.Parallel()

	srv := keylinetest.New()
	t.Cleanup(srv.Close)

	ctx := context.Background()
	user := srv.SeedUser("erin@example.com", "correct-horse-6", "Erin")

	c := newTestClient(t, srv)
	login(t, c, user.Email, user.Password)

	// Enroll: provisioning material comes back, MFA is not active yet.
	enrollment, err := c.EnrollTOTP(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	require.True(t, strings.HasPrefix(enrollment.OTPAuthURL, "otpauth://totp/"))
	require.Contains(t, enrollment.OTPAuthURL, "Keyline")
	require.Equal(t, "Keyline", enrollment.Issuer)
	require.Equal(t, user.Email, enrollment.Account)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	require.False(t, me.MFAEnabled, "enrollment alone must not activate MFA")

	// A wrong code cannot activate the enrollment.
	_, err = c.ActivateTOTP(ctx, wrongTOTPCode(enrollment.Secret))
	var sdkErr *keyline.Error
	require.ErrorAs(t, err, &sdkErr)
	require.Equal(t, "InvalidMFACode", sdkErr.Kind)

	// Activate with a real code; backup codes are handed out exactly once.
	backup, err := c.ActivateTOTP(ctx, keylinetest.TOTPCode(enrollment.Secret))
	require.NoError(t, err)
	require.Len(t, backup.Codes, 10)
	require.Len(t, uniqueStrings(backup.Codes), 10)

	me, err = c.Me(ctx)
	require.NoError(t, err)
	require.True(t, me.MFAEnabled)

	// Fresh logins now demand the second factor.
	second := newTestClient(t, srv)
	result, err := second.Login(ctx, user.Email, user.Password)
	require.NoError(t, err)
	require.True(t, result.MFARequired)
	require.Contains(t, result.Methods, "backup_code")

	// A backup code completes the challenge...
	_, err = second.CompleteMFAChallenge(ctx, result.MFAToken.Value(), backup.Codes[0])
	require.NoError(t, err)
	require.True(t, second.IsAuthenticated())

	// ...but only once.
	third := newTestClient(t, srv)
	result, err = third.Login(ctx, user.Email, user.Password)
	require.NoError(t, err)
	_, err = third.CompleteMFAChallenge(ctx, result.MFAToken.Value(), backup.Codes[0])
	require.ErrorAs(t, err, &sdkErr)
	require.Equal(t, "InvalidMFACode", sdkErr.Kind)

	_, err = third.CompleteMFAChallenge(ctx, result.MFAToken.Value(), backup.Codes[1])
	require.NoError(t, err)

	// Regenerating invalidates every remaining old code.
	fresh, err := c.RegenerateBackupCodes(ctx, keylinetest.TOTPCode(enrollment.Secret))
	require.NoError(t, err)
	require.Len(t, fresh.Codes, 10)
	require.NotContains(t, fresh.Codes, backup.Codes[2])

	fourth := newTestClient(t, srv)
	result, err = fourth.Login(ctx, user.Email, user.Password)
	require.NoError(t, err)
	_, err = fourth.CompleteMFAChallenge(ctx, result.MFAToken.Value(), backup.Codes[2])
	require.ErrorAs(t, err, &sdkErr)
	require.Equal(t, "InvalidMFACode", sdkErr.Kind)

	_, err = fourth.CompleteMFAChallenge(ctx, result.MFAToken.Value(), fresh.Codes[0])
	require.NoError(t, err)

	// Disable: logins return to single-factor.
	require.NoError(t, c.DisableTOTP(ctx, keylinetest.TOTPCode(enrollment.Secret)))

	me, err = c.Me(ctx)
	require.NoError(t, err)
	require.False(t, me.MFAEnabled)

	fifth := newTestClient(t, srv)
	login(t, fifth, user.Email, user.Password)
}

func TestMFAGuards(t *testing.T) {
	t.Parallel()

	srv := keylinetest.New()
	t.Cleanup(srv.Close)

	ctx := context.Background()

	t.Run("activation requires a pending enrollment", func(t *testing.T) {
		user := srv.SeedUser("frank@example.com", "correct-horse-7", "Frank")
		c := newTestClient(t, srv)
		login(t, c, user.Email, user.Password)

		_, err := c.ActivateTOTP(ctx, "123456")

		var sdkErr *keyline.Error
		require.ErrorAs(t, err, &sdkErr)
		require.Equal(t, "MFANotEnrolled", sdkErr.Kind)
		require.Equal(t, http.StatusBadRequest, sdkErr.StatusCode)
	})

	t.Run("enrolling twice is a conflict", func(t *testing.T) {
		user, secret := srv.SeedTOTPUser("grace@example.com", "correct-horse-8", "Grace")
		c := newTestClient(t, srv)

		result, err := c.Login(ctx, user.Email, user.Password)
		require.NoError(t, err)
		_, err = c.CompleteMFAChallenge(ctx, result.MFAToken.Value(), keylinetest.TOTPCode(secret))
		require.NoError(t, err)

		_, err = c.EnrollTOTP(ctx)

		var sdkErr *keyline.Error
		require.ErrorAs(t, err, &sdkErr)
		require.Equal(t, "MFAAlreadyEnabled", sdkErr.Kind)
		require.Equal(t, http.StatusConflict, sdkErr.StatusCode)
	})

	t.Run("disable and regenerate require MFA to be active", func(t *testing.T) {
		user := srv.SeedUser("heidi@example.com", "correct-horse-9", "Heidi")
		c := newTestClient(t, srv)
		login(t, c, user.Email, user.Password)

		err := c.DisableTOTP(ctx, "123456")
		var sdkErr *keyline.Error
		require.ErrorAs(t, err, &sdkErr)
		require.Equal(t, "MFANotEnabled", sdkErr.Kind)

		_, err = c.RegenerateBackupCodes(ctx, "123456")
		require.ErrorAs(t, err, &sdkErr)
		require.Equal(t, "MFANotEnabled", sdkErr.Kind)
	})

	t.Run("mfa management needs authentication", func(t *testing.T) {
		c := newTestClient(t, srv)

		_, err := c.EnrollTOTP(ctx)

		var sdkErr *keyline.Error
		require.ErrorAs(t, err, &sdkErr)
		require.Equal(t, http.StatusUnauthorized, sdkErr.StatusCode)
	})
}

func uniqueStrings(in []string) map[string]struct{} {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[s] = struct{}{}
	}
	return set
}
