package keyline

import (
	"context"
	"net/http"
)

type mfaCodeRequest struct {
	Code string `json:"code"`
}

// EnrollTOTP starts TOTP enrollment for the authenticated user. The returned
// provisioning material feeds an authenticator app; the enrollment stays
// pending until ActivateTOTP confirms a generated code.
func (c *Client) EnrollTOTP(ctx context.Context) (*TOTPEnrollment, error) {
	var enrollment TOTPEnrollment
	if err := c.transport.Do(ctx, http.MethodPost, "/auth/mfa/totp/enroll", nil, &enrollment); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ActivateTOTP confirms a pending enrollment with a code from the
// authenticator and returns the account's backup codes. The codes are shown
// exactly once; the service keeps only fingerprints.
func (c *Client) ActivateTOTP(ctx context.Context, code string) (*BackupCodes, error) {
	var codes BackupCodes
	if err := c.transport.Do(ctx, http.MethodPost, "/auth/mfa/totp/activate", mfaCodeRequest{Code: code}, &codes); err != nil {
		return nil, err
	}
	return &codes, nil
}

// DisableTOTP turns MFA off for the account. A current code is required to
// prove possession of the authenticator.
func (c *Client) DisableTOTP(ctx context.Context, code string) error {
	return c.transport.Do(ctx, http.MethodPost, "/auth/mfa/totp/disable", mfaCodeRequest{Code: code}, nil)
}

// RegenerateBackupCodes replaces the account's backup codes with a fresh
// set. Previous codes stop working immediately.
func (c *Client) RegenerateBackupCodes(ctx context.Context, code string) (*BackupCodes, error) {
	var codes BackupCodes
	if err := c.transport.Do(ctx, http.MethodPost, "/auth/mfa/backup-codes/regenerate", mfaCodeRequest{Code: code}, &codes); err != nil {
		return nil, err
	}
	return &codes, nil
}
