package keylinetest

import (
	"net/http"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/keylineid/keyline-go/pkg/httpx"
	"github.com/keylineid/keyline-go/pkg/keyline"
	"github.com/keylineid/keyline-go/pkg/securex"
	"github.com/keylineid/keyline-go/pkg/slogx"
)

type mfaCodeBody struct {
	Code string `json:"code"`
}

func (s *Server) handleTOTPEnroll(w http.ResponseWriter, r *http.Request) {
	u, _, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	if u.MFAEnabled {
		httpx.WriteError(w, http.StatusConflict, "MFAAlreadyEnabled", "multi-factor authentication is already active")
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      TOTPIssuer,
		AccountName: u.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "InternalError", "failed to generate TOTP secret")
		return
	}

	// Re-enrolling before activation replaces the pending secret.
	s.store.updateUser(u.ID.String(), func(u *userRecord) { u.MFASecret = key.Secret() })

	httpx.WriteJSON(w, http.StatusOK, keyline.TOTPEnrollment{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
		Issuer:     TOTPIssuer,
		Account:    u.Email,
	})
}

func (s *Server) handleTOTPActivate(w http.ResponseWriter, r *http.Request) {
	u, _, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var body mfaCodeBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if u.MFAEnabled {
		httpx.WriteError(w, http.StatusConflict, "MFAAlreadyEnabled", "multi-factor authentication is already active")
		return
	}
	if u.MFASecret == "" {
		httpx.WriteError(w, http.StatusBadRequest, "MFANotEnrolled", "no pending TOTP enrollment")
		return
	}
	if !totp.Validate(body.Code, u.MFASecret) {
		slogx.FromContext(r.Context()).Warn("invalid TOTP code", "user_id", u.ID.String())
		httpx.WriteError(w, http.StatusUnauthorized, "InvalidMFACode", "code is not valid")
		return
	}

	codes := s.issueBackupCodes(u.ID.String())
	s.store.updateUser(u.ID.String(), func(u *userRecord) { u.MFAEnabled = true })
	httpx.WriteJSON(w, http.StatusOK, keyline.BackupCodes{Codes: codes})
}

func (s *Server) handleTOTPDisable(w http.ResponseWriter, r *http.Request) {
	u, _, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var body mfaCodeBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if !u.MFAEnabled {
		httpx.WriteError(w, http.StatusBadRequest, "MFANotEnabled", "multi-factor authentication is not active")
		return
	}
	if !totp.Validate(body.Code, u.MFASecret) {
		slogx.FromContext(r.Context()).Warn("invalid TOTP code", "user_id", u.ID.String())
		httpx.WriteError(w, http.StatusUnauthorized, "InvalidMFACode", "code is not valid")
		return
	}

	s.store.updateUser(u.ID.String(), func(u *userRecord) {
		u.MFAEnabled = false
		u.MFASecret = ""
		u.BackupCodes = make(map[string]struct{})
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBackupCodesRegenerate(w http.ResponseWriter, r *http.Request) {
	u, _, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var body mfaCodeBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if !u.MFAEnabled {
		httpx.WriteError(w, http.StatusBadRequest, "MFANotEnabled", "multi-factor authentication is not active")
		return
	}
	// Regeneration takes a TOTP code, not a backup code; a leaked backup
	// code must not be able to mint itself replacements.
	if !totp.Validate(body.Code, u.MFASecret) {
		httpx.WriteError(w, http.StatusUnauthorized, "InvalidMFACode", "code is not valid")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, keyline.BackupCodes{Codes: s.issueBackupCodes(u.ID.String())})
}

// issueBackupCodes replaces the user's recovery codes and returns the
// plaintext set. Only fingerprints are stored.
func (s *Server) issueBackupCodes(userID string) []string {
	codes := make([]string, 0, backupCodeCount)
	prints := make(map[string]struct{}, backupCodeCount)
	for range backupCodeCount {
		code := securex.MustGenerateToken(securex.TokenSize128)
		codes = append(codes, code)
		prints[securex.FingerprintToken(code)] = struct{}{}
	}
	s.store.updateUser(userID, func(u *userRecord) { u.BackupCodes = prints })
	return codes
}
