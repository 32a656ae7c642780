package keylinetest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/keylineid/keyline-go/pkg/httpx"
	"github.com/keylineid/keyline-go/pkg/jwtx"
	"github.com/keylineid/keyline-go/pkg/keyline"
	"github.com/keylineid/keyline-go/pkg/securex"
	"github.com/keylineid/keyline-go/pkg/slogx"
)

// defaultScope is granted when a request does not ask for anything narrower.
const defaultScope = "openid profile email"

type registerBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type mfaChallengeBody struct {
	MFAToken string `json:"mfa_token"`
	Code     string `json:"code"`
}

// loginPayload mirrors keyline.LoginResult with plain strings. The SDK type
// marshals its token fields as "[REDACTED]", so responses cannot reuse it.
type loginPayload struct {
	Token       string        `json:"token,omitempty"`
	User        *keyline.User `json:"user,omitempty"`
	MFARequired bool          `json:"mfa_required,omitempty"`
	MFAToken    string        `json:"mfa_token,omitempty"`
	Methods     []string      `json:"methods,omitempty"`
}

type userEnvelope struct {
	User *keyline.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if !keyline.IsValidEmail(body.Email) {
		httpx.WriteError(w, http.StatusBadRequest, "ValidationError", "email address is not valid")
		return
	}
	if !keyline.IsValidPassword(body.Password) {
		httpx.WriteError(w, http.StatusBadRequest, "ValidationError", "password must be between 8 and 128 characters")
		return
	}

	hash, err := securex.HashPassword(body.Password)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "InternalError", "failed to hash password")
		return
	}

	u, ok := s.store.createUser(body.Email, keyline.SanitizeInput(body.Name), hash, time.Now())
	if !ok {
		httpx.WriteError(w, http.StatusConflict, "EmailTaken", "an account with this email already exists")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, userEnvelope{User: userJSON(u)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !decodeJSON(w, r, &body) {
		return
	}
	log := slogx.FromContext(r.Context())

	u, ok := s.store.userByEmail(body.Email)
	if !ok {
		// Same response as a wrong password so the endpoint does not leak
		// which addresses have accounts.
		httpx.WriteError(w, http.StatusUnauthorized, "InvalidCredentials", "invalid email or password")
		return
	}
	if err := securex.VerifyPassword(body.Password, u.PasswordHash); err != nil {
		log.Warn("invalid credentials", "user_id", u.ID.String())
		httpx.WriteError(w, http.StatusUnauthorized, "InvalidCredentials", "invalid email or password")
		return
	}

	now := time.Now()
	if u.MFAEnabled {
		token := securex.MustGenerateToken(securex.TokenSize256)
		s.store.putMFAChallenge(&mfaChallengeRecord{
			Hash:      securex.FingerprintToken(token),
			UserID:    u.ID,
			ExpiresAt: now.Add(mfaChallengeTTL),
		})
		methods := []string{"totp"}
		if len(u.BackupCodes) > 0 {
			methods = append(methods, "backup_code")
		}
		log.Debug("mfa challenge issued", "user_id", u.ID.String())
		httpx.WriteJSON(w, http.StatusOK, loginPayload{
			MFARequired: true,
			MFAToken:    token,
			Methods:     methods,
		})
		return
	}

	s.finishLogin(w, r, u, []string{jwtx.AMRPassword}, now)
}

func (s *Server) handleMFAChallenge(w http.ResponseWriter, r *http.Request) {
	var body mfaChallengeBody
	if !decodeJSON(w, r, &body) {
		return
	}

	now := time.Now()
	hash := securex.FingerprintToken(body.MFAToken)
	ch, ok := s.store.mfaChallenge(hash, now)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "InvalidMFAToken", "challenge is invalid or has expired")
		return
	}
	u, ok := s.store.userByID(ch.UserID.String())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "InvalidMFAToken", "challenge is invalid or has expired")
		return
	}

	if !s.verifySecondFactor(u, body.Code) {
		log := slogx.FromContext(r.Context())
		if s.store.bumpMFAAttempts(hash) >= maxMFAAttempts {
			log.Warn("mfa challenge invalidated", "user_id", u.ID.String())
			httpx.WriteError(w, http.StatusUnauthorized, "TooManyAttempts", "challenge invalidated after too many failed codes")
			return
		}
		log.Warn("invalid mfa code", "user_id", u.ID.String())
		httpx.WriteError(w, http.StatusUnauthorized, "InvalidMFACode", "code is not valid")
		return
	}

	s.store.deleteMFAChallenge(hash)
	s.finishLogin(w, r, u, []string{jwtx.AMRPassword, jwtx.AMROTP}, now)
}

// verifySecondFactor accepts a current TOTP code or consumes one unused
// backup code.
func (s *Server) verifySecondFactor(u *userRecord, code string) bool {
	if u.MFASecret != "" && totp.Validate(code, u.MFASecret) {
		return true
	}
	return s.store.consumeBackupCode(u.ID.String(), securex.FingerprintToken(code))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, _, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userEnvelope{User: userJSON(u)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	s.store.revokeSession(sess.ID.String())
	w.WriteHeader(http.StatusNoContent)
}

// finishLogin creates the session and answers with its access token.
func (s *Server) finishLogin(w http.ResponseWriter, r *http.Request, u *userRecord, amr []string, now time.Time) {
	sess := s.store.createSession(u.ID, r.UserAgent(), httpx.IPKeyExtractor(r), now)
	token, err := s.signAccessToken(u, sess.ID.String(), "", defaultScope, amr, now)
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to sign token", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "InternalError", "failed to sign token")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginPayload{Token: token, User: userJSON(u)})
}

// requireSession loads the user and session behind an already-verified
// bearer token and rejects revoked sessions. The JWT outlives a revocation,
// so this is the check that makes logout stick.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (*userRecord, *sessionRecord, bool) {
	sid := httpx.SessionID(r.Context())
	sess, ok := s.store.session(sid)
	if !ok || sess.Revoked {
		httpx.WriteError(w, http.StatusUnauthorized, "SessionExpired", "session has been revoked or has expired")
		return nil, nil, false
	}
	u, ok := s.store.userByID(httpx.UserID(r.Context()))
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "SessionExpired", "session has been revoked or has expired")
		return nil, nil, false
	}
	s.store.touchSession(sid, time.Now())
	return u, sess, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "ValidationError", "request body is not valid JSON")
		return false
	}
	return true
}

func userJSON(u *userRecord) *keyline.User {
	return &keyline.User{
		ID:            u.ID.String(),
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.EmailVerified,
		MFAEnabled:    u.MFAEnabled,
		CreatedAt:     u.CreatedAt,
	}
}
