package keylinetest

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/keylineid/keyline-go/pkg/idx"
	"github.com/keylineid/keyline-go/pkg/jwtx"
	"github.com/keylineid/keyline-go/pkg/securex"
)

// SeededUser describes an account created by a seed helper. Password holds
// the plaintext so tests can log in with it.
type SeededUser struct {
	ID       string
	Email    string
	Password string
	Name     string
}

// SeedUser creates an account directly in the store, skipping the register
// endpoint. It panics on invalid input; seeding failures are test bugs.
func (s *Server) SeedUser(email, password, name string) SeededUser {
	hash, err := securex.HashPassword(password)
	if err != nil {
		panic("keylinetest: hash seed password: " + err.Error())
	}
	u, ok := s.store.createUser(email, name, hash, time.Now())
	if !ok {
		panic("keylinetest: seed user: email already taken: " + email)
	}
	return SeededUser{ID: u.ID.String(), Email: email, Password: password, Name: name}
}

// SeedTOTPUser creates an account with TOTP already activated and returns
// the base32 secret. Generate login codes from it with TOTPCode.
func (s *Server) SeedTOTPUser(email, password, name string) (SeededUser, string) {
	seeded := s.SeedUser(email, password, name)

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      TOTPIssuer,
		AccountName: email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		panic("keylinetest: generate seed TOTP secret: " + err.Error())
	}
	s.store.updateUser(seeded.ID, func(u *userRecord) {
		u.MFASecret = key.Secret()
		u.MFAEnabled = true
	})
	return seeded, key.Secret()
}

// SeedBackupCodes replaces the user's recovery codes and returns the
// plaintext set.
func (s *Server) SeedBackupCodes(userID string) []string {
	if _, ok := s.store.userByID(userID); !ok {
		panic("keylinetest: seed backup codes: unknown user " + userID)
	}
	return s.issueBackupCodes(userID)
}

// SeedClient registers an OAuth client. An empty secret makes it a public
// client; only the listed redirect URIs are accepted at the authorize
// endpoint.
func (s *Server) SeedClient(id, secret string, redirectURIs ...string) {
	var secretHash string
	if secret != "" {
		hash, err := securex.HashPassword(secret)
		if err != nil {
			panic("keylinetest: hash client secret: " + err.Error())
		}
		secretHash = hash
	}
	s.store.putClient(&clientRecord{
		ID:           id,
		SecretHash:   secretHash,
		RedirectURIs: redirectURIs,
	})
}

// IssueSession creates a live session for the user and returns its ID with
// a signed access token, ready to drive authenticated endpoints or the
// authorize redirect without going through a login.
func (s *Server) IssueSession(userID string) (sessionID, accessToken string) {
	u, ok := s.store.userByID(userID)
	if !ok {
		panic("keylinetest: issue session: unknown user " + userID)
	}
	now := time.Now()
	sess := s.store.createSession(u.ID, "keylinetest/seed", "127.0.0.1", now)
	token, err := s.signAccessToken(u, sess.ID.String(), "", defaultScope, []string{jwtx.AMRPassword}, now)
	if err != nil {
		panic("keylinetest: sign seed token: " + err.Error())
	}
	return sess.ID.String(), token
}

// CodeOptions parameterizes MintAuthorizationCode. ClientID, RedirectURI,
// and UserID are required; everything else has a sane default.
type CodeOptions struct {
	ClientID    string
	RedirectURI string
	UserID      string

	// Scope defaults to "openid profile email".
	Scope string

	// Nonce is echoed into the ID token minted at exchange.
	Nonce string

	// CodeChallenge and CodeChallengeMethod record a PKCE challenge the
	// exchange must answer.
	CodeChallenge       string
	CodeChallengeMethod string

	// SessionID binds the code to an existing session. Empty mints a fresh
	// session at exchange time.
	SessionID string

	// ExpiresAt defaults to five minutes from now. Set a past time to test
	// expiry handling.
	ExpiresAt time.Time

	// Used marks the code as already burned.
	Used bool
}

// MintAuthorizationCode creates an authorization code directly in the
// store, bypassing the authorize endpoint, and returns its plaintext.
func (s *Server) MintAuthorizationCode(opts CodeOptions) string {
	if opts.ClientID == "" || opts.RedirectURI == "" || opts.UserID == "" {
		panic("keylinetest: mint code: ClientID, RedirectURI, and UserID are required")
	}
	if _, ok := s.store.userByID(opts.UserID); !ok {
		panic("keylinetest: mint code: unknown user " + opts.UserID)
	}

	scope := opts.Scope
	if scope == "" {
		scope = defaultScope
	}
	expiresAt := opts.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(codeTTL)
	}

	var sessionID idx.ID
	if opts.SessionID != "" {
		sid, err := idx.Parse(opts.SessionID)
		if err != nil {
			panic("keylinetest: mint code: bad session ID: " + err.Error())
		}
		sessionID = sid
	}

	code := securex.MustGenerateToken(securex.TokenSize256)
	s.store.putAuthCode(&authCodeRecord{
		Hash:                securex.FingerprintToken(code),
		ClientID:            opts.ClientID,
		RedirectURI:         opts.RedirectURI,
		UserID:              idx.MustParse(opts.UserID),
		SessionID:           sessionID,
		Scope:               scope,
		Nonce:               opts.Nonce,
		CodeChallenge:       opts.CodeChallenge,
		CodeChallengeMethod: opts.CodeChallengeMethod,
		ExpiresAt:           expiresAt,
		Used:                opts.Used,
	})
	return code
}

// RevokeUserSession revokes a session out-of-band, simulating an
// administrator or another device killing it.
func (s *Server) RevokeUserSession(sessionID string) bool {
	return s.store.revokeSession(sessionID)
}

// TOTPCode derives the current code for a base32 secret, standing in for
// the user's authenticator app.
func TOTPCode(secret string) string {
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		panic("keylinetest: generate TOTP code: " + err.Error())
	}
	return code
}
