package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. The test identity provider issues tokens with these
// unless configured otherwise.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultIDTokenTTL is the default lifetime for OIDC ID tokens.
	DefaultIDTokenTTL = time.Hour

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Authentication method references (RFC 8176) carried in the AMR claim.
const (
	// AMRPassword marks a password login.
	AMRPassword = "pwd"

	// AMROTP marks a completed one-time-password (TOTP or backup code)
	// challenge.
	AMROTP = "otp"

	// AMRRefresh marks a token minted through the refresh grant.
	AMRRefresh = "refresh"
)

// IDClaims are the claims carried by Keyline-issued tokens: the OIDC ID token
// set plus the session binding the token was minted under.
type IDClaims struct {
	jwt.RegisteredClaims

	// Nonce echoes the value the client sent on the authorization request.
	Nonce string `json:"nonce,omitempty"`

	// Email of the authenticated user.
	Email string `json:"email,omitempty"`

	// EmailVerified reports whether the address has been confirmed.
	EmailVerified bool `json:"email_verified,omitempty"`

	// Name is the user's display name.
	Name string `json:"name,omitempty"`

	// SID is the server-side session this token belongs to.
	SID string `json:"sid,omitempty"`

	// AMR lists the authentication methods used, e.g. ["pwd"] or
	// ["pwd","otp"] when the login completed an MFA challenge.
	AMR []string `json:"amr,omitempty"`

	// Scope is the space-delimited list of scopes granted to the token.
	Scope string `json:"scope,omitempty"`
}

// NewIDClaims builds minimally-correct claims for a token minted now.
func NewIDClaims(
	subject, sid string,
	amr []string,
	ttl time.Duration,
	issuer string,
	audience []string,
	email, name string,
	now time.Time,
) IDClaims {
	return IDClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		SID:   sid,
		AMR:   amr,
		Email: email,
		Name:  name,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the issuer against the expected value.
// An empty expected value enforces nothing.
func (c *IDClaims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks that at least one expected audience is present.
// An empty expected list enforces nothing.
func (c *IDClaims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used before
// it is valid (nbf).
func (c *IDClaims) ValidateExpiry() error {
	return c.ValidateExpiryWithLeeway(0)
}

// ValidateExpiryWithLeeway adds a grace period for clock skew.
func (c *IDClaims) ValidateExpiryWithLeeway(leeway time.Duration) error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}
