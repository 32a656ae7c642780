package keyline

import (
	"time"

	"github.com/keylineid/keyline-go/pkg/securex"
)

// PKCEChallenge re-exports the securex PKCE pair so callers of the SDK do
// not need to import securex directly.
type PKCEChallenge = securex.PKCEChallenge

// GeneratePKCEChallenge creates a fresh S256 verifier/challenge pair.
func GeneratePKCEChallenge() (*PKCEChallenge, error) {
	return securex.GeneratePKCEChallenge()
}

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse represents the OAuth2 token endpoint response per RFC 6749.
// This is returned from POST /oauth/token for both the authorization_code
// and refresh_token grant types.
type TokenResponse struct {
	// AccessToken is the bearer token used to authenticate requests.
	AccessToken RedactedToken `json:"access_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	ExpiresIn int `json:"expires_in"`

	// RefreshToken is the opaque token used to obtain new access tokens.
	RefreshToken RedactedToken `json:"refresh_token,omitempty"`

	// Scope is the space-delimited list of scopes granted to this token.
	Scope string `json:"scope,omitempty"`

	// IDToken is the OIDC ID token, present when the "openid" scope was
	// granted. Verify it with Client.VerifyIDToken.
	IDToken RedactedToken `json:"id_token,omitempty"`
}

// ============================================================================
// User & Session Types
// ============================================================================

// User is the identity service's representation of an account.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	MFAEnabled    bool      `json:"mfa_enabled"`
	CreatedAt     time.Time `json:"created_at"`
}

// Session is one server-side login session for a user.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	UserAgent  string    `json:"user_agent,omitempty"`
	IP         string    `json:"ip,omitempty"`

	// Current marks the session backing the token that made the request.
	Current bool `json:"current,omitempty"`
}

// SessionCheck is the typed result of CheckSession. An expired or revoked
// session is an expected outcome, so it is reported here rather than as an
// error.
type SessionCheck struct {
	Valid   bool     `json:"valid"`
	Session *Session `json:"session,omitempty"`
}

// ============================================================================
// Auth Request/Response Types
// ============================================================================

// RegisterRequest creates a new account. Registration does not log the new
// user in; call Login afterwards.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// LoginResult is the outcome of a password login. Exactly one of the two
// shapes is populated: a token (the user is now authenticated) or an MFA
// challenge (complete it with CompleteMFAChallenge).
type LoginResult struct {
	Token RedactedToken `json:"token,omitempty"`
	User  *User         `json:"user,omitempty"`

	// MFARequired signals the credentials were correct but a second factor
	// is needed. MFAToken is the short-lived challenge token to present to
	// CompleteMFAChallenge, and Methods lists what the account has enrolled
	// (e.g. ["totp","backup_code"]).
	MFARequired bool          `json:"mfa_required,omitempty"`
	MFAToken    RedactedToken `json:"mfa_token,omitempty"`
	Methods     []string      `json:"methods,omitempty"`
}

// ============================================================================
// MFA Types
// ============================================================================

// TOTPEnrollment is the provisioning material returned when TOTP enrollment
// starts. The enrollment is pending until ActivateTOTP confirms a code.
type TOTPEnrollment struct {
	// Secret is the base32 TOTP secret for manual entry.
	Secret string `json:"secret"`

	// OTPAuthURL is the otpauth:// URL encoded into authenticator QR codes.
	OTPAuthURL string `json:"otpauth_url"`

	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

// BackupCodes are single-use recovery codes. They are returned exactly once;
// the service stores only their hashes.
type BackupCodes struct {
	Codes []string `json:"backup_codes"`
}

// ============================================================================
// OAuth Types
// ============================================================================

// AuthorizationRequest describes one OAuth authorization attempt.
type AuthorizationRequest struct {
	// ClientID identifies the application at the identity service.
	ClientID string

	// RedirectURI is where the provider sends the user back. When an origin
	// allow-list applies, this URI's origin must be a literal member of it.
	RedirectURI string

	// AllowedOrigins restricts RedirectURI to the listed origins. Empty
	// falls back to the configured allow-list; when both are empty the
	// redirect URI is not checked.
	AllowedOrigins []string

	// Scope defaults to "openid profile email" when empty.
	Scope string

	// ResponseType defaults to "code" when empty.
	ResponseType string

	// State is the CSRF token round-tripped through the redirect. Generated
	// when empty; either way the caller must persist the returned state
	// across the navigation, because the SDK holds no memory across it.
	State string

	// Nonce, when set, is echoed into the ID token so VerifyIDToken can
	// detect replays.
	Nonce string

	// PKCE, when set, adds the code challenge to the authorization URL. The
	// caller must keep the verifier and supply it to the exchange.
	PKCE *PKCEChallenge
}

// AuthorizationCallback is the parsed query of the URL the identity service
// redirected back to. Exactly one of Code or ErrorCode is expected.
type AuthorizationCallback struct {
	Code             string
	ErrorCode        string
	ErrorDescription string
	State            string
}

// CallbackOptions carries the caller-side context needed to complete a
// callback: the client identity for the exchange and the original state to
// validate against.
type CallbackOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// OriginalState is the state returned by BuildAuthorizationURL, as
	// persisted by the caller. When set, the callback's state must match it
	// exactly or the exchange is refused.
	OriginalState string

	// CodeVerifier is the PKCE verifier matching the challenge sent on the
	// authorization request.
	CodeVerifier string
}

// ExchangeRequest is the input to the code-for-token exchange.
type ExchangeRequest struct {
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	CodeVerifier string
}
