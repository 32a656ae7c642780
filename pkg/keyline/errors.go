package keyline

import (
	"fmt"

	"github.com/keylineid/keyline-go/pkg/securex"
)

// Error kinds the SDK produces itself. Kinds originating from the identity
// service (e.g. "InvalidCredentials", "RateLimitExceeded") are passed through
// from the response payload verbatim.
const (
	// KindUnknown marks a server error whose payload carried no kind.
	KindUnknown = "Unknown"

	// KindNetworkError marks a request that was sent but got no response.
	KindNetworkError = "NetworkError"

	// KindUnknownError marks a request that could not even be sent.
	KindUnknownError = "UnknownError"
)

// Error is the single normalized failure shape for everything that goes
// wrong between the SDK and the identity service. Callers never see a raw
// transport error: every failure is folded into this type before it crosses
// the SDK boundary.
type Error struct {
	// Kind is a stable machine-readable identifier for branching.
	Kind string

	// Message is a human-readable description.
	Message string

	// StatusCode is the HTTP status of the response, or 0 when no response
	// arrived.
	StatusCode int

	// Details carries optional structured context from the server payload
	// or, on auth failures, the parsed WWW-Authenticate challenge.
	Details map[string]any
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// OAuthError is a failure reported through the authorization callback:
// either the provider redirected back with an error code, or the callback
// was missing the authorization code entirely.
type OAuthError struct {
	// Code is the OAuth error code, e.g. "access_denied".
	Code string

	// Description is the provider's optional error_description.
	Description string
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return "oauth error: " + e.Code
	}
	return fmt.Sprintf("oauth error %s: %s", e.Code, e.Description)
}

// EnvironmentError is returned when an operation needs a capability the
// current environment does not provide, e.g. redirecting the user without a
// Navigator configured.
type EnvironmentError struct {
	Operation string
}

func (e *EnvironmentError) Error() string {
	return e.Operation + " is not available in this environment"
}

// ConfigError is returned by New when required configuration is missing or
// invalid. It is raised before any network activity.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// Validation errors raised by the secure-value helpers, re-exported so
// callers branch on one package's error types.
type (
	// CsrfError reports a missing or mismatched OAuth state parameter.
	CsrfError = securex.CsrfError

	// RedirectError reports a redirect URI outside the allowed origins.
	RedirectError = securex.RedirectError

	// InsecureURLError reports a URL that is not HTTPS (or permitted
	// loopback HTTP).
	InsecureURLError = securex.InsecureURLError
)
