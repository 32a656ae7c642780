package keyline

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the SDK needs to talk to one identity service.
// Only BaseURL is required; the OAuth fields can also be supplied per call
// through AuthorizationRequest and CallbackOptions.
type Config struct {
	// BaseURL is the root of the identity service, e.g.
	// "https://id.example.com". A single trailing slash is stripped.
	BaseURL string `env:"KEYLINE_BASE_URL"`

	// ClientID and ClientSecret identify this application to the identity
	// service for OAuth flows. They are defaults; values set on an
	// AuthorizationRequest or CallbackOptions take precedence.
	ClientID     string `env:"KEYLINE_CLIENT_ID"`
	ClientSecret string `env:"KEYLINE_CLIENT_SECRET"`

	// RedirectURI is the default callback for authorization requests.
	RedirectURI string `env:"KEYLINE_REDIRECT_URI"`

	// AllowedOrigins is an optional allow-list for redirect URIs. When
	// non-empty, BuildAuthorizationURL refuses any RedirectURI whose origin
	// is not a literal member of this list.
	AllowedOrigins []string `env:"KEYLINE_ALLOWED_ORIGINS" envSeparator:","`

	// Timeout bounds each HTTP request the SDK makes.
	Timeout time.Duration `env:"KEYLINE_HTTP_TIMEOUT" envDefault:"10s"`

	// AllowInsecureLocalhost permits an http:// BaseURL when the host is a
	// loopback address, for local development. Any other plain-HTTP BaseURL
	// is rejected.
	AllowInsecureLocalhost bool `env:"KEYLINE_ALLOW_INSECURE_LOCALHOST"`
}

// ConfigFromEnv builds a Config from KEYLINE_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, &ConfigError{Field: "environment", Reason: err.Error()}
	}
	return cfg, nil
}
