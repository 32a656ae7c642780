package keyline

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/keylineid/keyline-go/pkg/jwtx"
	"github.com/keylineid/keyline-go/pkg/securex"
)

// DefaultTimeout bounds each request when Config.Timeout is unset and the
// caller supplied no http.Client of their own.
const DefaultTimeout = 10 * time.Second

// Client is the SDK entry point. It composes the authenticated Transport and
// the OAuthFlow on top of it, so a token obtained through any path (password
// login, MFA completion, code exchange, refresh, SetAccessToken) is the one
// every subsequent request carries.
type Client struct {
	cfg       Config
	logger    *slog.Logger
	transport *Transport
	oauth     *OAuthFlow

	// keysMu guards the verification material VerifyIDToken fills from the
	// service's discovery and JWKS endpoints.
	keysMu sync.Mutex
	keys   *jwtx.KeySet
	issuer string
}

type options struct {
	httpClient             *http.Client
	logger                 *slog.Logger
	navigator              Navigator
	requireStateValidation bool
}

// Option customizes a Client beyond what Config carries.
type Option func(*options)

// WithHTTPClient substitutes the http.Client behind every request. The
// configured Timeout is not applied to a caller-supplied client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithLogger routes SDK logs to logger instead of slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNavigator enables RedirectToAuthorization by giving the SDK a way to
// send the user's agent to a URL.
func WithNavigator(nav Navigator) Option {
	return func(o *options) { o.navigator = nav }
}

// WithRequireStateValidation makes HandleCallback treat a callback state
// that has no original state to compare against as a fatal CsrfError rather
// than a warning.
func WithRequireStateValidation() Option {
	return func(o *options) { o.requireStateValidation = true }
}

// New builds a Client for the identity service at cfg.BaseURL. It fails fast
// with *ConfigError when the base URL is missing and with *InsecureURLError
// when the base URL is plain HTTP outside loopback. Exactly one trailing
// slash is trimmed from the base URL; the string is otherwise used as given.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &ConfigError{Field: "BaseURL", Reason: "is required"}
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if err := securex.ValidateSecureURL(cfg.BaseURL, cfg.AllowInsecureLocalhost); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		o.httpClient = &http.Client{Timeout: timeout}
	}

	transport := newTransport(cfg.BaseURL, o.httpClient, o.logger)

	return &Client{
		cfg:       cfg,
		logger:    o.logger,
		transport: transport,
		oauth: &OAuthFlow{
			transport:              transport,
			cfg:                    cfg,
			logger:                 o.logger,
			navigator:              o.navigator,
			requireStateValidation: o.requireStateValidation,
		},
	}, nil
}

// OAuth returns the flow coordinator sharing this client's transport and
// token slot.
func (c *Client) OAuth() *OAuthFlow { return c.oauth }

// SetAccessToken installs a token obtained out-of-band, typically one the
// caller persisted from an earlier session.
func (c *Client) SetAccessToken(token string) { c.transport.SetToken(token) }

// Token returns the currently installed bearer token, or "" when none is
// set.
func (c *Client) Token() string { return c.transport.Token() }

// IsAuthenticated reports whether a bearer token is installed. It says
// nothing about whether the server still honors that token; CheckSession
// answers that.
func (c *Client) IsAuthenticated() bool { return c.transport.Token() != "" }

// ClearAuth empties the token slot. It performs no network activity; use
// Logout to also revoke the session server-side.
func (c *Client) ClearAuth() { c.transport.ClearToken() }

// BaseURL returns the normalized identity service root this client talks
// to.
func (c *Client) BaseURL() string { return c.transport.BaseURL() }
