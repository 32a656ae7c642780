// Package keylinetest runs a complete in-process Keyline identity provider
// for testing SDK integrations without a deployed service.
//
// The provider implements the full HTTP surface the SDK talks to — password
// auth, sessions, TOTP MFA, the OAuth 2.0 authorization-code and refresh
// grants, OIDC discovery and JWKS — backed by in-memory stores and a real
// Ed25519 signing key, so tokens it issues verify against its own JWKS.
// Passwords are argon2id-hashed and TOTP codes are validated for real;
// nothing is stubbed at the protocol level.
//
//	srv := keylinetest.New()
//	defer srv.Close()
//
//	user := srv.SeedUser("a@example.com", "s3cretpass", "Alex")
//	client, _ := keyline.New(srv.ClientConfig())
//
// Every request is counted per path, so tests can assert that an operation
// issued zero network calls:
//
//	require.Zero(t, srv.Requests("/oauth/token"))
package keylinetest

import (
	"crypto/ed25519"
	"crypto/rand"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/keylineid/keyline-go/pkg/httpx"
	"github.com/keylineid/keyline-go/pkg/jwtx"
	"github.com/keylineid/keyline-go/pkg/keyline"
	"github.com/keylineid/keyline-go/pkg/slogx"
)

const (
	// signingKID identifies the provider's Ed25519 key in its JWKS.
	signingKID = "keylinetest-1"

	// codeTTL bounds authorization codes; they are single-use besides.
	codeTTL = 5 * time.Minute

	// mfaChallengeTTL bounds the window between a password login that
	// required a second factor and the challenge completion.
	mfaChallengeTTL = 5 * time.Minute

	// maxMFAAttempts invalidates a challenge after this many wrong codes.
	maxMFAAttempts = 5

	// backupCodeCount is how many recovery codes activation hands out.
	backupCodeCount = 10
)

// TOTPIssuer is the issuer name stamped into otpauth:// provisioning URLs.
const TOTPIssuer = "Keyline"

// Server is an in-process identity provider bound to a loopback listener.
// Create one with New and stop it with Close. All exported methods are safe
// for concurrent use.
type Server struct {
	// URL is the provider's base URL, e.g. "http://127.0.0.1:51234".
	URL string

	http    *httptest.Server
	handler http.Handler
	logger  *slog.Logger

	signer   jwtx.Signer
	keys     *jwtx.KeySet
	verifier jwtx.Verifier
	issuer   string

	accessTTL  time.Duration
	refreshTTL time.Duration
	idTokenTTL time.Duration
	loginLimit *httpx.RateLimitConfig

	store *store

	countMu sync.Mutex
	counts  map[string]int
}

// Option adjusts a Server before it starts serving.
type Option func(*Server)

// WithLogger routes provider request logs to logger. The default drops
// everything so tests stay quiet.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithIssuer overrides the issuer claim in minted tokens and the discovery
// document. The default is the server's own URL.
func WithIssuer(issuer string) Option {
	return func(s *Server) { s.issuer = issuer }
}

// WithAccessTokenTTL overrides the access-token lifetime, letting tests mint
// tokens that are already expired.
func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.accessTTL = ttl }
}

// WithIDTokenTTL overrides the ID-token lifetime.
func WithIDTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.idTokenTTL = ttl }
}

// WithLoginRateLimit applies a token-bucket limit to the login endpoint,
// keyed by client IP. Without this option logins are not rate limited.
func WithLoginRateLimit(cfg httpx.RateLimitConfig) Option {
	return func(s *Server) { s.loginLimit = &cfg }
}

// New starts a provider on a random loopback port.
func New(opts ...Option) *Server {
	s := &Server{
		logger:     slogx.Discard(),
		accessTTL:  jwtx.DefaultAccessTokenTTL,
		refreshTTL: jwtx.DefaultRefreshTokenTTL,
		idTokenTTL: jwtx.DefaultIDTokenTTL,
		store:      newStore(),
		counts:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic("keylinetest: generate signing key: " + err.Error())
	}
	signer, err := jwtx.NewSignerEdDSAFromKey(signingKID, key)
	if err != nil {
		panic("keylinetest: build signer: " + err.Error())
	}
	s.signer = signer
	s.keys = jwtx.NewKeySet()
	if err := s.keys.AddSigner(signer); err != nil {
		panic("keylinetest: register signing key: " + err.Error())
	}

	// The handler is swapped in after the listener is up because route
	// construction needs the final URL for the issuer claim. No request can
	// arrive before New returns.
	s.http = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handler.ServeHTTP(w, r)
	}))
	s.URL = s.http.URL
	if s.issuer == "" {
		s.issuer = s.URL
	}
	s.verifier = jwtx.NewCommonEdDSA(s.keys, s.issuer, nil)
	s.handler = s.routes()

	return s
}

// Close shuts the provider down and frees its listener.
func (s *Server) Close() {
	s.http.Close()
}

// Issuer returns the issuer claim minted tokens carry.
func (s *Server) Issuer() string { return s.issuer }

// ClientConfig returns a keyline.Config pointed at this provider, with the
// loopback-HTTP carve-out enabled.
func (s *Server) ClientConfig() keyline.Config {
	return keyline.Config{
		BaseURL:                s.URL,
		AllowInsecureLocalhost: true,
		Timeout:                5 * time.Second,
	}
}

// Requests reports how many requests the provider has served for the exact
// path, e.g. Requests("/oauth/token").
func (s *Server) Requests(path string) int {
	s.countMu.Lock()
	defer s.countMu.Unlock()
	return s.counts[path]
}

// ResetRequests zeroes all request counters.
func (s *Server) ResetRequests() {
	s.countMu.Lock()
	defer s.countMu.Unlock()
	s.counts = make(map[string]int)
}

// countRequests records every served path for the zero-network assertions
// tests make.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.countMu.Lock()
		s.counts[r.URL.Path]++
		s.countMu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) routes() http.Handler {
	authed := httpx.AuthnMiddleware(s.verifier)

	login := http.Handler(http.HandlerFunc(s.handleLogin))
	if s.loginLimit != nil {
		login = httpx.RateLimitByIP(*s.loginLimit)(login)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.Handle("POST /auth/login", login)
	mux.HandleFunc("POST /auth/mfa/challenge", s.handleMFAChallenge)

	mux.Handle("GET /auth/me", httpx.Chain(http.HandlerFunc(s.handleMe), authed))
	mux.Handle("POST /auth/logout", httpx.Chain(http.HandlerFunc(s.handleLogout), authed))

	mux.Handle("GET /auth/sessions", httpx.Chain(http.HandlerFunc(s.handleSessions), authed))
	mux.Handle("GET /auth/sessions/current", httpx.Chain(http.HandlerFunc(s.handleSessionCurrent), authed))
	mux.Handle("POST /auth/sessions/revoke", httpx.Chain(http.HandlerFunc(s.handleSessionRevoke), authed))
	mux.Handle("POST /auth/sessions/revoke-others", httpx.Chain(http.HandlerFunc(s.handleSessionRevokeOthers), authed))

	mux.Handle("POST /auth/mfa/totp/enroll", httpx.Chain(http.HandlerFunc(s.handleTOTPEnroll), authed))
	mux.Handle("POST /auth/mfa/totp/activate", httpx.Chain(http.HandlerFunc(s.handleTOTPActivate), authed))
	mux.Handle("POST /auth/mfa/totp/disable", httpx.Chain(http.HandlerFunc(s.handleTOTPDisable), authed))
	mux.Handle("POST /auth/mfa/backup-codes/regenerate", httpx.Chain(http.HandlerFunc(s.handleBackupCodesRegenerate), authed))

	mux.HandleFunc("GET /oauth/authorize", s.handleAuthorize)
	mux.HandleFunc("POST /oauth/token", s.handleToken)
	mux.HandleFunc("GET /.well-known/openid-configuration", s.handleDiscovery)
	mux.HandleFunc("GET /.well-known/jwks.json", s.handleJWKS)

	return httpx.Chain(mux, s.countRequests, slogx.HTTPMiddleware(s.logger))
}

// signAccessToken mints the bearer token for one session.
func (s *Server) signAccessToken(u *userRecord, sessionID, clientID, scope string, amr []string, now time.Time) (string, error) {
	var aud []string
	if clientID != "" {
		aud = []string{clientID}
	}
	claims := jwtx.NewIDClaims(u.ID.String(), sessionID, amr, s.accessTTL, s.issuer, aud, u.Email, u.Name, now)
	claims.Scope = scope
	return s.signer.Sign(claims)
}

// signIDToken mints the OIDC ID token returned alongside an access token
// when the "openid" scope was granted.
func (s *Server) signIDToken(u *userRecord, sessionID, clientID, nonce string, amr []string, now time.Time) (string, error) {
	claims := jwtx.NewIDClaims(u.ID.String(), sessionID, amr, s.idTokenTTL, s.issuer, []string{clientID}, u.Email, u.Name, now)
	claims.Nonce = nonce
	claims.EmailVerified = u.EmailVerified
	return s.signer.Sign(claims)
}
