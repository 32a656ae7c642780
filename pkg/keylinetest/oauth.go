package keylinetest

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/keylineid/keyline-go/pkg/httpx"
	"github.com/keylineid/keyline-go/pkg/idx"
	"github.com/keylineid/keyline-go/pkg/jwtx"
	"github.com/keylineid/keyline-go/pkg/securex"
	"github.com/keylineid/keyline-go/pkg/slogx"
)

// tokenPayload mirrors keyline.TokenResponse with plain strings; the SDK
// type marshals its token fields as "[REDACTED]".
type tokenPayload struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")
	redirectURI := q.Get("redirect_uri")

	client, ok := s.store.client(clientID)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_client", "unknown client")
		return
	}
	// An unregistered redirect_uri never gets a redirect; that would hand
	// the code to an address the client never vouched for.
	if redirectURI == "" || !redirectURIRegistered(client, redirectURI) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not registered for this client")
		return
	}

	if rt := q.Get("response_type"); rt != "code" {
		redirectWithError(w, r, redirectURI, "unsupported_response_type", "only the authorization code flow is supported", q.Get("state"))
		return
	}

	u, sess, ok := s.resolveBearer(r)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "login_required", "authorization requires an authenticated user")
		return
	}

	scope := q.Get("scope")
	if scope == "" {
		scope = defaultScope
	}

	now := time.Now()
	code := securex.MustGenerateToken(securex.TokenSize256)
	s.store.putAuthCode(&authCodeRecord{
		Hash:                securex.FingerprintToken(code),
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		UserID:              u.ID,
		SessionID:           sess.ID,
		Scope:               scope,
		Nonce:               q.Get("nonce"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		ExpiresAt:           now.Add(codeTTL),
	})

	redirectWithCode(w, r, redirectURI, code, q.Get("state"))
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "request body is not a valid form")
		return
	}

	switch r.PostFormValue("grant_type") {
	case "authorization_code":
		s.exchangeAuthorizationCode(w, r)
	case "refresh_token":
		s.refreshGrant(w, r)
	default:
		httpx.WriteError(w, http.StatusBadRequest, "unsupported_grant_type", "grant_type must be authorization_code or refresh_token")
	}
}

func (s *Server) exchangeAuthorizationCode(w http.ResponseWriter, r *http.Request) {
	code := r.PostFormValue("code")
	clientID := r.PostFormValue("client_id")
	if code == "" || clientID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code and client_id are required")
		return
	}
	client, ok := s.authenticateClient(w, clientID, r.PostFormValue("client_secret"))
	if !ok {
		return
	}
	log := slogx.FromContext(r.Context())

	now := time.Now()
	rec, ok := s.store.consumeAuthCode(securex.FingerprintToken(code), now)
	if !ok {
		log.Warn("authorization code rejected", "client_id", client.ID)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_grant", "authorization code is invalid, expired, or already used")
		return
	}
	if rec.ClientID != client.ID {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_grant", "authorization code was issued to a different client")
		return
	}
	if ru := r.PostFormValue("redirect_uri"); ru != "" && ru != rec.RedirectURI {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri does not match the authorization request")
		return
	}
	if !verifyCodeVerifier(rec.CodeChallenge, rec.CodeChallengeMethod, r.PostFormValue("code_verifier")) {
		log.Warn("code_verifier mismatch", "client_id", client.ID)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_grant", "code_verifier does not match the challenge")
		return
	}

	u, ok := s.store.userByID(rec.UserID.String())
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_grant", "user no longer exists")
		return
	}

	// Codes minted through the authorize endpoint carry the session of the
	// user who approved them; seeded codes may not, so mint one here.
	sessionID := rec.SessionID
	if sessionID.IsZero() {
		sessionID = s.store.createSession(u.ID, r.UserAgent(), httpx.IPKeyExtractor(r), now).ID
	}

	s.writeTokenResponse(w, u, sessionID, client.ID, rec.Scope, rec.Nonce, []string{jwtx.AMRPassword}, now)
}

func (s *Server) refreshGrant(w http.ResponseWriter, r *http.Request) {
	token := r.PostFormValue("refresh_token")
	clientID := r.PostFormValue("client_id")
	if token == "" || clientID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "refresh_token and client_id are required")
		return
	}
	client, ok := s.authenticateClient(w, clientID, r.PostFormValue("client_secret"))
	if !ok {
		return
	}

	now := time.Now()
	rec, ok := s.store.rotateRefresh(securex.FingerprintToken(token), now)
	if !ok {
		slogx.FromContext(r.Context()).Warn("refresh token rejected", "client_id", client.ID)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_grant", "refresh token is invalid, expired, or revoked")
		return
	}
	if rec.ClientID != client.ID {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_grant", "refresh token was issued to a different client")
		return
	}
	sess, ok := s.store.session(rec.SessionID.String())
	if !ok || sess.Revoked {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_grant", "session behind the refresh token is no longer active")
		return
	}
	u, ok := s.store.userByID(rec.UserID.String())
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_grant", "user no longer exists")
		return
	}

	// rotateRefresh already revoked the presented token; the response
	// carries its replacement, bound to the same session and scope.
	s.writeTokenResponse(w, u, rec.SessionID, client.ID, rec.Scope, "", []string{jwtx.AMRPassword, jwtx.AMRRefresh}, now)
}

// writeTokenResponse mints the access token, a fresh refresh token, and an
// ID token when the grant includes the "openid" scope.
func (s *Server) writeTokenResponse(w http.ResponseWriter, u *userRecord, sessionID idx.ID, clientID, scope, nonce string, amr []string, now time.Time) {
	access, err := s.signAccessToken(u, sessionID.String(), clientID, scope, amr, now)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "failed to sign access token")
		return
	}

	refresh := securex.MustGenerateToken(securex.TokenSize256)
	s.store.putRefresh(&refreshRecord{
		Hash:      securex.FingerprintToken(refresh),
		UserID:    u.ID,
		ClientID:  clientID,
		SessionID: sessionID,
		Scope:     scope,
		ExpiresAt: now.Add(s.refreshTTL),
	})

	payload := tokenPayload{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.accessTTL / time.Second),
		RefreshToken: refresh,
		Scope:        scope,
	}
	if scopeContains(scope, "openid") {
		idToken, err := s.signIDToken(u, sessionID.String(), clientID, nonce, amr, now)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "failed to sign id token")
			return
		}
		payload.IDToken = idToken
	}

	httpx.WriteJSON(w, http.StatusOK, payload)
}

// authenticateClient resolves the client and, for confidential clients,
// verifies the posted secret. On failure it writes the error itself.
func (s *Server) authenticateClient(w http.ResponseWriter, clientID, secret string) (*clientRecord, bool) {
	client, ok := s.store.client(clientID)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_client", "unknown client")
		return nil, false
	}
	if client.SecretHash != "" {
		if err := securex.VerifyPassword(secret, client.SecretHash); err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
			return nil, false
		}
	}
	return client, true
}

// resolveBearer authenticates the authorize request from its Authorization
// header. The endpoint sits outside the authn middleware because a missing
// or stale token must answer login_required, not a bearer challenge.
func (s *Server) resolveBearer(r *http.Request) (*userRecord, *sessionRecord, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(raw) <= len(prefix) || !strings.EqualFold(raw[:len(prefix)], prefix) {
		return nil, nil, false
	}
	claims, err := s.verifier.Verify(strings.TrimSpace(raw[len(prefix):]))
	if err != nil {
		return nil, nil, false
	}
	sess, ok := s.store.session(claims.SID)
	if !ok || sess.Revoked {
		return nil, nil, false
	}
	u, ok := s.store.userByID(claims.Subject)
	if !ok {
		return nil, nil, false
	}
	return u, sess, true
}

// verifyCodeVerifier checks a PKCE verifier against the challenge recorded
// at authorization time, per RFC 7636. A code minted without a challenge
// accepts any verifier; an empty method means "plain".
func verifyCodeVerifier(challenge, method, verifier string) bool {
	challenge = strings.TrimSpace(challenge)
	if challenge == "" {
		return true
	}

	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return false
	}

	switch {
	case method == "" || strings.EqualFold(method, "plain"):
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case strings.EqualFold(method, "S256"):
		sum := sha256.Sum256([]byte(verifier))
		expected := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
	default:
		return false
	}
}

func scopeContains(scope, want string) bool {
	return slices.Contains(httpx.ParseSpaceDelimitedFields(scope), want)
}

// redirectURIRegistered reports whether uri matches one of the client's
// registered redirect URIs. Loopback HTTP URIs match regardless of port, per
// RFC 8252 section 7.3: native apps bind an ephemeral port at request time.
func redirectURIRegistered(client *clientRecord, uri string) bool {
	if slices.Contains(client.RedirectURIs, uri) {
		return true
	}

	presented, err := url.Parse(uri)
	if err != nil || presented.Scheme != "http" || !isLoopbackHost(presented.Hostname()) {
		return false
	}
	for _, registered := range client.RedirectURIs {
		reg, err := url.Parse(registered)
		if err != nil || reg.Scheme != "http" {
			continue
		}
		if reg.Hostname() == presented.Hostname() && reg.Path == presented.Path {
			return true
		}
	}
	return false
}

func isLoopbackHost(host string) bool {
	return host == "127.0.0.1" || host == "::1" || host == "localhost"
}

func redirectWithCode(w http.ResponseWriter, r *http.Request, redirectURI, code, state string) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not a valid URL")
		return
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

func redirectWithError(w http.ResponseWriter, r *http.Request, redirectURI, errCode, description, state string) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not a valid URL")
		return
	}
	q := u.Query()
	q.Set("error", errCode)
	q.Set("error_description", description)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

func (s *Server) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"issuer":                                s.issuer,
		"authorization_endpoint":                s.URL + "/oauth/authorize",
		"token_endpoint":                        s.URL + "/oauth/token",
		"jwks_uri":                              s.URL + "/.well-known/jwks.json",
		"userinfo_endpoint":                     s.URL + "/auth/me",
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token"},
		"scopes_supported":                      []string{"openid", "profile", "email"},
		"id_token_signing_alg_values_supported": []string{"EdDSA"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_post", "none"},
		"code_challenge_methods_supported":      []string{"S256", "plain"},
		"subject_types_supported":               []string{"public"},
	})
}

func (s *Server) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.keys.PublicJWKS())
}
