package keyline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/keylineid/keyline-go/pkg/securex"
)

// Default query parameter values for authorization requests.
const (
	DefaultResponseType = "code"
	DefaultScope        = "openid profile email"
)

// OAuthFlow coordinates the OAuth 2.0 authorization-code flow: building the
// authorization URL, handing the user off to the identity service, and
// turning the callback it redirects back to into installed tokens.
//
// The flow object holds no state across the redirect boundary. A full-page
// navigation destroys the process on some platforms, so the caller must
// persist the state value (and PKCE verifier, when used) returned by
// BuildAuthorizationURL and feed them back through CallbackOptions.
type OAuthFlow struct {
	transport *Transport
	cfg       Config
	logger    *slog.Logger
	navigator Navigator

	// requireStateValidation upgrades the missing-originalState warning in
	// HandleCallback to a fatal CsrfError.
	requireStateValidation bool
}

// BuildAuthorizationURL assembles the URL the user must visit to authorize
// this application, and returns it with the CSRF state it embeds. The caller
// persists that state across the redirect and passes it back as
// CallbackOptions.OriginalState.
//
// When an origin allow-list applies (request field, falling back to the
// configured list), the redirect URI is validated against it before anything
// else; on failure no URL is built and no state is generated. A nil PKCE
// field means the flow runs without PKCE.
func (f *OAuthFlow) BuildAuthorizationURL(req AuthorizationRequest) (string, string, error) {
	clientID := req.ClientID
	if clientID == "" {
		clientID = f.cfg.ClientID
	}
	if clientID == "" {
		return "", "", &ConfigError{Field: "ClientID", Reason: "is required to build an authorization URL"}
	}

	redirectURI := req.RedirectURI
	if redirectURI == "" {
		redirectURI = f.cfg.RedirectURI
	}

	origins := req.AllowedOrigins
	if len(origins) == 0 {
		origins = f.cfg.AllowedOrigins
	}
	if len(origins) > 0 {
		if err := securex.ValidateRedirectURI(redirectURI, origins); err != nil {
			return "", "", err
		}
	}

	state := req.State
	if state == "" {
		var err error
		state, err = securex.GenerateState()
		if err != nil {
			return "", "", fmt.Errorf("generate state: %w", err)
		}
	}

	responseType := req.ResponseType
	if responseType == "" {
		responseType = DefaultResponseType
	}
	scope := req.Scope
	if scope == "" {
		scope = DefaultScope
	}

	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", responseType)
	q.Set("scope", scope)
	q.Set("state", state)
	if req.Nonce != "" {
		q.Set("nonce", req.Nonce)
	}
	if req.PKCE != nil {
		q.Set("code_challenge", req.PKCE.Challenge)
		q.Set("code_challenge_method", req.PKCE.Method)
	}

	return f.baseURL() + "/oauth/authorize?" + q.Encode(), state, nil
}

// RedirectToAuthorization builds the authorization URL and navigates the
// user's agent to it. It returns the state for the caller to persist. When
// no Navigator is configured the call fails with *EnvironmentError before
// any work is done.
func (f *OAuthFlow) RedirectToAuthorization(req AuthorizationRequest) (string, error) {
	if f.navigator == nil {
		return "", &EnvironmentError{Operation: "browser redirect"}
	}

	authURL, state, err := f.BuildAuthorizationURL(req)
	if err != nil {
		return "", err
	}
	if err := f.navigator.Navigate(authURL); err != nil {
		return "", fmt.Errorf("open authorization url: %w", err)
	}
	return state, nil
}

// ParseCallback splits the query of the URL the identity service redirected
// back to. It is a pure parse: no network, no validation beyond URL syntax.
func (f *OAuthFlow) ParseCallback(rawURL string) (*AuthorizationCallback, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &OAuthError{Code: "invalid_callback", Description: err.Error()}
	}

	q := u.Query()
	return &AuthorizationCallback{
		Code:             q.Get("code"),
		ErrorCode:        q.Get("error"),
		ErrorDescription: q.Get("error_description"),
		State:            q.Get("state"),
	}, nil
}

// HandleCallback drives the callback side of the flow end to end: parse the
// redirected URL, reject provider errors, validate the CSRF state, exchange
// the code, and install the resulting access token into the Transport.
//
// State validation runs only when opts.OriginalState is set. A callback that
// carries a state with no original to compare against is logged as a warning
// and allowed through, for callers that validate state out-of-band; the
// WithRequireStateValidation option turns that warning into a fatal
// CsrfError.
func (f *OAuthFlow) HandleCallback(ctx context.Context, rawURL string, opts CallbackOptions) (*TokenResponse, error) {
	cb, err := f.ParseCallback(rawURL)
	if err != nil {
		return nil, err
	}

	if cb.ErrorCode != "" {
		return nil, &OAuthError{Code: cb.ErrorCode, Description: cb.ErrorDescription}
	}
	if cb.Code == "" {
		return nil, &OAuthError{Code: "invalid_callback", Description: "authorization code not found"}
	}

	switch {
	case opts.OriginalState != "":
		if err := securex.ValidateState(cb.State, opts.OriginalState); err != nil {
			return nil, err
		}
	case cb.State != "":
		if f.requireStateValidation {
			return nil, &CsrfError{Reason: "callback carried a state but no original state was supplied to validate it"}
		}
		f.logger.WarnContext(ctx, "oauth callback state not validated",
			slog.String("hint", "pass the state returned by BuildAuthorizationURL as CallbackOptions.OriginalState"),
		)
	}

	return f.ExchangeCodeForToken(ctx, ExchangeRequest{
		Code:         cb.Code,
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		RedirectURI:  opts.RedirectURI,
		CodeVerifier: opts.CodeVerifier,
	})
}

// ExchangeCodeForToken swaps an authorization code for tokens at the token
// endpoint. On a response carrying a non-empty access token, the token is
// installed into the Transport as a side effect: a successful exchange
// leaves the client authenticated with no extra step.
func (f *OAuthFlow) ExchangeCodeForToken(ctx context.Context, req ExchangeRequest) (*TokenResponse, error) {
	clientID := req.ClientID
	if clientID == "" {
		clientID = f.cfg.ClientID
	}
	clientSecret := req.ClientSecret
	if clientSecret == "" {
		clientSecret = f.cfg.ClientSecret
	}
	redirectURI := req.RedirectURI
	if redirectURI == "" {
		redirectURI = f.cfg.RedirectURI
	}

	form := map[string]string{
		"grant_type": "authorization_code",
		"code":       req.Code,
		"client_id":  clientID,
	}
	if redirectURI != "" {
		form["redirect_uri"] = redirectURI
	}
	if clientSecret != "" {
		form["client_secret"] = clientSecret
	}
	if req.CodeVerifier != "" {
		form["code_verifier"] = req.CodeVerifier
	}

	return f.postTokenForm(ctx, form)
}

// RefreshToken trades a refresh token for a fresh token pair. Like the code
// exchange, a non-empty access token in the response is installed into the
// Transport automatically. An empty clientID falls back to the configured
// one.
func (f *OAuthFlow) RefreshToken(ctx context.Context, refreshToken, clientID string) (*TokenResponse, error) {
	if clientID == "" {
		clientID = f.cfg.ClientID
	}

	form := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     clientID,
	}
	if f.cfg.ClientSecret != "" {
		form["client_secret"] = f.cfg.ClientSecret
	}

	return f.postTokenForm(ctx, form)
}

func (f *OAuthFlow) postTokenForm(ctx context.Context, form map[string]string) (*TokenResponse, error) {
	var tokens TokenResponse
	if err := f.transport.PostForm(ctx, "/oauth/token", form, &tokens); err != nil {
		return nil, err
	}
	if !tokens.AccessToken.IsEmpty() {
		f.transport.SetToken(tokens.AccessToken.Value())
	}
	return &tokens, nil
}

// OIDCConfiguration fetches the OpenID Connect discovery document. The
// document is passed through as-is; nothing in it is enforced here.
func (f *OAuthFlow) OIDCConfiguration(ctx context.Context) (OIDCConfiguration, error) {
	var doc OIDCConfiguration
	if err := f.transport.Do(ctx, http.MethodGet, "/.well-known/openid-configuration", nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (f *OAuthFlow) baseURL() string {
	return f.transport.BaseURL()
}
