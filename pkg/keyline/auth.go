package keyline

import (
	"context"
	"net/http"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type mfaChallengeRequest struct {
	MFAToken string `json:"mfa_token"`
	Code     string `json:"code"`
}

// userEnvelope wraps the endpoints that return a single user.
type userEnvelope struct {
	User *User `json:"user"`
}

// Register creates a new account. It does not log the new user in; call
// Login with the same credentials afterwards.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var env userEnvelope
	if err := c.transport.Do(ctx, http.MethodPost, "/auth/register", req, &env); err != nil {
		return nil, err
	}
	return env.User, nil
}

// Login authenticates with email and password. Two outcomes count as
// success: the result carries a token, which is installed into the transport
// before returning, or it carries an MFA challenge to finish with
// CompleteMFAChallenge. MFA being required is an expected outcome, not an
// error.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var result LoginResult
	if err := c.transport.Do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &result); err != nil {
		return nil, err
	}
	if !result.MFARequired && !result.Token.IsEmpty() {
		c.transport.SetToken(result.Token.Value())
	}
	return &result, nil
}

// CompleteMFAChallenge finishes a login that required a second factor.
// mfaToken is the challenge token from the LoginResult; code is a TOTP code
// or a backup code. On success the returned token is installed into the
// transport.
func (c *Client) CompleteMFAChallenge(ctx context.Context, mfaToken, code string) (*LoginResult, error) {
	var result LoginResult
	if err := c.transport.Do(ctx, http.MethodPost, "/auth/mfa/challenge", mfaChallengeRequest{MFAToken: mfaToken, Code: code}, &result); err != nil {
		return nil, err
	}
	if !result.Token.IsEmpty() {
		c.transport.SetToken(result.Token.Value())
	}
	return &result, nil
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var env userEnvelope
	if err := c.transport.Do(ctx, http.MethodGet, "/auth/me", nil, &env); err != nil {
		return nil, err
	}
	return env.User, nil
}

// Logout revokes the current session server-side and empties the local token
// slot. The slot is emptied even when the server call fails: logging out
// must stop local authentication either way. The server error, if any, is
// still returned.
func (c *Client) Logout(ctx context.Context) error {
	err := c.transport.Do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.transport.ClearToken()
	return err
}
