package keyline

import (
	"context"
	"errors"
	"net/http"
)

type sessionsEnvelope struct {
	Sessions []Session `json:"sessions"`
}

type revokeSessionRequest struct {
	SessionID string `json:"session_id"`
}

type revokedEnvelope struct {
	Revoked int `json:"revoked"`
}

// Sessions lists the authenticated user's active sessions.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	var env sessionsEnvelope
	if err := c.transport.Do(ctx, http.MethodGet, "/auth/sessions", nil, &env); err != nil {
		return nil, err
	}
	return env.Sessions, nil
}

// CheckSession asks the identity service whether the installed token's
// session is still honored. An expired or revoked session is an expected
// outcome: it comes back as SessionCheck{Valid: false} with a nil error
// rather than as an *Error.
func (c *Client) CheckSession(ctx context.Context) (*SessionCheck, error) {
	var check SessionCheck
	err := c.transport.Do(ctx, http.MethodGet, "/auth/sessions/current", nil, &check)
	if err != nil {
		var sdkErr *Error
		if errors.As(err, &sdkErr) && sdkErr.StatusCode == http.StatusUnauthorized {
			return &SessionCheck{Valid: false}, nil
		}
		return nil, err
	}
	return &check, nil
}

// RevokeSession revokes one session by ID. Revoking the current session
// invalidates the installed token server-side without clearing it locally.
func (c *Client) RevokeSession(ctx context.Context, sessionID string) error {
	return c.transport.Do(ctx, http.MethodPost, "/auth/sessions/revoke", revokeSessionRequest{SessionID: sessionID}, nil)
}

// RevokeOtherSessions revokes every session except the current one and
// reports how many were revoked.
func (c *Client) RevokeOtherSessions(ctx context.Context) (int, error) {
	var env revokedEnvelope
	if err := c.transport.Do(ctx, http.MethodPost, "/auth/sessions/revoke-others", nil, &env); err != nil {
		return 0, err
	}
	return env.Revoked, nil
}
