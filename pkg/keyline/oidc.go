package keyline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/keylineid/keyline-go/pkg/jwtx"
)

// wellKnownJWKSPath is the fallback when the discovery document does not
// name a jwks_uri.
const wellKnownJWKSPath = "/.well-known/jwks.json"

// ErrNonceMismatch reports an ID token whose nonce claim does not match the
// one the caller sent on the authorization request.
var ErrNonceMismatch = errors.New("keyline: id token nonce mismatch")

// OIDCConfiguration is the OpenID Connect discovery document. The SDK treats
// it as opaque JSON; the accessors pull out the handful of fields the SDK
// uses itself and return "" when a field is absent rather than enforcing
// presence.
type OIDCConfiguration map[string]any

func (d OIDCConfiguration) str(key string) string {
	s, _ := d[key].(string)
	return s
}

// Issuer returns the "issuer" value, or "".
func (d OIDCConfiguration) Issuer() string { return d.str("issuer") }

// JWKSURI returns the "jwks_uri" value, or "".
func (d OIDCConfiguration) JWKSURI() string { return d.str("jwks_uri") }

// AuthorizationEndpoint returns the "authorization_endpoint" value, or "".
func (d OIDCConfiguration) AuthorizationEndpoint() string {
	return d.str("authorization_endpoint")
}

// TokenEndpoint returns the "token_endpoint" value, or "".
func (d OIDCConfiguration) TokenEndpoint() string { return d.str("token_endpoint") }

// OIDCConfiguration fetches the discovery document through the shared
// transport.
func (c *Client) OIDCConfiguration(ctx context.Context) (OIDCConfiguration, error) {
	return c.oauth.OIDCConfiguration(ctx)
}

// JWKS fetches the identity service's published verification keys.
func (c *Client) JWKS(ctx context.Context) (jwtx.JWKS, error) {
	var jwks jwtx.JWKS
	if err := c.transport.Do(ctx, http.MethodGet, wellKnownJWKSPath, nil, &jwks); err != nil {
		return jwtx.JWKS{}, err
	}
	return jwks, nil
}

// VerifyOptions adjusts ID-token verification.
type VerifyOptions struct {
	// ClientID is the expected audience. Empty falls back to the configured
	// client ID; when both are empty the audience is not checked.
	ClientID string

	// Nonce, when set, must match the token's nonce claim exactly.
	Nonce string
}

// VerifyIDToken checks an OIDC ID token against the identity service's
// published keys: signature, issuer, audience, expiry, and nonce when one is
// expected. The expected issuer comes from the discovery document, falling
// back to the client's base URL.
//
// Verification keys are fetched on first use and cached for the life of the
// Client. A token signed by a key the cache does not know triggers one
// refetch before the verification is allowed to fail, which covers key
// rotation at the service.
func (c *Client) VerifyIDToken(ctx context.Context, rawToken string, opts VerifyOptions) (*jwtx.IDClaims, error) {
	audience := opts.ClientID
	if audience == "" {
		audience = c.cfg.ClientID
	}

	c.keysMu.Lock()
	defer c.keysMu.Unlock()

	if c.keys == nil {
		if err := c.loadKeysLocked(ctx); err != nil {
			return nil, err
		}
	}

	claims, err := c.verifyLocked(rawToken, audience)
	if errors.Is(err, jwtx.ErrNoKey) {
		if rerr := c.loadKeysLocked(ctx); rerr != nil {
			return nil, rerr
		}
		claims, err = c.verifyLocked(rawToken, audience)
	}
	if err != nil {
		return nil, err
	}

	if opts.Nonce != "" && claims.Nonce != opts.Nonce {
		return nil, ErrNonceMismatch
	}
	return claims, nil
}

// loadKeysLocked refreshes the key cache from discovery + JWKS. Callers hold
// keysMu.
func (c *Client) loadKeysLocked(ctx context.Context) error {
	doc, err := c.oauth.OIDCConfiguration(ctx)
	if err != nil {
		return err
	}

	jwksURL := doc.JWKSURI()
	if jwksURL == "" {
		jwksURL = wellKnownJWKSPath
	}

	var jwks jwtx.JWKS
	if err := c.transport.Do(ctx, http.MethodGet, jwksURL, nil, &jwks); err != nil {
		return err
	}

	if c.keys == nil {
		c.keys = jwtx.NewKeySet()
	}
	if err := c.keys.ResetFromJWKS(jwks); err != nil {
		return fmt.Errorf("load verification keys: %w", err)
	}

	c.issuer = doc.Issuer()
	if c.issuer == "" {
		c.issuer = c.BaseURL()
	}
	return nil
}

func (c *Client) verifyLocked(rawToken, audience string) (*jwtx.IDClaims, error) {
	var aud []string
	if audience != "" {
		aud = []string{audience}
	}
	return jwtx.NewVerifierEdDSA(c.keys, c.issuer, aud).Verify(rawToken)
}
