/*
Package keyline is the client SDK for the Keyline identity service: password
login and registration, session and token lifecycle, multi-factor
authentication, and the OAuth 2.0 / OIDC authorization-code flow.

# Overview

Everything hangs off one Client. The Client composes two pieces: a Transport
that owns the single bearer-token slot and normalizes every failure into
*Error, and an OAuthFlow that drives the authorization-code dance on top of
it. A token obtained through any path (password login, MFA completion, code
exchange, refresh, or SetAccessToken) lands in the same slot and rides on
every subsequent request.

	cfg := keyline.Config{BaseURL: "https://id.example.com"}
	client, err := keyline.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	result, err := client.Login(ctx, "alice@example.com", "s3cretpass")
	if err != nil {
		log.Fatal(err)
	}

	// The client is now authenticated; no extra wiring step.
	user, err := client.Me(ctx)

# Token Lifecycle

The SDK never persists anything. Callers persist the token across restarts
and re-install it on startup:

	client.SetAccessToken(savedToken)

	if client.IsAuthenticated() {
		check, err := client.CheckSession(ctx)
		if err == nil && !check.Valid {
			// Expired server-side: an expected outcome, not an error.
			client.ClearAuth()
		}
	}

ClearAuth empties the slot locally; Logout also revokes the session
server-side (and empties the slot even when the server call fails).

# Multi-Factor Authentication

Login reports an MFA challenge as a successful result, not an error:

	result, err := client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if result.MFARequired {
		result, err = client.CompleteMFAChallenge(ctx, result.MFAToken.Value(), totpCode)
	}

Enrollment is EnrollTOTP (provisioning secret and otpauth URL), ActivateTOTP
(confirm a code, receive backup codes), DisableTOTP, and
RegenerateBackupCodes.

# OAuth Authorization-Code Flow

The flow is stateless across the redirect: BuildAuthorizationURL returns the
CSRF state, the caller persists it across the navigation, and HandleCallback
validates it before exchanging the code.

	flow := client.OAuth()

	pkce, _ := keyline.GeneratePKCEChallenge()
	authURL, state, err := flow.BuildAuthorizationURL(keyline.AuthorizationRequest{
		ClientID:       "my-app",
		RedirectURI:    "https://app.example.com/callback",
		AllowedOrigins: []string{"https://app.example.com"},
		PKCE:           pkce,
	})
	// ... persist state and pkce.Verifier, send the user to authURL ...

	tokens, err := flow.HandleCallback(ctx, callbackURL, keyline.CallbackOptions{
		ClientID:      "my-app",
		OriginalState: state,
		CodeVerifier:  pkce.Verifier,
	})
	// On success the access token is already installed into the Client.

RefreshToken(ctx, refreshToken, clientID) installs the rotated token the
same way. RedirectToAuthorization performs the navigation itself when the
Client was built WithNavigator; without one it fails with
*EnvironmentError.

# Error Handling

Every transport or server failure surfaces as *Error with a stable Kind, a
human-readable Message, the HTTP StatusCode (0 when no response arrived),
and optional Details. No raw HTTP-library error ever crosses the SDK
boundary. Flow validation failures are typed: *CsrfError (state mismatch),
*RedirectError (redirect URI not allow-listed), *InsecureURLError,
*OAuthError (provider-reported error or missing code), *EnvironmentError,
and *ConfigError. Branch with errors.As:

	_, err := flow.HandleCallback(ctx, callbackURL, opts)
	var csrfErr *keyline.CsrfError
	if errors.As(err, &csrfErr) {
		// Forged or replayed callback; do not retry.
	}

# ID Tokens

When the "openid" scope is granted, token responses carry an ID token.
VerifyIDToken checks it against the service's published JWKS (signature,
issuer, audience, expiry, nonce) and caches the keys for the life of the
Client:

	claims, err := client.VerifyIDToken(ctx, tokens.IDToken.Value(), keyline.VerifyOptions{})

# Thread Safety

A Client is safe for concurrent use. The token slot is guarded by a lock;
concurrent requests read it consistently, and two uncoordinated logins race
with last-writer-wins semantics, which callers must coordinate themselves if
it matters.
*/
package keyline
