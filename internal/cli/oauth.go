package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keylineid/keyline-go/pkg/keyline"
	"github.com/keylineid/keyline-go/pkg/securex"
)

func newOAuthCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "OAuth 2.0 flows against the identity service",
	}
	cmd.AddCommand(newOAuthLoginCmd(app))
	return cmd
}

func newOAuthLoginCmd(app *App) *cobra.Command {
	var (
		port      int
		scope     string
		noBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser with the authorization code flow",
		Long: `Starts a loopback HTTP listener, opens the identity service's
authorization page in the browser, and exchanges the resulting code for
tokens. The flow uses PKCE and validates the CSRF state on the callback.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runOAuthLogin(cmd.Context(), port, scope, noBrowser)
		},
	}

	cmd.Flags().IntVar(&port, "callback-port", 0, "loopback port for the OAuth callback (0 picks a free one)")
	cmd.Flags().StringVar(&scope, "scope", keyline.DefaultScope, "scopes to request")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")

	return cmd
}

func (a *App) runOAuthLogin(ctx context.Context, port int, scope string, noBrowser bool) error {
	srv, redirectURI, err := startCallbackServer(port)
	if err != nil {
		return err
	}
	defer srv.stop()

	pkce, err := keyline.GeneratePKCEChallenge()
	if err != nil {
		return err
	}
	nonce := securex.MustGenerateState()

	flow := a.client.OAuth()
	authURL, state, err := flow.BuildAuthorizationURL(keyline.AuthorizationRequest{
		RedirectURI: redirectURI,
		Scope:       scope,
		Nonce:       nonce,
		PKCE:        pkce,
	})
	if err != nil {
		return err
	}

	if noBrowser {
		fmt.Fprintf(a.Out, "Open this URL in your browser:\n\n  %s\n\n", authURL)
	} else {
		fmt.Fprintln(a.Out, "Opening your browser to continue. Waiting for the callback...")
		if err := a.nav.Navigate(authURL); err != nil {
			fmt.Fprintf(a.ErrOut, "Could not open a browser (%v); open this URL yourself:\n\n  %s\n\n", err, authURL)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, callbackTimeout)
	defer cancel()
	rawURL, err := srv.wait(waitCtx)
	if err != nil {
		return err
	}

	tokens, err := flow.HandleCallback(ctx, rawURL, keyline.CallbackOptions{
		RedirectURI:   redirectURI,
		OriginalState: state,
		CodeVerifier:  pkce.Verifier,
	})
	if err != nil {
		return err
	}

	// The ID token proves who the provider says logged in; a token that
	// fails verification must not be stored.
	if !tokens.IDToken.IsEmpty() {
		claims, err := a.client.VerifyIDToken(ctx, tokens.IDToken.Value(), keyline.VerifyOptions{Nonce: nonce})
		if err != nil {
			return fmt.Errorf("verify id token: %w", err)
		}
		fmt.Fprintf(a.Out, "Signed in as %s.\n", claims.Email)
	} else {
		fmt.Fprintln(a.Out, "Signed in.")
	}

	return a.saveCredentials(tokens.RefreshToken.Value())
}
