package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keylineid/keyline-go/pkg/keyline"
)

// mfaAttempts bounds the interactive challenge loop. The service deletes the
// challenge after five failures anyway.
const mfaAttempts = 3

func newLoginCmd(app *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var err error
			if email == "" {
				if email, err = app.promptLine("Email: "); err != nil {
					return err
				}
			}
			password, err := app.promptPassword("Password: ")
			if err != nil {
				return err
			}

			result, err := app.client.Login(ctx, email, password)
			if err != nil {
				return err
			}

			if result.MFARequired {
				if err := app.completeMFA(ctx, result); err != nil {
					return err
				}
			}

			if err := app.saveCredentials(""); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Logged in as %s.\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address to sign in with")

	return cmd
}

// completeMFA runs the interactive second-factor loop after a login that
// answered with a challenge instead of a token.
func (a *App) completeMFA(ctx context.Context, result *keyline.LoginResult) error {
	fmt.Fprintf(a.Out, "This account requires a second factor (%s).\n", strings.Join(result.Methods, ", "))

	for attempt := 1; ; attempt++ {
		code, err := a.promptLine("Code: ")
		if err != nil {
			return err
		}

		_, err = a.client.CompleteMFAChallenge(ctx, result.MFAToken.Value(), code)
		if err == nil {
			return nil
		}

		var sdkErr *keyline.Error
		if errors.As(err, &sdkErr) && sdkErr.Kind == "InvalidMFACode" && attempt < mfaAttempts {
			fmt.Fprintln(a.Out, "That code was not accepted; try again.")
			continue
		}
		return err
	}
}
