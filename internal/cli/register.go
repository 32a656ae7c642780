package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keylineid/keyline-go/pkg/keyline"
)

func newRegisterCmd(app *App) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if email == "" {
				if email, err = app.promptLine("Email: "); err != nil {
					return err
				}
			}
			if !keyline.IsValidEmail(email) {
				return fmt.Errorf("%q does not look like an email address", email)
			}

			password, err := app.promptPassword("Password: ")
			if err != nil {
				return err
			}
			if !keyline.IsValidPassword(password) {
				return fmt.Errorf("passwords must be 8 to 128 characters")
			}
			confirm, err := app.promptPassword("Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}

			user, err := app.client.Register(cmd.Context(), keyline.RegisterRequest{
				Email:    email,
				Password: password,
				Name:     keyline.SanitizeInput(name),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(app.Out, "Account created for %s. Run 'keylinectl login' to sign in.\n", user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address for the new account")
	cmd.Flags().StringVar(&name, "name", "", "display name")

	return cmd
}
