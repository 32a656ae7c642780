package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current session and forget stored credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !app.client.IsAuthenticated() {
				fmt.Fprintln(app.Out, "Not logged in.")
				return app.creds.clear()
			}

			// Server-side revocation can fail (token already expired); the
			// local credentials are removed either way.
			if err := app.client.Logout(cmd.Context()); err != nil {
				fmt.Fprintf(app.ErrOut, "Warning: server-side logout failed: %v\n", err)
			}
			if err := app.creds.clear(); err != nil {
				return err
			}

			fmt.Fprintln(app.Out, "Logged out.")
			return nil
		},
	}
}
