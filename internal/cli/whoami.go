package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account the stored token belongs to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireAuth(); err != nil {
				return err
			}

			user, err := app.client.Me(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(app.Out, "ID:     %s\n", user.ID)
			fmt.Fprintf(app.Out, "Email:  %s\n", user.Email)
			if user.Name != "" {
				fmt.Fprintf(app.Out, "Name:   %s\n", user.Name)
			}
			fmt.Fprintf(app.Out, "MFA:    %s\n", onOff(user.MFAEnabled))
			return nil
		},
	}
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
