package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and revoke login sessions",
	}
	cmd.AddCommand(newSessionsListCmd(app), newSessionsRevokeCmd(app))
	return cmd
}

func newSessionsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the account's live sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireAuth(); err != nil {
				return err
			}

			sessions, err := app.client.Sessions(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(app.Out, 2, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCURRENT\tIP\tLAST SEEN\tUSER AGENT")
			for _, s := range sessions {
				current := ""
				if s.Current {
					current = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.ID, current, s.IP, s.LastSeenAt.Format(time.RFC3339), s.UserAgent)
			}
			return w.Flush()
		},
	}
}

func newSessionsRevokeCmd(app *App) *cobra.Command {
	var others bool

	cmd := &cobra.Command{
		Use:   "revoke [session-id]",
		Short: "Revoke one session, or every session except this one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireAuth(); err != nil {
				return err
			}

			switch {
			case others && len(args) > 0:
				return fmt.Errorf("--others cannot be combined with a session ID")
			case others:
				revoked, err := app.client.RevokeOtherSessions(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Revoked %d session(s).\n", revoked)
				return nil
			case len(args) == 1:
				if err := app.client.RevokeSession(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Session %s revoked.\n", args[0])
				return nil
			default:
				return fmt.Errorf("pass a session ID or --others")
			}
		},
	}

	cmd.Flags().BoolVar(&others, "others", false, "revoke every session except the current one")

	return cmd
}
