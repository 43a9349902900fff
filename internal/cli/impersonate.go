package cli

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tansive/adminconsole/internal/session"
)

func newImpersonateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "impersonate USER_ID",
		Short: "Act as another user",
		Long: `Act as another user. Requires the admin role. The operator's own session
is kept and restored by "adminctl stop-impersonation".

Example:
  adminctl impersonate 42`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			target, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return session.ErrInvalidInput.Msg("user id must be a number")
			}
			s, err := a.manager.StartImpersonation(cmd.Context(), target)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, newSessionView(s))
			}
			okLabel.Fprintf(out, "✓ Now acting as %s\n", s.Identity.DisplayName())
			printSession(out, s)
			return nil
		}),
	}
}

func newStopImpersonationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop-impersonation",
		Short: "Return to the operator's own session",
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			s, err := a.manager.StopImpersonation(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, newSessionView(s))
			}
			okLabel.Fprintf(out, "✓ Back as %s\n", s.Identity.DisplayName())
			return nil
		}),
	}
}
