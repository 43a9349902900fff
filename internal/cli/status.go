package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tansive/adminconsole/internal/session"
)

func newWhoAmICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Long: `Show the effective user of the current session with merged roles.
While impersonating, this is the impersonated user.`,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			s := a.manager.Snapshot()
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, newSessionView(s))
			}
			printSession(out, s)
			return nil
		}),
	}
}

// statusResponse is the JSON shape of the status command
type statusResponse struct {
	VersionCLI  string      `json:"version_cli"`
	Server      string      `json:"server"`
	SessionFile string      `json:"session_file"`
	Session     sessionView `json:"session"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the CLI configuration and session state",
		Long: `Show the configured server, where the session is stored, the session state
and when the current token expires.

Examples:
  adminctl status
  adminctl status -j`,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			rsp := statusResponse{
				VersionCLI:  getCLIVersion(),
				Server:      a.cfg.GetServerURL(),
				SessionFile: a.store.Path(),
				Session:     newSessionView(a.manager.Snapshot()),
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, rsp)
			}
			fmt.Fprintf(out, "adminctl %s\n", rsp.VersionCLI)
			fmt.Fprintf(out, "Server: %s\n", rsp.Server)
			fmt.Fprintf(out, "Session file: %s\n", rsp.SessionFile)
			fmt.Fprintf(out, "State: %s\n", rsp.Session.State)
			if rsp.Session.ExpiresAt != nil {
				remaining := time.Until(*rsp.Session.ExpiresAt).Truncate(time.Second)
				if remaining > 0 {
					fmt.Fprintf(out, "Token expires: %s (in %s)\n", rsp.Session.ExpiresAt.Local().Format("2006-01-02 15:04:05 MST"), remaining)
				} else {
					warnLabel.Fprintf(out, "Token expired: %s\n", rsp.Session.ExpiresAt.Local().Format("2006-01-02 15:04:05 MST"))
				}
			}
			if rsp.Session.State != session.LoggedOut.String() {
				fmt.Fprintln(out)
				printSession(out, a.manager.Snapshot())
			}
			return nil
		}),
	}
}
