package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tansive/adminconsole/internal/session"
)

// retryDelay is the first backoff step between login attempts.
var retryDelay = 500 * time.Millisecond

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	var email, passwd string
	var retries uint
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the auth service",
		Long: `Sign in with email and password. The session is stored on this machine
and used by the other commands until you log out or it expires.

The email and password may also come from ADMINCTL_EMAIL and
ADMINCTL_PASSWORD, set in the environment or in a .env file.

Examples:
  adminctl login --email bob@example.com --passwd secret
  adminctl login --retries 3`,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			email = firstNonEmpty(email, EnvEmail)
			passwd = firstNonEmpty(passwd, EnvPassword)
			if passwd == "" {
				return fmt.Errorf("no password provided. Use --passwd or set %s", EnvPassword)
			}
			s, err := loginWithRetry(cmd, a, email, passwd, retries)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, newSessionView(s))
			}
			okLabel.Fprintln(out, "✓ Login successful")
			printSession(out, s)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&passwd, "passwd", "", "Password for authentication")
	cmd.Flags().UintVar(&retries, "retries", 0, "Retry this many times when the server cannot be reached")
	return cmd
}

// loginWithRetry retries network failures only; every other outcome is final.
func loginWithRetry(cmd *cobra.Command, a *app, email, passwd string, retries uint) (*session.Session, error) {
	ctx := cmd.Context()
	return retry.DoWithData(
		func() (*session.Session, error) {
			return a.manager.Login(ctx, email, passwd)
		},
		retry.Context(ctx),
		retry.Attempts(retries+1),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, session.ErrNetworkFailure)
		}),
		retry.OnRetry(func(n uint, err error) {
			if n >= retries {
				return
			}
			log.Debug().Uint("attempt", n+1).Err(err).Msg("login failed, retrying")
			warnLabel.Fprintf(cmd.ErrOrStderr(), "! %s Retrying...\n", session.UserMessage(err))
		}),
	)
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Long: `Sign out. The session's tokens, including the operator token kept while
impersonating, are revoked on the server when it can be reached; the local
session is cleared either way.`,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			a.manager.LogoutAndRevoke(cmd.Context())

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, map[string]string{"state": a.manager.State().String()})
			}
			okLabel.Fprintln(out, "✓ Logged out")
			return nil
		}),
	}
}
