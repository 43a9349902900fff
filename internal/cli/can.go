package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/tansive/adminconsole/internal/session"
)

func newCanCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "can ROLE...",
		Short: "Check whether the current user holds roles",
		Long: `Check roles against the effective user. By default any one of the roles
is enough; --all requires every one. The admin role passes every check.
Exits with status 1 when the check fails.

Examples:
  adminctl can route:users
  adminctl can --all viewer editor`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			guard := session.Guard{AnyOf: args}
			if all {
				guard = session.Guard{AllOf: args}
			}
			allowed := a.manager.Allows(guard)

			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := printJSON(out, map[string]any{
					"roles":   args,
					"all":     all,
					"allowed": allowed,
				}); err != nil {
					return err
				}
			} else if allowed {
				okLabel.Fprintf(out, "✓ allowed: %s\n", strings.Join(args, ", "))
			} else {
				errorLabel.Fprintf(out, "✗ denied: %s\n", strings.Join(args, ", "))
			}
			if !allowed {
				return ErrAlreadyHandled
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "Require every role instead of any")
	return cmd
}
