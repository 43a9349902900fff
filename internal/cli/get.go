package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tansive/adminconsole/internal/common/httpclient"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get PATH",
		Short: "Fetch a backend resource with the current session",
		Long: `Send an authenticated GET request and print the response. If the server
rejects the token the session is ended and you are asked to sign in again.

Example:
  adminctl get /users/me`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
			body, err := a.api.Do(cmd.Context(), httpclient.RequestOptions{
				Method: http.MethodGet,
				Path:   path,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, body, "", "  "); err != nil {
				fmt.Fprintln(out, string(body))
				return nil
			}
			fmt.Fprintln(out, pretty.String())
			return nil
		}),
	}
}
