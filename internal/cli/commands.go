package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tansive/adminconsole/internal/common/logtrace"
	"github.com/tansive/adminconsole/internal/session"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
	logLevel   string
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var warnLabel = color.New(color.FgYellow)
var errorLabel = color.New(color.FgRed)

// NewRootCmd builds the adminctl command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "adminctl [command] [flags]",
		Short: "adminctl - sign in to the admin console backend and manage the session",
		Long: `adminctl is a command line interface for the admin console session.
It signs operators in, lets administrators act as another user, and answers
role checks the same way the console does.

Examples:
  # Configure the auth service
  adminctl config --server localhost:8650

  # Sign in
  adminctl login --email bob@example.com

  # Act as user 42, then return
  adminctl impersonate 42
  adminctl stop-impersonation`,
		PersistentPreRun: preRunHandlePersistents,
		SilenceErrors:    true, // Prevent Cobra from printing the error
		SilenceUsage:     true, // Prevent Cobra from printing usage on error
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "disabled", "Log level (debug, info, warn, error, disabled)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoAmICmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newImpersonateCmd())
	rootCmd.AddCommand(newStopImpersonationCmd())
	rootCmd.AddCommand(newCanCmd())
	rootCmd.AddCommand(newGetCmd())
	return rootCmd
}

// Execute runs the command tree. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if !errors.Is(err, ErrAlreadyHandled) {
			printError(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

// printError reports err to the operator. Session errors are shown by their
// user message; the technical detail is kept for JSON output.
func printError(w io.Writer, err error) {
	msg := err.Error()
	if errors.Is(err, session.ErrSession) {
		msg = session.UserMessage(err)
	}
	if jsonOutput {
		printJSON(w, map[string]string{
			"error":  msg,
			"detail": err.Error(),
		})
		return
	}
	errorLabel.Fprintf(w, "Error: %s\n", msg)
}

func preRunHandlePersistents(cmd *cobra.Command, args []string) {
	logtrace.InitLoggerWithWriter(cmd.ErrOrStderr(), logLevel)
	loadDotEnv()
}

// withApp loads the config and restores the session before running fn.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return errors.New("config file not found. Configure the CLI with \"adminctl config --server <host:port>\" first")
			}
			return err
		}
		a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		return fn(cmd, a, args)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of adminctl",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := configFile
			if configPath == "" {
				var err error
				if configPath, err = GetDefaultConfigPath(); err != nil {
					configPath = "unknown"
				}
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version":     getCLIVersion(),
					"config_file": configPath,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "adminctl %s\n", getCLIVersion())
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", configPath)
			return nil
		},
	}
}

// printJSON prints data as indented JSON
func printJSON(w io.Writer, data any) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON output: %w", err)
	}
	fmt.Fprintln(w, string(jsonData))
	return nil
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0"
}
