package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

// ConfigVersion is the config file format written by this CLI.
const ConfigVersion = "0.1.0"

// configConstraint accepts any config written with the same major and a
// minor version no newer than ours.
var configConstraint *semver.Constraints

func init() {
	var err error
	configConstraint, err = semver.NewConstraint("~0.1")
	if err != nil {
		panic(err)
	}
}

// IsConfigVersionCompatible reports whether a config file of the given format
// version can be read. Invalid version strings are not compatible.
func IsConfigVersionCompatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return configConstraint.Check(v)
}

// Config represents the configuration for the admin console CLI
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version"`
	// ServerURL is the URL and port of the backend auth service
	ServerURL string `yaml:"server_url"`
	// Timeout bounds each backend request, e.g. "15s"
	Timeout string `yaml:"timeout,omitempty"`
	// SessionFile overrides where the session is persisted
	SessionFile string `yaml:"session_file,omitempty"`
	// InsecureSkipVerify disables TLS certificate validation
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty"`
}

// GetDefaultConfigPath returns the default path for the config file
// It uses the OS-specific config directory (e.g., ~/.config/adminconsole on Linux)
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "adminconsole", DefaultConfigFile), nil
}

// LoadConfig reads the configuration from file and applies environment
// overrides. A missing file is reported with os.ErrNotExist.
func LoadConfig(file string) (*Config, error) {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	yamlStr, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	cfg, err := ParseConfig(yamlStr)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// ParseConfig decodes and validates config content.
func ParseConfig(content []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(content, &c); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}
	if !IsConfigVersionCompatible(c.Version) {
		return nil, fmt.Errorf("unsupported config version %q", c.Version)
	}
	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}
	c.ServerURL = MorphServer(c.ServerURL)
	return &c, nil
}

func (cfg *Config) applyEnv() {
	if server := os.Getenv(EnvServer); server != "" {
		cfg.ServerURL = MorphServer(server)
	}
}

// ValidateConfig checks for required fields and proper formatting
func (cfg *Config) ValidateConfig() error {
	if cfg.ServerURL == "" {
		return errors.New("server:port is required")
	}
	if !strings.Contains(strings.TrimPrefix(strings.TrimPrefix(cfg.ServerURL, "https://"), "http://"), ":") {
		return errors.New("server:port must include port number")
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid timeout %q", cfg.Timeout)
		}
	}
	return nil
}

// WriteConfig writes the configuration to file with owner-only permissions.
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	yamlStr, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}

	if err := os.WriteFile(file, yamlStr, 0o600); err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}
	return nil
}

// MorphServer ensures the server URL is properly formatted
// Adds https:// prefix if missing and removes trailing slashes
func MorphServer(server string) string {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if server == "" {
		return ""
	}
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "https://" + server
	}
	return server
}

// GetServerURL returns the properly formatted server URL
func (cfg *Config) GetServerURL() string {
	return MorphServer(cfg.ServerURL)
}

// GetToken returns no token; requests carry the session token explicitly.
func (cfg *Config) GetToken() string {
	return ""
}

// GetTimeout returns the configured request timeout, or zero for the default.
func (cfg *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return 0
	}
	return d
}

func newConfigCmd() *cobra.Command {
	var server, timeout string
	var insecure bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long: `Manage CLI configuration settings like the auth service address.

Examples:
  # Point the CLI at a local auth service
  adminctl config --server localhost:8650

  # Use a shorter request timeout
  adminctl config --server localhost:8650 --timeout 5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				return cmd.Help()
			}
			return setServerConfig(cmd, server, timeout, insecure)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "Set the server URL and port (e.g., example.com:8650)")
	cmd.Flags().StringVar(&timeout, "timeout", "", "Request timeout (e.g., 15s)")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "Skip TLS certificate validation")
	return cmd
}

// setServerConfig writes a fresh config file for server
func setServerConfig(cmd *cobra.Command, server, timeout string, insecure bool) error {
	configPath := configFile
	if configPath == "" {
		var err error
		configPath, err = GetDefaultConfigPath()
		if err != nil {
			return err
		}
	}

	cfg := &Config{
		Version:            ConfigVersion,
		ServerURL:          MorphServer(server),
		Timeout:            timeout,
		InsecureSkipVerify: insecure,
	}
	if existing, err := LoadConfig(configPath); err == nil {
		cfg.SessionFile = existing.SessionFile
	}
	if err := cfg.ValidateConfig(); err != nil {
		return err
	}
	if err := cfg.WriteConfig(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]string{
			"server":      cfg.ServerURL,
			"config_file": configPath,
		})
	}
	fmt.Fprintf(out, "Server configured: %s\n", cfg.ServerURL)
	fmt.Fprintf(out, "Config file: %s\n", configPath)
	return nil
}
