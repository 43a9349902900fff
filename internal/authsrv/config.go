package authsrv

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Version is the supported config file format version
const Version = "0.1.0"

// AuthConfig holds token related configuration
type AuthConfig struct {
	SigningKey    string `toml:"signing_key" validate:"required,min=32"` // HMAC key for HS256 tokens
	TokenValidity string `toml:"token_validity" validate:"required"`     // e.g. "30m", "12h"
	SuperRole     string `toml:"super_role"`                             // role allowed to impersonate, default "admin"
}

// GroupConfig is a named set of roles
type GroupConfig struct {
	ID    int64    `toml:"id" validate:"gt=0"`
	Name  string   `toml:"name" validate:"required"`
	Roles []string `toml:"roles"`
}

// PositionConfig is a job position that grants membership in groups
type PositionConfig struct {
	ID     int64    `toml:"id" validate:"gt=0"`
	Name   string   `toml:"name" validate:"required"`
	Groups []string `toml:"groups"`
}

// UserConfig seeds a user. Either PasswordHash (bcrypt) or Password must be
// set; plain passwords are hashed at load time and are meant for development.
type UserConfig struct {
	ID           int64    `toml:"id" validate:"gt=0"`
	FirstName    string   `toml:"first_name" validate:"required"`
	LastName     string   `toml:"last_name"`
	Email        string   `toml:"email" validate:"required,email"`
	Status       string   `toml:"status" validate:"omitempty,oneof=active inactive"`
	PasswordHash string   `toml:"password_hash" validate:"required_without=Password"`
	Password     string   `toml:"password"`
	Roles        []string `toml:"roles"`
	Groups       []string `toml:"groups"`
	Positions    []string `toml:"positions"`
	Countries    []string `toml:"countries"`
}

// Config holds all configuration parameters for the auth service
type Config struct {
	FormatVersion  string           `toml:"format_version" validate:"required"`
	ServerHostName string           `toml:"server_hostname"`
	ServerPort     string           `toml:"server_port" validate:"required,numeric"`
	RequestTimeout string           `toml:"request_timeout"` // default 30s
	HandleCORS     bool             `toml:"handle_cors"`
	CORSOrigins    []string         `toml:"cors_origins" validate:"required_if=HandleCORS true"`
	Auth           AuthConfig       `toml:"auth"`
	Groups         []GroupConfig    `toml:"groups" validate:"dive"`
	Positions      []PositionConfig `toml:"positions" validate:"dive"`
	Users          []UserConfig     `toml:"users" validate:"required,min=1,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig reads and validates a TOML config file.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("config filename is required")
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}
	return ParseConfig(string(content))
}

// ParseConfig decodes and validates TOML config content.
func ParseConfig(content string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.Decode(content, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return cfg, nil
}

// ValidateConfig checks field constraints and cross references and fills in
// defaults.
func ValidateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if cfg.FormatVersion != Version {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}
	if _, err := cfg.Auth.GetTokenValidity(); err != nil {
		return fmt.Errorf("invalid auth.token_validity: %v", err)
	}
	if _, err := cfg.GetRequestTimeout(); err != nil {
		return fmt.Errorf("invalid request_timeout: %v", err)
	}
	if cfg.Auth.SuperRole == "" {
		cfg.Auth.SuperRole = "admin"
	}

	groups := make(map[string]bool, len(cfg.Groups))
	for _, g := range cfg.Groups {
		if groups[g.Name] {
			return fmt.Errorf("duplicate group: %s", g.Name)
		}
		groups[g.Name] = true
	}
	positions := make(map[string]bool, len(cfg.Positions))
	for _, p := range cfg.Positions {
		if positions[p.Name] {
			return fmt.Errorf("duplicate position: %s", p.Name)
		}
		positions[p.Name] = true
		for _, g := range p.Groups {
			if !groups[g] {
				return fmt.Errorf("position %s references unknown group %s", p.Name, g)
			}
		}
	}

	ids := make(map[int64]bool, len(cfg.Users))
	emails := make(map[string]bool, len(cfg.Users))
	for _, u := range cfg.Users {
		if ids[u.ID] {
			return fmt.Errorf("duplicate user id: %d", u.ID)
		}
		ids[u.ID] = true
		if emails[u.Email] {
			return fmt.Errorf("duplicate user email: %s", u.Email)
		}
		emails[u.Email] = true
		for _, g := range u.Groups {
			if !groups[g] {
				return fmt.Errorf("user %d references unknown group %s", u.ID, g)
			}
		}
		for _, p := range u.Positions {
			if !positions[p] {
				return fmt.Errorf("user %d references unknown position %s", u.ID, p)
			}
		}
	}
	return nil
}

// GetTokenValidity returns the token lifetime
func (a *AuthConfig) GetTokenValidity() (time.Duration, error) {
	d, err := time.ParseDuration(a.TokenValidity)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}

// GetRequestTimeout returns the per request timeout
func (c *Config) GetRequestTimeout() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(c.RequestTimeout)
}
