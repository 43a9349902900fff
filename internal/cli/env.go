package cli

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment overrides, read from the process environment or a .env file in
// the working directory.
const (
	EnvServer   = "ADMINCTL_SERVER"
	EnvEmail    = "ADMINCTL_EMAIL"
	EnvPassword = "ADMINCTL_PASSWORD"
)

// loadDotEnv loads .env from the working directory. Variables already set in
// the environment win.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	_ = godotenv.Load(filepath.Join(cwd, ".env")) // no error if .env doesn't exist
}

// firstNonEmpty returns the flag value, falling back to the environment.
func firstNonEmpty(flag, env string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(env)
}
