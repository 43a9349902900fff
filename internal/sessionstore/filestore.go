// Package sessionstore persists session records on disk.
package sessionstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tansive/adminconsole/internal/session"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the default name of the session file
const DefaultFile = "session.yaml"

var removeFile = os.Remove

// DefaultPath returns the default session file location in the OS specific
// config directory (e.g. ~/.config/adminconsole/session.yaml on Linux).
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "adminconsole", DefaultFile), nil
}

// FileStore is a session.Store backed by a YAML file readable only by the
// owner. Writes replace the file atomically.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ session.Store = (*FileStore)(nil)

// New returns a FileStore at path. An empty path selects DefaultPath.
func New(path string) (*FileStore, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return &FileStore{path: path}, nil
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the record. A missing or empty file yields a nil record.
func (s *FileStore) Load() (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to read session file: %w", err)
	}
	var rec session.Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unable to parse session file: %w", err)
	}
	if rec.IsZero() {
		return nil, nil
	}
	return &rec, nil
}

// Save writes rec to a temporary file in the same directory and renames it
// over the session file.
func (s *FileStore) Save(rec *session.Record) error {
	if rec.IsZero() {
		return s.Clear()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("unable to create session directory: %w", err)
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("unable to encode session: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("unable to create session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to set session file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to write session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to write session file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("unable to replace session file: %w", err)
	}
	return nil
}

// Clear removes the session file. If the file cannot be removed, for example
// because its directory is read-only, it is truncated instead; an empty file
// loads as no session.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := removeFile(s.path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	f, terr := os.OpenFile(s.path, os.O_WRONLY|os.O_TRUNC, 0)
	if terr != nil {
		return fmt.Errorf("unable to remove session file: %w", errors.Join(err, terr))
	}
	if terr := f.Close(); terr != nil {
		return fmt.Errorf("unable to remove session file: %w", errors.Join(err, terr))
	}
	return nil
}
