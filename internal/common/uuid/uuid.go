// Package uuid wraps github.com/google/uuid with UUIDv7 (time-ordered) as the
// default version. It is used for request IDs and token identifiers.
package uuid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UUID represents a UUID, aliased from github.com/google/uuid.UUID
type UUID = uuid.UUID

// Nil is the zero UUID value.
var Nil = uuid.Nil

// NewRandom returns a new UUIDv7 and any error encountered during generation.
func NewRandom() (UUID, error) {
	return uuid.NewV7()
}

// New returns a new UUIDv7. Panics if UUID generation fails.
func New() UUID {
	return uuid.Must(uuid.NewV7())
}

// Parse parses a UUID string into a UUID value.
func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

// IsUUIDv7 reports whether the given UUID is a UUIDv7.
func IsUUIDv7(id UUID) bool {
	return id.Version() == uuid.Version(7)
}

// NewRequestID returns a string identifier for tracing a single request. It
// never fails: if the random source errors, a timestamp based ID is returned.
func NewRequestID() string {
	u, err := NewRandom()
	if err == nil {
		return u.String()
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}
