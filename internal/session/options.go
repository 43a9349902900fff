package session

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultSuperRole = "admin"
)

type options struct {
	timeout   time.Duration
	superRole string
	now       func() time.Time
	logger    zerolog.Logger
}

func defaultOptions() options {
	return options{
		timeout:   DefaultTimeout,
		superRole: DefaultSuperRole,
		now:       time.Now,
		logger:    log.Logger,
	}
}

// Option configures a Manager.
type Option func(*options)

// WithTimeout bounds every backend call made by a mutation. A call that
// exceeds it fails with ErrNetworkFailure. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithSuperRole sets the role that satisfies every capability query. An
// empty name disables the bypass.
func WithSuperRole(role string) Option {
	return func(o *options) {
		o.superRole = role
	}
}

// WithClock overrides the clock used to stamp impersonation start times.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger used when no logger is attached to the context.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
