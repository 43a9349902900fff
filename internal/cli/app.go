package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/tansive/adminconsole/internal/authclient"
	"github.com/tansive/adminconsole/internal/common/httpclient"
	"github.com/tansive/adminconsole/internal/session"
	"github.com/tansive/adminconsole/internal/sessionstore"
)

// app is the per-invocation wiring of config, backend client and session.
type app struct {
	cfg     *Config
	api     *authclient.API
	manager *session.Manager
	store   *sessionstore.FileStore
}

// newApp builds the session manager for cfg and restores any persisted
// session. Session events are reported on w.
func newApp(ctx context.Context, cfg *Config, w io.Writer) (*app, error) {
	store, err := sessionstore.New(cfg.SessionFile)
	if err != nil {
		return nil, err
	}
	hc := httpclient.NewClient(cfg, httpclient.ClientOptions{
		DisableCertValidation: cfg.InsecureSkipVerify,
	})
	client := authclient.New(hc)

	var opts []session.Option
	if d := cfg.GetTimeout(); d > 0 {
		opts = append(opts, session.WithTimeout(d))
	}
	m := session.New(client, store, opts...)
	m.Subscribe(func(ev session.Event) {
		if ev.Reason == session.ReasonExpired {
			warnLabel.Fprintln(w, "! Session expired. Sign in again with \"adminctl login\".")
		}
		if errors.Is(ev.Err, session.ErrStorage) {
			warnLabel.Fprintf(w, "! The stored session in %s could not be removed. Delete it manually.\n", store.Path())
		}
	})

	a := &app{
		cfg:     cfg,
		api:     authclient.NewAPI(hc, m),
		manager: m,
		store:   store,
	}

	if err := m.Hydrate(ctx); err != nil {
		switch {
		case errors.Is(err, session.ErrNetworkFailure):
			// keep the cached identity and let the command decide
			log.Debug().Err(err).Msg("session restored offline")
			warnLabel.Fprintln(w, "! Server unreachable; showing cached session.")
		case errors.Is(err, session.ErrSessionExpired):
			// reported through the event above
		default:
			return nil, fmt.Errorf("unable to restore session: %w", err)
		}
	}
	return a, nil
}

// requireSession fails when nobody is signed in.
func (a *app) requireSession() error {
	if !a.manager.IsAuthenticated() {
		return session.ErrNotAuthenticated
	}
	return nil
}
