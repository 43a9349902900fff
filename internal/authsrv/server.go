// Package authsrv is a reference implementation of the backend auth service
// used by the admin console: password login, impersonation tokens and the
// current user endpoint. It keeps its users in memory and is meant for
// development and tests.
package authsrv

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tansive/adminconsole/internal/common/httpx"
	commonmiddleware "github.com/tansive/adminconsole/internal/common/middleware"
)

// Server serves the auth API.
type Server struct {
	Router    *chi.Mux
	cfg       *Config
	directory *Directory
	tokens    *TokenService
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the clock used for token timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// CreateNewServer builds a Server from a validated config.
func CreateNewServer(cfg *Config, opts ...Option) (*Server, error) {
	s := &Server{
		Router: chi.NewRouter(),
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	dir, err := NewDirectory(cfg)
	if err != nil {
		return nil, err
	}
	validity, err := cfg.Auth.GetTokenValidity()
	if err != nil {
		return nil, ErrAuthSrv.MsgErr("invalid token validity", err)
	}
	s.directory = dir
	s.tokens = NewTokenService([]byte(cfg.Auth.SigningKey), validity, s.now)
	return s, nil
}

// Tokens exposes the token service.
func (s *Server) Tokens() *TokenService {
	return s.tokens
}

// MountHandlers installs middleware and routes.
func (s *Server) MountHandlers() {
	timeout, _ := s.cfg.GetRequestTimeout()

	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	s.Router.Use(commonmiddleware.SetTimeout(timeout))
	if s.cfg.HandleCORS {
		s.Router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", commonmiddleware.RequestIDHeader},
			ExposedHeaders:   []string{commonmiddleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	s.Router.Route("/auth", func(r chi.Router) {
		r.Method(http.MethodPost, "/login", httpx.WrapHttpRsp(s.login))
		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Method(http.MethodPost, "/impersonate/{userID}", httpx.WrapHttpRsp(s.impersonate))
			r.Method(http.MethodPost, "/impersonation/stop", httpx.WrapHttpRsp(s.stopImpersonation))
			r.Method(http.MethodPost, "/revoke", httpx.WrapHttpRsp(s.revoke))
		})
	})
	s.Router.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Method(http.MethodGet, "/users/me", httpx.WrapHttpRsp(s.me))
	})
	s.Router.Get("/ready", s.getReadiness)

	if zerolog.GlobalLevel() <= zerolog.TraceLevel {
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			log.Trace().Str("method", method).Str("route", route).Msg("route")
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("unable to walk routes")
		}
	}
}

func (s *Server) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

type ctxKey int

const authKey ctxKey = iota

// authContext is attached to requests that carry a valid token.
type authContext struct {
	user   *User
	claims *Claims
}

func withAuth(ctx context.Context, a *authContext) context.Context {
	return context.WithValue(ctx, authKey, a)
}

func authFrom(ctx context.Context) *authContext {
	a, _ := ctx.Value(authKey).(*authContext)
	return a
}
