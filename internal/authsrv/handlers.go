package authsrv

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/tansive/adminconsole/internal/common/httpx"
)

const timeLayout = "2006-01-02 15:04:05"

type userRef struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type loginRsp struct {
	AccessToken       string   `json:"access_token"`
	TokenType         string   `json:"token_type"`
	UserID            int64    `json:"user_id"`
	FirstName         string   `json:"first_name"`
	LastName          string   `json:"last_name"`
	Email             string   `json:"email"`
	Roles             []string `json:"roles"`
	LastLoginDateTime string   `json:"last_login_datetime"`
}

type actingAs struct {
	userRef
	Roles []string `json:"roles"`
}

type impersonateRsp struct {
	AccessToken    string   `json:"access_token"`
	TokenType      string   `json:"token_type"`
	Impersonated   bool     `json:"impersonated"`
	ImpersonatedBy userRef  `json:"impersonated_by"`
	ActingAs       actingAs `json:"acting_as"`
}

type stopImpersonationRsp struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Impersonated bool   `json:"impersonated"`
	UserID       int64  `json:"user_id"`
}

type groupRsp struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

type positionRsp struct {
	ID     int64      `json:"id"`
	Name   string     `json:"name"`
	Groups []groupRsp `json:"groups"`
}

type meRsp struct {
	ID             int64         `json:"id"`
	FirstName      string        `json:"first_name"`
	LastName       string        `json:"last_name"`
	Email          string        `json:"email"`
	Status         string        `json:"status"`
	Roles          []string      `json:"roles"`
	Groups         []groupRsp    `json:"groups"`
	UserPositions  []positionRsp `json:"user_positions"`
	Countries      []string      `json:"countries"`
	Impersonated   bool          `json:"impersonated"`
	ImpersonatedBy *userRef      `json:"impersonated_by,omitempty"`
}

func refOf(u *User) userRef {
	return userRef{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Server) login(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	form, err := httpx.GetFormValues(r, "username", "password")
	if err != nil {
		return nil, err
	}
	user, err := s.directory.Authenticate(form["username"], form["password"])
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Msg("login rejected")
		return nil, err
	}
	token, _, err := s.tokens.Issue(ctx, user.ID, 0)
	if err != nil {
		return nil, err
	}
	at := s.now().UTC()
	s.directory.RecordLogin(user.ID, at)
	log.Ctx(ctx).Info().Int64("user_id", user.ID).Msg("user logged in")

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &loginRsp{
			AccessToken:       token,
			TokenType:         "bearer",
			UserID:            user.ID,
			FirstName:         user.FirstName,
			LastName:          user.LastName,
			Email:             user.Email,
			Roles:             nonNil(user.Roles),
			LastLoginDateTime: at.Format(timeLayout),
		},
	}, nil
}

func (s *Server) impersonate(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	auth := authFrom(ctx)
	if auth.claims.Impersonated {
		return nil, ErrAlreadyImpersonating
	}
	if !auth.user.HasRole(s.cfg.Auth.SuperRole) {
		log.Ctx(ctx).Warn().Int64("user_id", auth.user.ID).Msg("impersonation not authorized")
		return nil, ErrNotAuthorized
	}
	targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || targetID <= 0 {
		return nil, ErrInvalidUserID
	}
	target, ok := s.directory.Get(targetID)
	if !ok {
		return nil, ErrTargetNotFound
	}
	if target.ID == auth.user.ID {
		return nil, ErrAlreadyThisUser
	}

	token, _, err := s.tokens.Issue(ctx, target.ID, auth.user.ID)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().
		Int64("operator_id", auth.user.ID).
		Int64("user_id", target.ID).
		Msg("impersonation started")

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &impersonateRsp{
			AccessToken:    token,
			TokenType:      "bearer",
			Impersonated:   true,
			ImpersonatedBy: refOf(auth.user),
			ActingAs: actingAs{
				userRef: refOf(target),
				Roles:   nonNil(target.Roles),
			},
		},
	}, nil
}

func (s *Server) stopImpersonation(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	auth := authFrom(ctx)
	if !auth.claims.Impersonated {
		return nil, ErrNotImpersonating
	}
	operator, ok := s.directory.Get(auth.claims.ImpersonatedBy)
	if !ok || !operator.Active() {
		return nil, ErrNotImpersonating
	}
	token, _, err := s.tokens.Issue(ctx, operator.ID, 0)
	if err != nil {
		return nil, err
	}
	// the impersonation token is spent
	s.tokens.Revoke(auth.claims)
	log.Ctx(ctx).Info().Int64("user_id", operator.ID).Msg("impersonation stopped")

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &stopImpersonationRsp{
			AccessToken: token,
			TokenType:   "bearer",
			UserID:      operator.ID,
		},
	}, nil
}

func (s *Server) revoke(r *http.Request) (*httpx.Response, error) {
	auth := authFrom(r.Context())
	s.tokens.Revoke(auth.claims)
	log.Ctx(r.Context()).Info().Int64("user_id", auth.user.ID).Msg("token revoked")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]bool{"revoked": true},
	}, nil
}

func (s *Server) me(r *http.Request) (*httpx.Response, error) {
	auth := authFrom(r.Context())
	u := auth.user
	rsp := &meRsp{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		Status:        u.Status,
		Roles:         nonNil(u.Roles),
		Groups:        []groupRsp{},
		UserPositions: []positionRsp{},
		Countries:     nonNil(u.Countries),
		Impersonated:  auth.claims.Impersonated,
	}
	if rsp.Status == "" {
		rsp.Status = "active"
	}
	for _, g := range u.Groups {
		rsp.Groups = append(rsp.Groups, groupRsp{ID: g.ID, Name: g.Name, Roles: nonNil(g.Roles)})
	}
	for _, p := range u.Positions {
		pr := positionRsp{ID: p.ID, Name: p.Name, Groups: []groupRsp{}}
		for _, g := range p.Groups {
			pr.Groups = append(pr.Groups, groupRsp{ID: g.ID, Name: g.Name, Roles: nonNil(g.Roles)})
		}
		rsp.UserPositions = append(rsp.UserPositions, pr)
	}
	if auth.claims.Impersonated {
		if op, ok := s.directory.Get(auth.claims.ImpersonatedBy); ok {
			ref := refOf(op)
			rsp.ImpersonatedBy = &ref
		}
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: rsp}, nil
}

// requireToken validates the bearer token and loads its user.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Ctx(ctx).Warn().Msg("missing or invalid authorization header")
			w.Header().Set("WWW-Authenticate", "Bearer")
			httpx.ErrUnAuthorized().Send(w)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		claims, err := s.tokens.Validate(token)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("token validation failed")
			w.Header().Set("WWW-Authenticate", "Bearer")
			httpx.SendError(w, ErrInvalidToken)
			return
		}
		userID, _ := claims.UserID()
		user, ok := s.directory.Get(userID)
		if !ok || !user.Active() {
			w.Header().Set("WWW-Authenticate", "Bearer")
			httpx.SendError(w, ErrInvalidToken)
			return
		}
		ctx = withAuth(ctx, &authContext{user: user, claims: claims})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
