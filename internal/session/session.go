// Package session implements the authentication and impersonation session
// model of the admin console. A Manager owns the token, the resolved identity
// and the impersonation state, answers capability queries and keeps the
// persisted record in sync with memory.
package session

import (
	"slices"
	"strings"
	"time"
)

// State is the coarse lifecycle state of a session.
type State int

const (
	LoggedOut State = iota
	LoggedIn
	Impersonating
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case LoggedIn:
		return "logged_in"
	case Impersonating:
		return "impersonating"
	default:
		return "unknown"
	}
}

// Ref is a named reference to a group, position or country attached to a user.
type Ref struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// UserIdentity is the backend's view of a user. Roles is a sorted set of role
// names with group and position roles already merged in.
type UserIdentity struct {
	ID        int64    `json:"id" yaml:"id"`
	FirstName string   `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	Email     string   `json:"email,omitempty" yaml:"email,omitempty"`
	Roles     []string `json:"roles" yaml:"roles"`
	Groups    []Ref    `json:"groups,omitempty" yaml:"groups,omitempty"`
	Positions []Ref    `json:"positions,omitempty" yaml:"positions,omitempty"`
	Countries []Ref    `json:"countries,omitempty" yaml:"countries,omitempty"`
}

// NewRoleSet normalizes role names into a sorted set without blanks or
// duplicates.
func NewRoleSet(roles ...string) []string {
	set := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		set = append(set, r)
	}
	slices.Sort(set)
	return slices.Compact(set)
}

// HasRole reports whether role is in the identity's role set. No bypass is
// applied here; see Manager.HasRole.
func (u *UserIdentity) HasRole(role string) bool {
	if u == nil {
		return false
	}
	_, found := slices.BinarySearch(u.Roles, role)
	return found
}

// DisplayName returns "First Last", falling back to the email.
func (u *UserIdentity) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Clone returns a deep copy.
func (u *UserIdentity) Clone() *UserIdentity {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = slices.Clone(u.Roles)
	c.Groups = slices.Clone(u.Groups)
	c.Positions = slices.Clone(u.Positions)
	c.Countries = slices.Clone(u.Countries)
	return &c
}

// ImpersonationState records who started an impersonation and when.
type ImpersonationState struct {
	ImpersonatedBy UserIdentity `json:"impersonated_by" yaml:"impersonated_by"`
	StartedAt      time.Time    `json:"started_at" yaml:"started_at"`
}

// Clone returns a deep copy.
func (i *ImpersonationState) Clone() *ImpersonationState {
	if i == nil {
		return nil
	}
	return &ImpersonationState{
		ImpersonatedBy: *i.ImpersonatedBy.Clone(),
		StartedAt:      i.StartedAt,
	}
}

// Session is a point in time view of the authenticated session. Identity is
// the effective identity: the impersonated user while impersonating.
type Session struct {
	Token         string              `json:"-"`
	Identity      *UserIdentity       `json:"identity"`
	Impersonation *ImpersonationState `json:"impersonation,omitempty"`
}

// State derives the lifecycle state from the session contents.
func (s *Session) State() State {
	switch {
	case s == nil || s.Token == "" || s.Identity == nil:
		return LoggedOut
	case s.Impersonation != nil:
		return Impersonating
	default:
		return LoggedIn
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	return &Session{
		Token:         s.Token,
		Identity:      s.Identity.Clone(),
		Impersonation: s.Impersonation.Clone(),
	}
}
