package session

// Guard is a declarative access requirement for a route or action. Every
// non-empty clause must hold. The zero Guard admits any authenticated user.
type Guard struct {
	Role  string   `json:"role,omitempty" yaml:"role,omitempty"`
	AnyOf []string `json:"any_of,omitempty" yaml:"any_of,omitempty"`
	AllOf []string `json:"all_of,omitempty" yaml:"all_of,omitempty"`
}

// IsAuthenticated reports whether a token and identity are present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.State() != LoggedOut
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.State()
}

// Token returns the current bearer token, or "" when logged out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	return m.session.Token
}

// IsCurrentToken reports whether token is the token of the current session.
// Callers holding a result obtained with an older token use it to detect that
// the result is stale.
func (m *Manager) IsCurrentToken(token string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return token != "" && m.session != nil && m.session.Token == token
}

// Snapshot returns a copy of the current session, or nil when logged out.
func (m *Manager) Snapshot() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Clone()
}

// CurrentIdentity returns a copy of the effective identity, or nil.
func (m *Manager) CurrentIdentity() *UserIdentity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	return m.session.Identity.Clone()
}

// IsImpersonating reports whether the session acts as another user.
func (m *Manager) IsImpersonating() bool {
	return m.State() == Impersonating
}

// ImpersonationMeta returns who started the impersonation and when, or nil.
func (m *Manager) ImpersonationMeta() *ImpersonationState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	return m.session.Impersonation.Clone()
}

// HasRole reports whether the effective identity holds role. The super role
// satisfies every role.
func (m *Manager) HasRole(role string) bool {
	return m.check(func(u *UserIdentity) bool {
		return u.HasRole(role)
	})
}

// HasAnyRole reports whether the effective identity holds at least one of
// roles. It is false for an empty list unless the super role applies.
func (m *Manager) HasAnyRole(roles ...string) bool {
	return m.check(func(u *UserIdentity) bool {
		return hasAny(u, roles)
	})
}

// HasAllRoles reports whether the effective identity holds every role.
func (m *Manager) HasAllRoles(roles ...string) bool {
	return m.check(func(u *UserIdentity) bool {
		return hasAll(u, roles)
	})
}

// CanAccess grants access when required is empty, otherwise when any of the
// required roles is held.
func (m *Manager) CanAccess(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	return m.HasAnyRole(required...)
}

// Allows evaluates g against the effective identity.
func (m *Manager) Allows(g Guard) bool {
	return m.check(func(u *UserIdentity) bool {
		if g.Role != "" && !u.HasRole(g.Role) {
			return false
		}
		if len(g.AnyOf) > 0 && !hasAny(u, g.AnyOf) {
			return false
		}
		if len(g.AllOf) > 0 && !hasAll(u, g.AllOf) {
			return false
		}
		return true
	})
}

func (m *Manager) check(pred func(*UserIdentity) bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session.State() == LoggedOut {
		return false
	}
	u := m.session.Identity
	if m.opts.superRole != "" && u.HasRole(m.opts.superRole) {
		return true
	}
	return pred(u)
}

func hasAny(u *UserIdentity, roles []string) bool {
	for _, r := range roles {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

func hasAll(u *UserIdentity, roles []string) bool {
	for _, r := range roles {
		if !u.HasRole(r) {
			return false
		}
	}
	return true
}
