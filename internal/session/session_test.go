package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRoleSet(t *testing.T) {
	assert.Equal(t, []string{"admin", "viewer"}, NewRoleSet("viewer", " admin", "", "viewer", "admin "))
	assert.Empty(t, NewRoleSet())
}

func TestSessionState(t *testing.T) {
	id := &UserIdentity{ID: 1}
	tests := []struct {
		name string
		s    *Session
		want State
	}{
		{"nil", nil, LoggedOut},
		{"no token", &Session{Identity: id}, LoggedOut},
		{"no identity", &Session{Token: "t"}, LoggedOut},
		{"logged in", &Session{Token: "t", Identity: id}, LoggedIn},
		{"impersonating", &Session{Token: "t", Identity: id, Impersonation: &ImpersonationState{}}, Impersonating},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.State())
		})
	}
	assert.Equal(t, "impersonating", Impersonating.String())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Grace Hopper", (&UserIdentity{FirstName: "Grace", LastName: "Hopper"}).DisplayName())
	assert.Equal(t, "g@example.com", (&UserIdentity{Email: "g@example.com"}).DisplayName())
	var u *UserIdentity
	assert.Empty(t, u.DisplayName())
	assert.False(t, u.HasRole("admin"))
}
