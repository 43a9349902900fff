package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tansive/adminconsole/internal/authclient"
	"github.com/tansive/adminconsole/internal/session"
)

// sessionView is the JSON shape of a session. The token is never printed.
type sessionView struct {
	State          string                `json:"state"`
	Identity       *session.UserIdentity `json:"identity,omitempty"`
	ImpersonatedBy *session.UserIdentity `json:"impersonated_by,omitempty"`
	StartedAt      *time.Time            `json:"impersonation_started_at,omitempty"`
	ExpiresAt      *time.Time            `json:"token_expires_at,omitempty"`
}

func newSessionView(s *session.Session) sessionView {
	v := sessionView{State: s.State().String()}
	if s == nil {
		return v
	}
	v.Identity = s.Identity
	if s.Impersonation != nil {
		v.ImpersonatedBy = &s.Impersonation.ImpersonatedBy
		v.StartedAt = &s.Impersonation.StartedAt
	}
	if info, ok := authclient.InspectToken(s.Token); ok && !info.ExpiresAt.IsZero() {
		v.ExpiresAt = &info.ExpiresAt
	}
	return v
}

// printSession prints s for a human reader.
func printSession(w io.Writer, s *session.Session) {
	v := newSessionView(s)
	if v.Identity == nil {
		fmt.Fprintln(w, "Not signed in")
		return
	}
	fmt.Fprintf(w, "User: %s (id %d)\n", v.Identity.DisplayName(), v.Identity.ID)
	if v.Identity.Email != "" {
		fmt.Fprintf(w, "Email: %s\n", v.Identity.Email)
	}
	fmt.Fprintf(w, "Roles: %s\n", joinOrNone(v.Identity.Roles))
	if len(v.Identity.Groups) > 0 {
		fmt.Fprintf(w, "Groups: %s\n", joinRefs(v.Identity.Groups))
	}
	if len(v.Identity.Positions) > 0 {
		fmt.Fprintf(w, "Positions: %s\n", joinRefs(v.Identity.Positions))
	}
	if len(v.Identity.Countries) > 0 {
		fmt.Fprintf(w, "Countries: %s\n", joinRefs(v.Identity.Countries))
	}
	if v.ImpersonatedBy != nil {
		warnLabel.Fprintf(w, "Impersonated by: %s (id %d) since %s\n",
			v.ImpersonatedBy.DisplayName(), v.ImpersonatedBy.ID,
			v.StartedAt.Local().Format("2006-01-02 15:04:05 MST"))
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func joinRefs(refs []session.Ref) string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.Name != "" {
			names = append(names, r.Name)
		} else {
			names = append(names, fmt.Sprintf("#%d", r.ID))
		}
	}
	return strings.Join(names, ", ")
}
