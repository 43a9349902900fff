package authclient

import (
	"strconv"
	"strings"

	"github.com/tansive/adminconsole/internal/session"
	"github.com/tidwall/gjson"
)

// ParseIdentity reads a user object. Ids may be numbers or numeric strings.
// When effective_roles is a non-empty array it is used as is; otherwise the
// role set is the union of the direct roles, the roles of every group and the
// roles of every group attached to the user's positions.
func ParseIdentity(r gjson.Result) *session.UserIdentity {
	id := parseID(r.Get("id"))
	if id == 0 {
		id = parseID(r.Get("user_id"))
	}
	positions := r.Get("user_positions")
	if !positions.Exists() {
		positions = r.Get("positions")
	}
	return &session.UserIdentity{
		ID:        id,
		FirstName: r.Get("first_name").String(),
		LastName:  r.Get("last_name").String(),
		Email:     r.Get("email").String(),
		Roles:     MergeRoles(r),
		Groups:    refs(r.Get("groups")),
		Positions: refs(positions),
		Countries: refs(r.Get("countries")),
	}
}

// MergeRoles computes the effective role set of a user object.
func MergeRoles(r gjson.Result) []string {
	if eff := r.Get("effective_roles"); eff.IsArray() && len(eff.Array()) > 0 {
		return session.NewRoleSet(roleNames(eff)...)
	}

	roles := roleNames(r.Get("roles"))
	for _, g := range r.Get("groups").Array() {
		roles = append(roles, roleNames(g.Get("roles"))...)
	}
	positions := r.Get("user_positions")
	if !positions.Exists() {
		positions = r.Get("positions")
	}
	for _, p := range positions.Array() {
		for _, g := range p.Get("groups").Array() {
			roles = append(roles, roleNames(g.Get("roles"))...)
		}
	}
	return session.NewRoleSet(roles...)
}

// roleNames accepts ["a", "b"] as well as [{"name": "a"}, ...].
func roleNames(r gjson.Result) []string {
	var names []string
	for _, v := range r.Array() {
		switch {
		case v.Type == gjson.String:
			names = append(names, v.String())
		case v.IsObject():
			names = append(names, v.Get("name").String())
		}
	}
	return session.NewRoleSet(names...)
}

func refs(r gjson.Result) []session.Ref {
	var out []session.Ref
	for _, v := range r.Array() {
		switch {
		case v.Type == gjson.String:
			out = append(out, session.Ref{Name: v.String()})
		case v.IsObject():
			out = append(out, session.Ref{ID: parseID(v.Get("id")), Name: v.Get("name").String()})
		}
	}
	return out
}

func parseID(v gjson.Result) int64 {
	switch v.Type {
	case gjson.Number:
		return v.Int()
	case gjson.String:
		id, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		if err != nil {
			return 0
		}
		return id
	default:
		return 0
	}
}
