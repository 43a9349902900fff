package authsrv

import (
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Group is a named set of roles.
type Group struct {
	ID    int64
	Name  string
	Roles []string
}

// Position grants membership in groups.
type Position struct {
	ID     int64
	Name   string
	Groups []*Group
}

// User is a directory entry.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	Status       string
	passwordHash []byte
	Roles        []string
	Groups       []*Group
	Positions    []*Position
	Countries    []string
	LastLogin    time.Time
}

// Active reports whether the user may sign in.
func (u *User) Active() bool {
	return u.Status == "" || u.Status == "active"
}

// EffectiveRoles is the sorted union of direct, group and position roles.
func (u *User) EffectiveRoles() []string {
	roles := slices.Clone(u.Roles)
	for _, g := range u.Groups {
		roles = append(roles, g.Roles...)
	}
	for _, p := range u.Positions {
		for _, g := range p.Groups {
			roles = append(roles, g.Roles...)
		}
	}
	slices.Sort(roles)
	return slices.Compact(roles)
}

// HasRole checks the effective roles.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.EffectiveRoles(), role)
}

// Directory is the in-memory user store seeded from config.
type Directory struct {
	mu      sync.RWMutex
	byID    map[int64]*User
	byEmail map[string]*User
}

// NewDirectory builds the directory, hashing plain text passwords.
func NewDirectory(cfg *Config) (*Directory, error) {
	groups := make(map[string]*Group, len(cfg.Groups))
	for _, g := range cfg.Groups {
		groups[g.Name] = &Group{ID: g.ID, Name: g.Name, Roles: slices.Clone(g.Roles)}
	}
	positions := make(map[string]*Position, len(cfg.Positions))
	for _, p := range cfg.Positions {
		pos := &Position{ID: p.ID, Name: p.Name}
		for _, name := range p.Groups {
			pos.Groups = append(pos.Groups, groups[name])
		}
		positions[p.Name] = pos
	}

	d := &Directory{
		byID:    make(map[int64]*User, len(cfg.Users)),
		byEmail: make(map[string]*User, len(cfg.Users)),
	}
	for _, uc := range cfg.Users {
		hash := []byte(uc.PasswordHash)
		if len(hash) == 0 {
			var err error
			hash, err = bcrypt.GenerateFromPassword([]byte(uc.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, ErrAuthSrv.MsgErr("unable to hash password", err)
			}
		}
		u := &User{
			ID:           uc.ID,
			FirstName:    uc.FirstName,
			LastName:     uc.LastName,
			Email:        uc.Email,
			Status:       uc.Status,
			passwordHash: hash,
			Roles:        slices.Clone(uc.Roles),
			Countries:    slices.Clone(uc.Countries),
		}
		for _, name := range uc.Groups {
			u.Groups = append(u.Groups, groups[name])
		}
		for _, name := range uc.Positions {
			u.Positions = append(u.Positions, positions[name])
		}
		d.byID[u.ID] = u
		d.byEmail[strings.ToLower(u.Email)] = u
	}
	return d, nil
}

// Authenticate checks an email and password. Unknown users and wrong
// passwords produce the same error.
func (d *Directory) Authenticate(email, password string) (*User, error) {
	d.mu.RLock()
	u, ok := d.byEmail[strings.ToLower(strings.TrimSpace(email))]
	d.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Active() {
		return nil, ErrInactiveUser
	}
	return u, nil
}

// Get looks up a user by id.
func (d *Directory) Get(id int64) (*User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	return u, ok
}

// RecordLogin stamps the user's last login time.
func (d *Directory) RecordLogin(id int64, at time.Time) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok {
		return time.Time{}
	}
	prev := u.LastLogin
	u.LastLogin = at
	return prev
}
