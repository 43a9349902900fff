package session

import (
	"context"
	"fmt"
	"sync"
)

// fakeBackend is an in-memory Backend. Tokens are opaque strings mapped to
// user ids; impersonation tokens remember their operator.
type fakeBackend struct {
	mu        sync.Mutex
	users     map[int64]*UserIdentity
	passwords map[string]string
	tokens    map[string]int64
	operators map[string]int64
	seq       int

	// forced failures, checked before normal processing
	loginErr  error
	impErr    error
	stopErr   error
	whoAmIErr error
	revokeErr error

	// when gate is set, Login and Impersonate signal entered and wait for
	// gate to be closed or the context to end
	gate    chan struct{}
	entered chan struct{}

	whoAmICalls int
	stopCalls   int
	revoked     []string
}

func newFakeBackend() *fakeBackend {
	f := &fakeBackend{
		users:     make(map[int64]*UserIdentity),
		passwords: make(map[string]string),
		tokens:    make(map[string]int64),
		operators: make(map[string]int64),
	}
	f.addUser(&UserIdentity{ID: 1, FirstName: "Bob", LastName: "Admin", Email: "bob@example.com", Roles: []string{"admin"}}, "bob-password")
	f.addUser(&UserIdentity{ID: 7, FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Roles: []string{"viewer", "editor"}}, "grace-password")
	f.addUser(&UserIdentity{ID: 42, FirstName: "Alice", LastName: "Liddell", Email: "alice@example.com", Roles: []string{"viewer"}}, "correct-password")
	return f
}

func (f *fakeBackend) addUser(u *UserIdentity, password string) {
	f.users[u.ID] = u
	f.passwords[u.Email] = password
}

func (f *fakeBackend) issue(userID int64) string {
	f.seq++
	tok := fmt.Sprintf("tok-%d-%d", userID, f.seq)
	f.tokens[tok] = userID
	return tok
}

func (f *fakeBackend) revoke(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
	delete(f.operators, token)
}

func (f *fakeBackend) valid(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tokens[token]
	return ok
}

func (f *fakeBackend) wait(ctx context.Context) error {
	if f.gate == nil {
		return nil
	}
	f.entered <- struct{}{}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) Login(ctx context.Context, email, password string) (*Grant, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	pw, ok := f.passwords[email]
	if !ok || pw != password {
		return nil, ErrInvalidCredentials.Msg("Invalid credentials")
	}
	for id, u := range f.users {
		if u.Email == email {
			return &Grant{Token: f.issue(id), UserID: id, Identity: u.Clone()}, nil
		}
	}
	return nil, ErrInvalidCredentials.Msg("Invalid credentials")
}

func (f *fakeBackend) Impersonate(ctx context.Context, token string, target int64) (*Grant, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.impErr != nil {
		return nil, f.impErr
	}
	opID, ok := f.tokens[token]
	if !ok {
		return nil, ErrSessionExpired.Msg("Could not validate credentials")
	}
	if !f.users[opID].HasRole("admin") {
		return nil, ErrForbidden.Msg("Not authorized")
	}
	u, ok := f.users[target]
	if !ok {
		return nil, ErrNotFound.Msg("Target user not found")
	}
	tok := f.issue(target)
	f.operators[tok] = opID
	return &Grant{Token: tok, UserID: target, Identity: u.Clone(), ImpersonatedBy: f.users[opID].Clone()}, nil
}

func (f *fakeBackend) StopImpersonation(ctx context.Context, token string) (*Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	if _, ok := f.tokens[token]; !ok {
		return nil, ErrSessionExpired.Msg("Could not validate credentials")
	}
	opID, ok := f.operators[token]
	if !ok {
		return nil, ErrNotImpersonating.Msg("Not currently impersonating")
	}
	return &Grant{Token: f.issue(opID), UserID: opID, Identity: f.users[opID].Clone()}, nil
}

func (f *fakeBackend) WhoAmI(ctx context.Context, token string) (*UserIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.whoAmICalls++
	if f.whoAmIErr != nil {
		return nil, f.whoAmIErr
	}
	id, ok := f.tokens[token]
	if !ok {
		return nil, ErrSessionExpired.Msg("Could not validate credentials")
	}
	return f.users[id].Clone(), nil
}

func (f *fakeBackend) Revoke(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	if f.revokeErr != nil {
		return f.revokeErr
	}
	if _, ok := f.tokens[token]; !ok {
		return ErrSessionExpired.Msg("Could not validate credentials")
	}
	delete(f.tokens, token)
	delete(f.operators, token)
	return nil
}

func (f *fakeBackend) revokedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

// failingStore wraps a MemoryStore and fails writes on demand.
type failingStore struct {
	*MemoryStore
	saveErr  error
	loadErr  error
	clearErr error
}

func (s *failingStore) Clear() error {
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.MemoryStore.Clear()
}

func (s *failingStore) Save(rec *Record) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryStore.Save(rec)
}

func (s *failingStore) Load() (*Record, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.MemoryStore.Load()
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) reasons() []Reason {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Reason
	for _, ev := range r.events {
		out = append(out, ev.Reason)
	}
	return out
}
