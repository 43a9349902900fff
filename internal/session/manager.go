package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var errIdentityMismatch = ErrNetworkFailure.New("backend returned an unexpected identity")

type credentials struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// Manager owns the session. The zero value is not usable; construct with New.
//
// Mutations (Login, StartImpersonation, StopImpersonation, Hydrate) run one at
// a time; a mutation started while another is in flight fails with
// ErrMutationInFlight. Backend calls happen outside the state lock, so reads
// keep observing the previous state until the mutation commits. Logout and
// ExpireSession never wait for a mutation and invalidate any mutation that
// started before them.
type Manager struct {
	backend Backend
	store   Store
	opts    options

	inflight sync.Mutex

	mu            sync.RWMutex
	session       *Session
	originalToken string
	epoch         uint64
	pending       []Event

	notifyMu sync.Mutex
	subsMu   sync.Mutex
	subs     map[int]func(Event)
	nextSub  int
}

// New returns a Manager in the LoggedOut state. Call Hydrate to restore a
// persisted session.
func New(backend Backend, store Store, opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		backend: backend,
		store:   store,
		opts:    o,
		subs:    make(map[int]func(Event)),
	}
}

func (m *Manager) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &m.opts.logger
}

// Hydrate restores the persisted session and verifies its token with the
// backend. A rejected token clears the store and returns ErrSessionExpired.
// If the backend cannot be reached the cached identity is restored and
// ErrNetworkFailure is returned; the manager is usable but unverified.
func (m *Manager) Hydrate(ctx context.Context) error {
	if !m.inflight.TryLock() {
		return ErrMutationInFlight
	}
	defer m.inflight.Unlock()

	epoch := m.currentEpoch()
	rec, err := m.store.Load()
	if err != nil {
		m.log(ctx).Error().Err(err).Msg("unable to load persisted session")
		return ErrStorage.Err(err)
	}
	if rec.IsZero() {
		return nil
	}

	identity, err := m.whoAmI(ctx, rec.Token)
	switch {
	case err == nil:
		next := &Session{Token: rec.Token, Identity: identity}
		original := ""
		if rec.Impersonation != nil {
			next.Impersonation = rec.Impersonation.Clone()
			original = rec.OriginalToken
		}
		if err := m.commit(epoch, next, original, ReasonHydrated); err != nil {
			return err
		}
		m.log(ctx).Info().Int64("user_id", identity.ID).Str("state", next.State().String()).Msg("session restored")
		return nil
	case errors.Is(err, ErrNetworkFailure):
		identity := rec.Identity.Clone()
		if identity == nil {
			identity = &UserIdentity{ID: rec.UserID}
		}
		normalize(identity)
		next := &Session{Token: rec.Token, Identity: identity, Impersonation: rec.Impersonation.Clone()}
		original := ""
		if next.Impersonation != nil {
			original = rec.OriginalToken
		}
		if err := m.swap(epoch, next, original, ReasonHydrated, err, false); err != nil {
			return err
		}
		m.log(ctx).Warn().Err(err).Int64("user_id", identity.ID).Msg("session restored from cache; backend unreachable")
		return err
	default:
		err = asExpired(err)
		if _, ok := m.end(ctx, ReasonExpired, err, ""); !ok {
			m.mu.Lock()
			m.enqueue(Event{From: LoggedOut, To: LoggedOut, Reason: ReasonExpired, Err: err})
			m.mu.Unlock()
			m.flush()
		}
		return err
	}
}

// Login authenticates with email and password. On success the session is
// LoggedIn with the identity resolved by the backend and any previous
// session, including an impersonation, is replaced. On failure the state is
// unchanged.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if err := validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return nil, ErrInvalidInput.MsgErr("email and password are required", err)
	}
	if !m.inflight.TryLock() {
		return nil, ErrMutationInFlight
	}
	defer m.inflight.Unlock()

	epoch := m.currentEpoch()
	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	grant, err := m.backend.Login(ctx, email, password)
	if err != nil {
		err = classify(err)
		m.log(ctx).Warn().Err(err).Msg("login failed")
		return nil, err
	}
	if grant == nil || grant.Token == "" {
		return nil, ErrNetworkFailure.Msg("login response did not include a token")
	}
	identity, err := m.resolveIssued(ctx, grant.Token, grant.UserID)
	if err != nil {
		m.log(ctx).Warn().Err(err).Msg("unable to resolve identity after login")
		return nil, err
	}

	next := &Session{Token: grant.Token, Identity: identity}
	if err := m.commit(epoch, next, "", ReasonLogin); err != nil {
		return nil, err
	}
	m.log(ctx).Info().Int64("user_id", identity.ID).Msg("logged in")
	return next.Clone(), nil
}

// Logout clears the session and the persisted record. It never fails and is
// a no-op when already logged out, except that a mutation still in flight
// will not commit. If the persisted record cannot be removed the logout event
// carries an ErrStorage error.
func (m *Manager) Logout() {
	m.end(context.Background(), ReasonLogout, nil, "")
}

// LogoutAndRevoke logs out like Logout, then asks the backend to revoke the
// dropped tokens, including a retained operator token. Revocation failures
// are logged and never reported as expiry.
func (m *Manager) LogoutAndRevoke(ctx context.Context) {
	dropped, _ := m.end(ctx, ReasonLogout, nil, "")
	m.revoke(ctx, dropped...)
}

// ExpireSession forces the LoggedOut state after the backend rejected the
// current token. cause is reported to observers.
func (m *Manager) ExpireSession(cause error) {
	m.end(context.Background(), ReasonExpired, asExpired(cause), "")
}

// ExpireToken expires the session only if token is still the current token,
// so a late rejection of a superseded token cannot end a newer session. It
// reports whether the session was expired.
func (m *Manager) ExpireToken(token string, cause error) bool {
	if token == "" {
		return false
	}
	_, ok := m.end(context.Background(), ReasonExpired, asExpired(cause), token)
	return ok
}

// HandleError expires the session when err signals a rejected token and
// returns err unchanged.
func (m *Manager) HandleError(err error) error {
	if errors.Is(err, ErrSessionExpired) {
		m.end(context.Background(), ReasonExpired, err, "")
	}
	return err
}

func asExpired(err error) error {
	if err == nil {
		return ErrSessionExpired
	}
	if errors.Is(err, ErrSessionExpired) {
		return err
	}
	return ErrSessionExpired.Err(err)
}

// end moves to LoggedOut and clears the store. When token is set the session
// is ended only if it still holds that token. It returns the tokens the
// session held and whether a session was ended.
func (m *Manager) end(ctx context.Context, reason Reason, cause error, token string) ([]string, bool) {
	m.mu.Lock()
	if token != "" && (m.session == nil || m.session.Token != token) {
		m.mu.Unlock()
		return nil, false
	}
	from := m.session.State()
	storeErr := m.clearStore(ctx)
	// In-flight mutations must not commit over a logout, even a no-op one.
	m.epoch++
	if from == LoggedOut && m.originalToken == "" {
		m.mu.Unlock()
		return nil, false
	}
	var dropped []string
	if m.session != nil {
		dropped = append(dropped, m.session.Token)
	}
	if m.originalToken != "" {
		dropped = append(dropped, m.originalToken)
	}
	m.session = nil
	m.originalToken = ""
	ev := Event{From: from, To: LoggedOut, Reason: reason, Err: cause}
	if storeErr != nil {
		ev.Err = storeErr
		if cause != nil {
			ev.Err = errors.Join(cause, storeErr)
		}
	}
	m.enqueue(ev)
	m.mu.Unlock()
	m.flush()

	if reason == ReasonExpired {
		m.log(ctx).Warn().Err(cause).Str("reason", string(reason)).Msg("session ended")
	} else {
		m.log(ctx).Info().Str("reason", string(reason)).Msg("session ended")
	}
	return dropped, true
}

// clearStore removes the persisted record. When Clear fails the record is
// overwritten with an empty one, so a later Hydrate finds nothing. The error
// is non-nil only if a token may still be persisted. Called with m.mu held.
func (m *Manager) clearStore(ctx context.Context) error {
	err := m.store.Clear()
	if err == nil {
		return nil
	}
	m.log(ctx).Warn().Err(err).Msg("unable to clear persisted session; overwriting it")
	if serr := m.store.Save(&Record{}); serr != nil {
		m.log(ctx).Error().Err(serr).Msg("persisted session could not be removed")
		return ErrStorage.Err(errors.Join(err, serr))
	}
	return nil
}

// revoke asks the backend to invalidate tokens. Failures are only logged.
func (m *Manager) revoke(ctx context.Context, tokens ...string) {
	r, ok := m.backend.(Revoker)
	if !ok {
		return
	}
	for _, token := range tokens {
		if token == "" {
			continue
		}
		rctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
		err := r.Revoke(rctx, token)
		cancel()
		if err != nil {
			m.log(ctx).Debug().Err(err).Msg("token revoke failed")
		}
	}
}

// StartImpersonation switches the session to act as targetUserID. The
// operator's token is retained so StopImpersonation can return to it.
func (m *Manager) StartImpersonation(ctx context.Context, targetUserID int64) (*Session, error) {
	if targetUserID <= 0 {
		return nil, ErrInvalidInput.Msg("target user id must be positive")
	}
	if !m.inflight.TryLock() {
		return nil, ErrMutationInFlight
	}
	defer m.inflight.Unlock()

	m.mu.RLock()
	current := m.session.Clone()
	epoch := m.epoch
	m.mu.RUnlock()

	switch current.State() {
	case LoggedOut:
		return nil, ErrNotAuthenticated
	case Impersonating:
		return nil, ErrAlreadyImpersonating
	}
	if current.Identity.ID == targetUserID {
		return nil, ErrInvalidInput.Msg("you are already this user")
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	grant, err := m.backend.Impersonate(ctx, current.Token, targetUserID)
	if err != nil {
		err = classify(err)
		if errors.Is(err, ErrSessionExpired) {
			m.ExpireToken(current.Token, err)
		}
		m.log(ctx).Warn().Err(err).Int64("target_user_id", targetUserID).Msg("impersonation refused")
		return nil, err
	}
	if grant == nil || grant.Token == "" {
		return nil, ErrNetworkFailure.Msg("impersonation response did not include a token")
	}
	identity, err := m.resolveIssued(ctx, grant.Token, targetUserID)
	if err != nil {
		return nil, err
	}

	next := &Session{
		Token:    grant.Token,
		Identity: identity,
		Impersonation: &ImpersonationState{
			ImpersonatedBy: *current.Identity,
			StartedAt:      m.opts.now().UTC(),
		},
	}
	if err := m.commit(epoch, next, current.Token, ReasonImpersonationStart); err != nil {
		return nil, err
	}
	m.log(ctx).Info().
		Int64("operator_id", current.Identity.ID).
		Int64("user_id", identity.ID).
		Msg("impersonation started")
	return next.Clone(), nil
}

// StopImpersonation returns to the operator's own session. The retained
// operator token is reused when the backend still accepts it; otherwise a
// fresh operator token is requested. If neither is accepted the session is
// expired.
func (m *Manager) StopImpersonation(ctx context.Context) (*Session, error) {
	if !m.inflight.TryLock() {
		return nil, ErrMutationInFlight
	}
	defer m.inflight.Unlock()

	m.mu.RLock()
	current := m.session.Clone()
	original := m.originalToken
	epoch := m.epoch
	m.mu.RUnlock()

	switch current.State() {
	case LoggedOut:
		return nil, ErrNotAuthenticated
	case LoggedIn:
		return nil, ErrNotImpersonating
	}
	operatorID := current.Impersonation.ImpersonatedBy.ID

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	var (
		token    string
		identity *UserIdentity
		reused   bool
	)
	if original != "" {
		id, err := m.resolve(ctx, original, operatorID)
		switch {
		case err == nil:
			token, identity, reused = original, id, true
		case errors.Is(err, ErrNetworkFailure) && !errors.Is(err, errIdentityMismatch):
			return nil, err
		default:
			m.log(ctx).Info().Err(err).Msg("retained operator token rejected; requesting a new one")
		}
	}
	if token == "" {
		grant, err := m.backend.StopImpersonation(ctx, current.Token)
		if err != nil {
			err = classify(err)
			if errors.Is(err, ErrNetworkFailure) {
				return nil, err
			}
			// Neither the retained nor a fresh operator token is available.
			err = asExpired(err)
			if !m.ExpireToken(current.Token, err) {
				return nil, ErrSessionChanged
			}
			return nil, err
		}
		if grant == nil || grant.Token == "" {
			return nil, ErrNetworkFailure.Msg("stop impersonation response did not include a token")
		}
		id, err := m.resolveIssued(ctx, grant.Token, operatorID)
		if err != nil {
			return nil, err
		}
		token, identity = grant.Token, id
	}

	next := &Session{Token: token, Identity: identity}
	if err := m.commit(epoch, next, "", ReasonImpersonationStop); err != nil {
		return nil, err
	}
	if reused {
		// the backend did not see the switch, so drop the impersonation token
		m.revoke(ctx, current.Token)
	}
	m.log(ctx).Info().Int64("user_id", identity.ID).Msg("impersonation stopped")
	return next.Clone(), nil
}

// resolve fetches the identity behind token. When wantID is non-zero the
// resolved identity must match it.
func (m *Manager) resolve(ctx context.Context, token string, wantID int64) (*UserIdentity, error) {
	identity, err := m.whoAmI(ctx, token)
	if err != nil {
		return nil, err
	}
	if wantID != 0 && identity.ID != wantID {
		return nil, errIdentityMismatch
	}
	return identity, nil
}

// resolveIssued resolves a token the backend has just issued. A rejection of
// such a token says nothing about the current session, so it is reported as a
// network failure rather than an expiry.
func (m *Manager) resolveIssued(ctx context.Context, token string, wantID int64) (*UserIdentity, error) {
	identity, err := m.resolve(ctx, token, wantID)
	if err != nil && !errors.Is(err, ErrNetworkFailure) {
		return nil, ErrNetworkFailure.Msg("backend rejected a token it just issued")
	}
	return identity, err
}

func (m *Manager) whoAmI(ctx context.Context, token string) (*UserIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()
	identity, err := m.backend.WhoAmI(ctx, token)
	if err != nil {
		return nil, classify(err)
	}
	if identity == nil || identity.ID == 0 {
		return nil, ErrNetworkFailure.Msg("identity response did not include a user id")
	}
	identity = identity.Clone()
	normalize(identity)
	return identity, nil
}

func normalize(u *UserIdentity) {
	u.Roles = NewRoleSet(u.Roles...)
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// commit persists next and swaps it into memory. Nothing changes if the
// session was ended after epoch was read or if the store write fails.
func (m *Manager) commit(epoch uint64, next *Session, originalToken string, reason Reason) error {
	return m.swap(epoch, next, originalToken, reason, nil, true)
}

func (m *Manager) swap(epoch uint64, next *Session, originalToken string, reason Reason, cause error, persist bool) error {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return ErrSessionChanged
	}
	if persist {
		rec := &Record{
			Token:         next.Token,
			UserID:        next.Identity.ID,
			OriginalToken: originalToken,
			Impersonation: next.Impersonation.Clone(),
			Identity:      next.Identity.Clone(),
		}
		if err := m.store.Save(rec); err != nil {
			m.mu.Unlock()
			return ErrStorage.Err(err)
		}
	}
	from := m.session.State()
	m.session = next.Clone()
	m.originalToken = originalToken
	m.epoch++
	m.enqueue(Event{From: from, To: next.State(), Reason: reason, Err: cause})
	m.mu.Unlock()
	m.flush()
	return nil
}
