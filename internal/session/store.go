package session

import "sync"

// Record is the persisted form of a session. The zero value means nothing is
// persisted.
type Record struct {
	Token         string              `yaml:"token,omitempty"`
	UserID        int64               `yaml:"user_id,omitempty"`
	OriginalToken string              `yaml:"original_token,omitempty"`
	Impersonation *ImpersonationState `yaml:"impersonation,omitempty"`
	Identity      *UserIdentity       `yaml:"identity,omitempty"`
}

// IsZero reports whether the record holds no token.
func (r *Record) IsZero() bool {
	return r == nil || r.Token == ""
}

func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{
		Token:         r.Token,
		UserID:        r.UserID,
		OriginalToken: r.OriginalToken,
		Impersonation: r.Impersonation.Clone(),
		Identity:      r.Identity.Clone(),
	}
}

// Store persists a session Record across process restarts.
type Store interface {
	// Load returns the persisted record, or nil when there is none.
	Load() (*Record, error)
	// Save replaces the persisted record. After saving a zero Record, Load
	// must return nil.
	Save(*Record) error
	// Clear removes every persisted entry. Clearing an empty store succeeds.
	Clear() error
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu  sync.Mutex
	rec *Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.clone(), nil
}

func (s *MemoryStore) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.IsZero() {
		s.rec = nil
		return nil
	}
	s.rec = rec.clone()
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}
