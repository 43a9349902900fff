package session

import "slices"

// Reason names the cause of a state transition.
type Reason string

const (
	ReasonLogin              Reason = "login"
	ReasonLogout             Reason = "logout"
	ReasonImpersonationStart Reason = "impersonation_start"
	ReasonImpersonationStop  Reason = "impersonation_stop"
	ReasonExpired            Reason = "expired"
	ReasonHydrated           Reason = "hydrated"
)

// Event describes a committed transition. Err is set for forced transitions
// such as expiry.
type Event struct {
	From   State
	To     State
	Reason Reason
	Err    error
}

// Subscribe registers fn to be called after every committed transition.
// Events are delivered in commit order, never while the manager holds its
// state lock, so fn may call back into the manager. The returned function
// removes the subscription.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		delete(m.subs, id)
	}
}

// enqueue must be called with m.mu held.
func (m *Manager) enqueue(ev Event) {
	m.pending = append(m.pending, ev)
}

// flush delivers pending events. Only one goroutine delivers at a time; a
// caller that loses the race leaves its events to the active deliverer, which
// also covers re-entrant commits made from inside an observer.
func (m *Manager) flush() {
	for m.notifyMu.TryLock() {
		for {
			m.mu.Lock()
			evs := m.pending
			m.pending = nil
			m.mu.Unlock()
			if len(evs) == 0 {
				break
			}
			for _, ev := range evs {
				m.deliver(ev)
			}
		}
		m.notifyMu.Unlock()

		m.mu.RLock()
		empty := len(m.pending) == 0
		m.mu.RUnlock()
		if empty {
			return
		}
	}
}

func (m *Manager) deliver(ev Event) {
	m.subsMu.Lock()
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.subs[id])
	}
	m.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
