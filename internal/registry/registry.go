// Package registry is the process-wide map from session reference to running
// state machine. It is the only shared mutable state between sessions: inserts
// happen before the first event can route, removals only after the machine has
// reached its terminal state.
package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/davegallo/centrex/internal/event"
	"github.com/davegallo/centrex/internal/machine"
	"github.com/davegallo/centrex/internal/observability"
)

var ErrDuplicateRef = errors.New("session ref already registered")

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*machine.Machine
	metrics  *observability.Metrics
}

// New creates an empty registry. Metrics may be nil.
func New(metrics *observability.Metrics) *Registry {
	return &Registry{
		sessions: make(map[string]*machine.Machine),
		metrics:  metrics,
	}
}

func (r *Registry) Insert(m *machine.Machine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[m.Ref()]; exists {
		return ErrDuplicateRef
	}
	r.sessions[m.Ref()] = m
	return nil
}

func (r *Registry) Lookup(ref string) (*machine.Machine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.sessions[ref]
	return m, ok
}

func (r *Registry) Remove(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, ref)
}

// Route delivers an event to the session that owns it. Events for unknown or
// already-terminated sessions are discarded; that is a no-op by design, never
// an error.
func (r *Registry) Route(ev event.Event) bool {
	m, ok := r.Lookup(ev.SessionRef())
	if !ok {
		r.drop("unknown_session")
		return false
	}
	if !m.Deliver(ev) {
		r.drop("not_deliverable")
		return false
	}
	if r.metrics != nil {
		r.metrics.DomainEvents.WithLabelValues(string(ev.EventKind())).Inc()
	}
	return true
}

func (r *Registry) drop(reason string) {
	if r.metrics != nil {
		r.metrics.DroppedEvents.WithLabelValues(reason).Inc()
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshots lists the live sessions for the operations API, ordered by ref.
func (r *Registry) Snapshots() []machine.Snapshot {
	r.mu.RLock()
	out := make([]machine.Snapshot, 0, len(r.sessions))
	for _, m := range r.sessions {
		out = append(out, m.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out
}
