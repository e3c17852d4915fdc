// Package replica tracks the master's connected replica sessions —
// generalized from the teacher's ad hoc []*Replica slice on Server into
// a dedicated, peer-address-keyed registry per spec.md §4.5.
package replica

import (
	"sync"

	"github.com/mathiusj/goredis-replica/internal/conn"
)

// Session is a replica connection that has completed PSYNC.
type Session struct {
	Addr string
	Conn *conn.Conn

	mu                 sync.Mutex
	acknowledgedOffset uint64
}

// AcknowledgedOffset returns the replica's last-acknowledged offset.
func (s *Session) AcknowledgedOffset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acknowledgedOffset
}

func (s *Session) setAcknowledgedOffset(offset uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset > s.acknowledgedOffset {
		s.acknowledgedOffset = offset
	}
}

// Registry is the master-side set of replica sessions, keyed by peer
// address. A single mutex guards the session map and serializes Add,
// Remove, Broadcast, UpToDateCount and Count; Broadcast holds it for the
// full fan-out, which spec.md §4.5 accepts because replica counts are
// small. Each session's acknowledged offset has its own mutex, which
// UpdateOffset takes after releasing the registry mutex.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an empty replica registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers session, replacing any previous entry at the same
// address.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Addr] = s
}

// Remove deletes the session at addr and reports whether it was present.
func (r *Registry) Remove(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[addr]
	delete(r.sessions, addr)
	return ok
}

// Broadcast writes frame to every registered replica. A write failure on
// one replica does not abort the fan-out or remove it from the
// registry — disconnection is discovered later on the read side.
func (r *Registry) Broadcast(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		_ = s.Conn.Write(frame)
	}
}

// UpdateOffset sets addr's acknowledged offset to the maximum of its
// current value and offset. It is a no-op if addr is not registered.
func (r *Registry) UpdateOffset(addr string, offset uint64) {
	r.mu.Lock()
	s, ok := r.sessions[addr]
	r.mu.Unlock()
	if ok {
		s.setAcknowledgedOffset(offset)
	}
}

// UpToDateCount returns how many registered replicas have acknowledged
// at least target bytes.
func (r *Registry) UpToDateCount(target uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.sessions {
		if s.AcknowledgedOffset() >= target {
			count++
		}
	}
	return count
}

// Count returns the number of registered replicas.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
