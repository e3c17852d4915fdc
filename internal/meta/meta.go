// Package meta holds the server's identity and live mutable counters —
// the data the rest of the packages read to decide master/replica
// behavior, kept in its own leaf package so both internal/handler and
// internal/server can depend on it without a cycle.
package meta

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of the replication topology this node plays.
type Role int

const (
	RoleMaster Role = iota
	RoleReplica
)

// Metadata is immutable after boot.
type Metadata struct {
	ListeningPort uint16
	Role          Role

	// Master-only.
	ReplicationID string

	// Replica-only.
	MasterHost string
	MasterPort string
}

// NewReplicationID derives a 40-character hex replication id the way real
// Redis ids look, by hashing a random UUID with SHA-1 (whose 20-byte
// digest is exactly 40 hex characters) rather than hand-rolling a random
// hex string.
func NewReplicationID() string {
	id := uuid.New()
	sum := sha1.Sum(id[:])
	return hex.EncodeToString(sum[:])
}

func (m *Metadata) IsMaster() bool { return m.Role == RoleMaster }

// LiveData holds the mutable counters guarded by a single mutex, per the
// lock-ordering discipline store -> replica registry -> live_data.
type LiveData struct {
	mu sync.Mutex

	replicationOffset uint64 // master: cumulative broadcast bytes
	processedOffset   uint64 // replica: cumulative applied bytes
	lastHeartbeat     time.Time
}

// AddReplicationOffset advances the master's replication offset by n bytes
// and returns the new value.
func (d *LiveData) AddReplicationOffset(n int) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replicationOffset += uint64(n)
	return d.replicationOffset
}

// ReplicationOffset returns the master's current replication offset.
func (d *LiveData) ReplicationOffset() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.replicationOffset
}

// AddProcessedOffset advances the replica's processed offset by n bytes
// and returns the new value.
func (d *LiveData) AddProcessedOffset(n int) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.processedOffset += uint64(n)
	return d.processedOffset
}

// ProcessedOffset returns the replica's current processed offset.
func (d *LiveData) ProcessedOffset() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processedOffset
}

// SetHeartbeat records the instant a PING was last received from the
// master (replica role only).
func (d *LiveData) SetHeartbeat(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastHeartbeat = t
}

// Heartbeat returns the last recorded heartbeat instant.
func (d *LiveData) Heartbeat() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastHeartbeat
}
