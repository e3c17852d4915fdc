// Package reaper runs the store's background expiration sweep as an
// independent collaborator, not a method on the store itself — grounded
// on original_source/src/state.rs's condvar-driven GC thread and on
// spec.md §9's design note to keep it separate so tests can drive
// expiration deterministically via store.Sweep.
package reaper

import (
	"time"

	"github.com/mathiusj/goredis-replica/internal/logger"
	"github.com/mathiusj/goredis-replica/internal/store"
)

// DefaultInterval is the default full-keyspace sweep period.
const DefaultInterval = time.Minute

// Reaper periodically sweeps a store for expired keys until stopped.
type Reaper struct {
	store    *store.Store
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// New creates a reaper for store, sweeping every interval.
func New(s *store.Store, interval time.Duration) *Reaper {
	return &Reaper{
		store:    s,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep goroutine. It sleeps on a
// cancellable timer so Stop returns promptly.
func (r *Reaper) Start() {
	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := r.store.Sweep(); n > 0 {
					logger.Debug("reaper: removed %d expired keys", n)
				}
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop signals the background goroutine to exit and waits for it.
func (r *Reaper) Stop() {
	close(r.stop)
	<-r.done
}
