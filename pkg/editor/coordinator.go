package editor

import (
	"context"
	"sync"
	"time"
)

// requestCoordinator enforces the "latest request wins" discipline for load
// operations and drops everything once the owning controller is torn down.
// At most one load is current at a time: beginning a new one cancels the
// previous one, and a resolution carrying a stale generation is discarded.
// Timers scheduled through it die with the controller too.
type requestCoordinator struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	timers map[*time.Timer]struct{}
	closed bool
}

func newRequestCoordinator() *requestCoordinator {
	return &requestCoordinator{timers: make(map[*time.Timer]struct{})}
}

// begin cancels any in-flight load and opens a new generation. The returned
// context is cancelled when a later load begins or the coordinator closes.
func (rc *requestCoordinator) begin(parent context.Context) (context.Context, uint64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.cancel != nil {
		rc.cancel()
	}
	rc.gen++
	ctx, cancel := context.WithCancel(parent)
	rc.cancel = cancel
	return ctx, rc.gen
}

// current reports whether gen is still the live generation. A false result
// means the operation was superseded or the controller was torn down, and
// its resolution must not mutate state.
func (rc *requestCoordinator) current(gen uint64) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return !rc.closed && gen == rc.gen
}

// alive reports whether the coordinator is still accepting resolutions.
// Create, save and delete do not supersede each other, but they share this
// teardown guard.
func (rc *requestCoordinator) alive() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return !rc.closed
}

// schedule runs fn after d unless the coordinator closes first.
func (rc *requestCoordinator) schedule(d time.Duration, fn func()) {
	rc.mu.Lock()
	if rc.closed {
		rc.mu.Unlock()
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		rc.mu.Lock()
		closed := rc.closed
		delete(rc.timers, t)
		rc.mu.Unlock()
		if !closed {
			fn()
		}
	})
	rc.timers[t] = struct{}{}
	rc.mu.Unlock()
}

// close cancels the in-flight load, stops pending timers, and rejects every
// future resolution.
func (rc *requestCoordinator) close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.closed = true
	if rc.cancel != nil {
		rc.cancel()
		rc.cancel = nil
	}
	for t := range rc.timers {
		t.Stop()
	}
	rc.timers = make(map[*time.Timer]struct{})
}
