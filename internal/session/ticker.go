package session

import (
	"sync"
	"time"
)

// Ticker drives the store's elapsed counter while a session is running.
//
// Each firing recomputes elapsed time from the absolute start timestamp,
// never by incrementing a counter, so missed firings and suspensions
// self-correct on the next one.
type Ticker struct {
	store    *Store
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped bool
}

// NewTicker builds a driver for the given store with a 1-second period.
func NewTicker(store *Store) *Ticker {
	return &Ticker{store: store, interval: time.Second, now: time.Now}
}

// WithInterval overrides the firing period. Test seam.
func (t *Ticker) WithInterval(d time.Duration) *Ticker {
	t.interval = d
	return t
}

// WithClock overrides the wall clock. Test seam.
func (t *Ticker) WithClock(now func() time.Time) *Ticker {
	t.now = now
	return t
}

// Start begins the periodic recomputation. Calling Start on a running
// ticker is a no-op.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopCh != nil && !t.stopped {
		return
	}
	t.stopCh = make(chan struct{})
	t.stopped = false
	go t.run(t.stopCh)
}

// Stop cancels the periodic timer. Idempotent: stopping an already-stopped
// ticker is a no-op, not an error.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopCh == nil || t.stopped {
		return
	}
	t.stopped = true
	close(t.stopCh)
}

func (t *Ticker) run(stop chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.fire()
		}
	}
}

// fire performs only synchronous arithmetic and a state write; it never
// blocks and never fails.
func (t *Ticker) fire() {
	snap := t.store.Snapshot()
	if !snap.Running || snap.Current == nil {
		return
	}
	t.store.Tick(elapsedSince(snap.Current.StartTime, t.now()))
}
