// Package session holds the client-side timer state: which entry is running,
// how much time has elapsed, and the periodic driver that keeps the elapsed
// counter honest. All persistence goes through a ports.SessionGateway; the
// store never talks to a backend directly.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dainage/internal/domain"
	"dainage/internal/ports"
)

// Snapshot is a point-in-time copy of the store state, safe to read while
// the store keeps mutating.
type Snapshot struct {
	Current *domain.TimeEntry
	Running bool
	Elapsed int64
	Loading bool
	LastErr error
}

// FormattedTime renders the elapsed counter for display.
func (s Snapshot) FormattedTime() string {
	return FormatTime(s.Elapsed)
}

// Store is the single source of truth for the active timer. It is
// constructor-injected into whatever owns the UI, never a package singleton,
// so tests can run isolated instances.
type Store struct {
	gw  ports.SessionGateway
	now func() time.Time

	mu      sync.Mutex
	current *domain.TimeEntry
	running bool
	elapsed int64
	loading bool
	lastErr error
	busy    bool // a start/stop is in flight
}

// NewStore builds a store around the given gateway.
func NewStore(gw ports.SessionGateway) *Store {
	return &Store{gw: gw, now: time.Now}
}

// WithClock overrides the wall clock. Test seam.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Current: s.current,
		Running: s.running,
		Elapsed: s.elapsed,
		Loading: s.loading,
		LastErr: s.lastErr,
	}
}

// FormattedTime renders the current elapsed counter.
func (s *Store) FormattedTime() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FormatTime(s.elapsed)
}

// LoadActive adopts an already-running entry from the gateway, if any.
// On failure the prior state is left untouched and the error is recorded.
func (s *Store) LoadActive(ctx context.Context, userID string) error {
	s.setLoading(true)
	entry, err := s.gw.GetActiveSession(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		return err
	}
	s.lastErr = nil
	if entry == nil {
		s.current = nil
		s.running = false
		s.elapsed = 0
		return nil
	}
	s.current = entry
	s.running = true
	s.elapsed = elapsedSince(entry.StartTime, s.now())
	return nil
}

// Start begins a new session. The gateway closes any prior running entry for
// the user as part of the same operation. A second Start while one is in
// flight is rejected rather than queued; a failed start leaves the store in
// its pre-start state.
func (s *Store) Start(ctx context.Context, userID, projectID, description string) error {
	if userID == "" {
		err := fmt.Errorf("start: %w", domain.ErrAuthRequired)
		s.recordErr(err)
		return err
	}
	if !s.acquire() {
		return fmt.Errorf("start already in flight: %w", domain.ErrConflict)
	}
	defer s.release()

	entry, err := s.gw.StartSession(ctx, ports.StartRequest{
		UserID:      userID,
		ProjectID:   projectID,
		Description: description,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		return err
	}
	s.lastErr = nil
	s.current = entry
	s.running = true
	s.elapsed = 0
	return nil
}

// Stop closes the current session. A no-op when nothing is running: it
// returns nil without touching the gateway.
func (s *Store) Stop(ctx context.Context) error {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == nil {
		return nil
	}
	if !s.acquire() {
		return fmt.Errorf("stop already in flight: %w", domain.ErrConflict)
	}
	defer s.release()

	entry, err := s.gw.StopSession(ctx, current.UserID, current.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		return err
	}
	s.lastErr = nil
	s.current = entry
	s.running = false
	s.elapsed = entry.DurationSeconds()
	return nil
}

// Tick sets the elapsed counter. Ignored when no session is running, which
// guards against a stale timer firing after a stop.
func (s *Store) Tick(elapsed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if elapsed < 0 {
		elapsed = 0
	}
	s.elapsed = elapsed
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) recordErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Store) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	s.loading = true
	return true
}

func (s *Store) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func elapsedSince(start, now time.Time) int64 {
	d := now.Sub(start) / time.Second
	if d < 0 {
		return 0
	}
	return int64(d)
}
