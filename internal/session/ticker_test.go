package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicker_RecomputesFromStartTimestamp(t *testing.T) {
	// Clock frozen 125s after the entry started: however many firings the
	// driver gets, elapsed must equal now-start, not a running count.
	start := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	now := start.Add(125 * time.Second)

	gw := &fakeGateway{active: runningEntry(start)}
	store := NewStore(gw).WithClock(func() time.Time { return now })
	require.NoError(t, store.LoadActive(context.Background(), "u-1"))

	ticker := NewTicker(store).WithInterval(5 * time.Millisecond).WithClock(func() time.Time { return now })
	ticker.Start()
	defer ticker.Stop()

	assert.Eventually(t, func() bool {
		return store.Snapshot().Elapsed == 125
	}, time.Second, 5*time.Millisecond)

	// Several more firings happen; the value stays derived, not incremented.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int64(125), store.Snapshot().Elapsed)
}

// fakeClock is a settable clock safe for concurrent reads.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func TestTicker_SelfCorrectsAfterMissedFirings(t *testing.T) {
	// Simulate suspension by jumping the clock: a single firing after the
	// jump lands on floor(now-start), not previous+1.
	start := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: start.Add(10 * time.Second)}

	gw := &fakeGateway{active: runningEntry(start)}
	store := NewStore(gw).WithClock(clock.Now)
	require.NoError(t, store.LoadActive(context.Background(), "u-1"))

	ticker := NewTicker(store).WithInterval(5 * time.Millisecond).WithClock(clock.Now)
	ticker.Start()
	defer ticker.Stop()

	assert.Eventually(t, func() bool {
		return store.Snapshot().Elapsed == 10
	}, time.Second, 5*time.Millisecond)

	clock.Set(start.Add(500 * time.Second)) // suspended for ~8 minutes

	assert.Eventually(t, func() bool {
		return store.Snapshot().Elapsed == 500
	}, time.Second, 5*time.Millisecond)
}

func TestTicker_NoFiringWhenNotRunning(t *testing.T) {
	store := NewStore(&fakeGateway{})
	require.NoError(t, store.LoadActive(context.Background(), "u-1"))

	ticker := NewTicker(store).WithInterval(5 * time.Millisecond)
	ticker.Start()
	defer ticker.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int64(0), store.Snapshot().Elapsed)
}

func TestTicker_StopIsIdempotent(t *testing.T) {
	store := NewStore(&fakeGateway{})
	ticker := NewTicker(store).WithInterval(5 * time.Millisecond)

	ticker.Start()
	ticker.Stop()
	assert.NotPanics(t, func() {
		ticker.Stop()
		ticker.Stop()
	})
}

func TestTicker_StopBeforeStartIsNoop(t *testing.T) {
	ticker := NewTicker(NewStore(&fakeGateway{}))
	assert.NotPanics(t, func() { ticker.Stop() })
}

func TestTicker_RestartsAfterStop(t *testing.T) {
	start := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	now := start.Add(60 * time.Second)
	clock := func() time.Time { return now }

	gw := &fakeGateway{active: runningEntry(start)}
	store := NewStore(gw).WithClock(clock)
	require.NoError(t, store.LoadActive(context.Background(), "u-1"))

	ticker := NewTicker(store).WithInterval(5 * time.Millisecond).WithClock(clock)
	ticker.Start()
	ticker.Stop()
	ticker.Start()
	defer ticker.Stop()

	assert.Eventually(t, func() bool {
		return store.Snapshot().Elapsed == 60
	}, time.Second, 5*time.Millisecond)
}
