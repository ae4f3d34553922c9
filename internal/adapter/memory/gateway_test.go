package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dainage/internal/domain"
	"dainage/internal/ports"
)

func seeded(t *testing.T) (*Gateway, domain.Project) {
	t.Helper()
	gw := NewGateway()
	p := gw.SeedProject(domain.Project{ID: "p1", Name: "Website", Color: "#3B82F6"})
	return gw, p
}

func TestStartSession_RequiresUserAndProject(t *testing.T) {
	gw, _ := seeded(t)
	ctx := context.Background()

	_, err := gw.StartSession(ctx, ports.StartRequest{ProjectID: "p1"})
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	_, err = gw.StartSession(ctx, ports.StartRequest{UserID: "u1", ProjectID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStartSession_ClosesPriorRunningEntry(t *testing.T) {
	gw, _ := seeded(t)
	ctx := context.Background()

	first, err := gw.StartSession(ctx, ports.StartRequest{UserID: "u1", ProjectID: "p1"})
	require.NoError(t, err)
	second, err := gw.StartSession(ctx, ports.StartRequest{UserID: "u1", ProjectID: "p1"})
	require.NoError(t, err)
	third, err := gw.StartSession(ctx, ports.StartRequest{UserID: "u1", ProjectID: "p1"})
	require.NoError(t, err)

	// At most one running, and it is the most recently started one.
	active, err := gw.GetActiveSession(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, third.ID, active.ID)

	for _, id := range []string{first.ID, second.ID} {
		closed, err := gw.StopSession(ctx, "u1", id)
		require.NoError(t, err)
		assert.False(t, closed.IsRunning)
		assert.NotNil(t, closed.EndTime, "earlier entries must be closed out")
	}
}

func TestGetActiveSession_NoneIsNilNil(t *testing.T) {
	gw, _ := seeded(t)

	entry, err := gw.GetActiveSession(context.Background(), "u1")

	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStartStopRoundTrip(t *testing.T) {
	// Scenario: start "writing spec" on Website, wait 125s, stop.
	base := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	now := base
	gw, _ := seeded(t)
	gw.WithClock(func() time.Time { return now })
	ctx := context.Background()

	entry, err := gw.StartSession(ctx, ports.StartRequest{
		UserID: "u1", ProjectID: "p1", Description: "writing spec",
	})
	require.NoError(t, err)
	assert.True(t, entry.IsRunning)
	assert.Equal(t, base, entry.StartTime)
	require.NotNil(t, entry.Project)
	assert.Equal(t, "Website", entry.Project.Name)
	assert.Equal(t, "#3B82F6", entry.Project.Color)

	now = base.Add(125 * time.Second)
	stopped, err := gw.StopSession(ctx, "u1", entry.ID)
	require.NoError(t, err)
	assert.False(t, stopped.IsRunning)
	assert.Equal(t, int64(125), stopped.DurationSeconds())
	require.NotNil(t, stopped.EndTime)
	assert.Equal(t, now, *stopped.EndTime)
	require.NotNil(t, stopped.Project)
	assert.Equal(t, "Website", stopped.Project.Name)
}

func TestStopSession_ImmediateStopHasZeroDuration(t *testing.T) {
	gw, _ := seeded(t)
	ctx := context.Background()

	entry, err := gw.StartSession(ctx, ports.StartRequest{UserID: "u1", ProjectID: "p1"})
	require.NoError(t, err)
	stopped, err := gw.StopSession(ctx, "u1", entry.ID)
	require.NoError(t, err)

	assert.False(t, stopped.IsRunning)
	assert.GreaterOrEqual(t, stopped.DurationSeconds(), int64(0))
	assert.LessOrEqual(t, stopped.DurationSeconds(), int64(1))
}

func TestStopSession_AlreadyStoppedReturnsRecordUnchanged(t *testing.T) {
	base := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	now := base
	gw, _ := seeded(t)
	gw.WithClock(func() time.Time { return now })
	ctx := context.Background()

	entry, err := gw.StartSession(ctx, ports.StartRequest{UserID: "u1", ProjectID: "p1"})
	require.NoError(t, err)
	now = base.Add(60 * time.Second)
	first, err := gw.StopSession(ctx, "u1", entry.ID)
	require.NoError(t, err)

	now = base.Add(300 * time.Second)
	second, err := gw.StopSession(ctx, "u1", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, first.DurationSeconds(), second.DurationSeconds())
	assert.Equal(t, *first.EndTime, *second.EndTime)
}

func TestStopSession_MissingEntry(t *testing.T) {
	gw, _ := seeded(t)

	_, err := gw.StopSession(context.Background(), "u1", "nope")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStopSession_OtherUsersEntryReadsAsNotFound(t *testing.T) {
	gw, _ := seeded(t)
	ctx := context.Background()

	entry, err := gw.StartSession(ctx, ports.StartRequest{UserID: "u1", ProjectID: "p1"})
	require.NoError(t, err)

	_, err = gw.StopSession(ctx, "u2", entry.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The owner's session is untouched.
	active, err := gw.GetActiveSession(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.True(t, active.IsRunning)
}

func TestUsersAreIsolated(t *testing.T) {
	gw, _ := seeded(t)
	ctx := context.Background()

	_, err := gw.StartSession(ctx, ports.StartRequest{UserID: "u1", ProjectID: "p1"})
	require.NoError(t, err)

	other, err := gw.GetActiveSession(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, other, "one user's session must not leak to another")
}

func TestProjects_CreateAndList(t *testing.T) {
	gw := NewGateway()
	ctx := context.Background()

	_, err := gw.CreateProject(ctx, "", "Nope", "")
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	p, err := gw.CreateProject(ctx, "u1", "API", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultProjectColor, p.Color)

	list, err := gw.ListProjects(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "API", list[0].Name)
}
