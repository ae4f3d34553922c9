package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dainage/internal/domain"
	"dainage/internal/ports"
)

var fixedNow = time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db).WithClock(func() time.Time { return fixedNow }), mock
}

func entryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "project_id", "task_id", "description",
		"start_time", "end_time", "duration", "is_running", "tags",
		"created_at", "updated_at", "name", "color",
	})
}

func TestGetActiveSession_Found(t *testing.T) {
	store, mock := newMockStore(t)
	start := fixedNow.Add(-125 * time.Second)

	mock.ExpectQuery(`SELECT .+ FROM time_entries e JOIN projects p .+ WHERE e\.user_id = \$1 AND e\.is_running`).
		WithArgs("u1").
		WillReturnRows(entryRows().AddRow(
			"e1", "u1", "p1", nil, "writing spec",
			start, nil, nil, true, `["deep"]`,
			start, start, "Website", "#3B82F6",
		))

	entry, err := store.GetActiveSession(context.Background(), "u1")

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.IsRunning)
	assert.Nil(t, entry.EndTime)
	assert.Nil(t, entry.Duration)
	assert.Equal(t, []string{"deep"}, entry.Tags)
	require.NotNil(t, entry.Project)
	assert.Equal(t, "Website", entry.Project.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveSession_NoneIsNilNil(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM time_entries e JOIN projects p`).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)

	entry, err := store.GetActiveSession(context.Background(), "u1")

	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveSession_DBErrorIsGatewayError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM time_entries e JOIN projects p`).
		WithArgs("u1").
		WillReturnError(errors.New("connection reset"))

	_, err := store.GetActiveSession(context.Background(), "u1")

	assert.ErrorIs(t, err, domain.ErrGateway,
		"a db failure must never read as no-session")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartSession_ClosesPriorAndInsertsInOneTx(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT name, color FROM projects WHERE id = \$1 AND user_id = \$2`).
		WithArgs("p1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "color"}).AddRow("Website", "#3B82F6"))
	mock.ExpectExec(`UPDATE time_entries SET is_running = FALSE.+WHERE user_id = \$1 AND is_running`).
		WithArgs("u1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO time_entries`).
		WithArgs(sqlmock.AnyArg(), "u1", "p1", nil, "writing spec", fixedNow, `["deep"]`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry, err := store.StartSession(context.Background(), ports.StartRequest{
		UserID: "u1", ProjectID: "p1", Description: "writing spec", Tags: []string{"deep"},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.True(t, entry.IsRunning)
	assert.Equal(t, fixedNow, entry.StartTime)
	require.NotNil(t, entry.Project)
	assert.Equal(t, "Website", entry.Project.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartSession_RequiresUser(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := store.StartSession(context.Background(), ports.StartRequest{ProjectID: "p1"})

	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query without a user")
}

func TestStartSession_UnknownProjectRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT name, color FROM projects`).
		WithArgs("missing", "u1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.StartSession(context.Background(), ports.StartRequest{
		UserID: "u1", ProjectID: "missing",
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartSession_InsertFailureRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT name, color FROM projects`).
		WithArgs("p1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "color"}).AddRow("Website", "#3B82F6"))
	mock.ExpectExec(`UPDATE time_entries SET is_running = FALSE`).
		WithArgs("u1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO time_entries`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := store.StartSession(context.Background(), ports.StartRequest{
		UserID: "u1", ProjectID: "p1",
	})

	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartSession_UniqueViolationIsConflict(t *testing.T) {
	store, mock := newMockStore(t)

	// Two starts race: the loser trips the one-running-per-user index.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT name, color FROM projects`).
		WithArgs("p1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "color"}).AddRow("Website", "#3B82F6"))
	mock.ExpectExec(`UPDATE time_entries SET is_running = FALSE`).
		WithArgs("u1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO time_entries`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "time_entries_one_running_per_user"})
	mock.ExpectRollback()

	_, err := store.StartSession(context.Background(), ports.StartRequest{
		UserID: "u1", ProjectID: "p1",
	})

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStopSession(t *testing.T) {
	store, mock := newMockStore(t)
	start := fixedNow.Add(-125 * time.Second)
	dur := int64(125)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE time_entries SET is_running = FALSE.+WHERE id = \$1 AND user_id = \$3 AND is_running`).
		WithArgs("e1", fixedNow, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM time_entries e JOIN projects p .+ WHERE e\.id = \$1 AND e\.user_id = \$2`).
		WithArgs("e1", "u1").
		WillReturnRows(entryRows().AddRow(
			"e1", "u1", "p1", nil, "",
			start, fixedNow, dur, false, `[]`,
			start, fixedNow, "Website", "#3B82F6",
		))
	mock.ExpectCommit()

	entry, err := store.StopSession(context.Background(), "u1", "e1")

	require.NoError(t, err)
	assert.False(t, entry.IsRunning)
	require.NotNil(t, entry.Duration)
	assert.Equal(t, int64(125), *entry.Duration)
	require.NotNil(t, entry.EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStopSession_AlreadyStoppedReturnsRecord(t *testing.T) {
	store, mock := newMockStore(t)
	start := fixedNow.Add(-10 * time.Minute)
	end := start.Add(60 * time.Second)
	dur := int64(60)

	mock.ExpectBegin()
	// Zero rows affected: the entry was stopped earlier.
	mock.ExpectExec(`UPDATE time_entries SET is_running = FALSE`).
		WithArgs("e1", fixedNow, "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM time_entries e JOIN projects p .+ WHERE e\.id = \$1 AND e\.user_id = \$2`).
		WithArgs("e1", "u1").
		WillReturnRows(entryRows().AddRow(
			"e1", "u1", "p1", nil, "",
			start, end, dur, false, `[]`,
			start, end, "Website", "#3B82F6",
		))
	mock.ExpectCommit()

	entry, err := store.StopSession(context.Background(), "u1", "e1")

	require.NoError(t, err)
	assert.Equal(t, int64(60), *entry.Duration)
	assert.Equal(t, end, entry.EndTime.UTC())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStopSession_MissingEntry(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE time_entries SET is_running = FALSE`).
		WithArgs("nope", fixedNow, "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM time_entries e JOIN projects p`).
		WithArgs("nope", "u1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.StopSession(context.Background(), "u1", "nope")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStopSession_OtherUsersEntryReadsAsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	// The victim's entry exists, but every statement is scoped to the caller,
	// so the fetch comes back empty.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE time_entries SET is_running = FALSE.+WHERE id = \$1 AND user_id = \$3 AND is_running`).
		WithArgs("victim-entry", fixedNow, "attacker").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ WHERE e\.id = \$1 AND e\.user_id = \$2`).
		WithArgs("victim-entry", "attacker").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.StopSession(context.Background(), "attacker", "victim-entry")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProjects(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, user_id, name, color, created_at FROM projects WHERE user_id = \$1 ORDER BY name`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "color", "created_at"}).
			AddRow("p1", "u1", "Mobile App", "#10B981", fixedNow).
			AddRow("p2", "u1", "Website", "#3B82F6", fixedNow))

	projects, err := store.ListProjects(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Mobile App", projects[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProject_DefaultsColor(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO projects`).
		WithArgs(sqlmock.AnyArg(), "u1", "API", domain.DefaultProjectColor, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p, err := store.CreateProject(context.Background(), "u1", "API", "")

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultProjectColor, p.Color)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCompletedSince(t *testing.T) {
	store, mock := newMockStore(t)
	since := fixedNow.Add(-24 * time.Hour)
	start := fixedNow.Add(-2 * time.Hour)
	end := start.Add(time.Hour)
	dur := int64(3600)

	mock.ExpectQuery(`SELECT .+ FROM time_entries e JOIN projects p .+ WHERE NOT e\.is_running AND e\.end_time IS NOT NULL AND e\.updated_at >= \$1`).
		WithArgs(since).
		WillReturnRows(entryRows().AddRow(
			"e1", "u1", "p1", nil, "",
			start, end, dur, false, `[]`,
			start, end, "Website", "#3B82F6",
		))

	entries, err := store.ListCompletedSince(context.Background(), since)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Stopped())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, email, name, password_hash, is_demo, created_at FROM users WHERE email = \$1`).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetUserByEmail(context.Background(), "nobody@example.com")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDemoUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, email, name, password_hash, is_demo, created_at FROM users WHERE is_demo`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "is_demo", "created_at"}).
			AddRow("demo-1", "demo@dainage.dev", "Demo", "", true, fixedNow))

	u, err := store.GetDemoUser(context.Background())

	require.NoError(t, err)
	assert.True(t, u.IsDemo)
	assert.NoError(t, mock.ExpectationsWereMet())
}
