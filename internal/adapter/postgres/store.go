// Package postgres is the authoritative session store behind the server API.
// It owns the at-most-one-running invariant: starting a session closes any
// prior running entry and inserts the new one in a single transaction, so
// concurrent reads never observe two running entries for one user.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"dainage/internal/domain"
	"dainage/internal/ports"
)

const entryColumns = `e.id, e.user_id, e.project_id, e.task_id, e.description,
	e.start_time, e.end_time, e.duration, e.is_running, e.tags,
	e.created_at, e.updated_at`

// Store implements the session gateway, project directory, entry log and
// export source over PostgreSQL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock overrides the wall clock. Test seam.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// GetActiveSession returns the user's single running entry with the project
// summary joined, or (nil, nil) when there is none.
func (s *Store) GetActiveSession(ctx context.Context, userID string) (*domain.TimeEntry, error) {
	query := `SELECT ` + entryColumns + `, p.name, p.color
		 FROM time_entries e
		 JOIN projects p ON p.id = e.project_id
		 WHERE e.user_id = $1 AND e.is_running
		 `
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, userID), true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: db error: %v", domain.ErrGateway, err)
	}
	return entry, nil
}

// StartSession closes any prior running entry for the user and creates the
// new one in one transaction. The prior entry is closed with the same
// timestamp the new one starts at.
func (s *Store) StartSession(ctx context.Context, req ports.StartRequest) (*domain.TimeEntry, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("start session: %w", domain.ErrAuthRequired)
	}

	now := s.now().UTC()
	entry := &domain.TimeEntry{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		Description: req.Description,
		StartTime:   now,
		IsRunning:   true,
		Tags:        req.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		var summary domain.ProjectSummary
		query := `SELECT name, color FROM projects
		 WHERE id = $1 AND user_id = $2
		 `
		err := tx.QueryRowContext(ctx, query, req.ProjectID, req.UserID).
			Scan(&summary.Name, &summary.Color)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("project %s: %w", req.ProjectID, domain.ErrNotFound)
			}
			return fmt.Errorf("db error: %w", err)
		}
		entry.Project = &summary

		query = `UPDATE time_entries
		 SET is_running = FALSE,
		     end_time = $2,
		     duration = FLOOR(EXTRACT(EPOCH FROM ($2::timestamptz - start_time)))::bigint,
		     updated_at = $2
		 WHERE user_id = $1 AND is_running
		 `
		if _, err := tx.ExecContext(ctx, query, req.UserID, now); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		tags, err := encodeTags(entry.Tags)
		if err != nil {
			return err
		}
		query = `INSERT INTO time_entries
		 (id, user_id, project_id, task_id, description, start_time, is_running, tags, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $6, $6)
		 `
		if _, err := tx.ExecContext(ctx, query,
			entry.ID, entry.UserID, entry.ProjectID, nullString(entry.TaskID),
			entry.Description, now, tags); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return entry, nil
}

// StopSession closes the entry and returns it with the truncated integer
// duration. Stopping an already-stopped entry returns the stored record
// unchanged. Entries owned by other users read as not found.
func (s *Store) StopSession(ctx context.Context, userID, entryID string) (*domain.TimeEntry, error) {
	now := s.now().UTC()
	var entry *domain.TimeEntry

	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		query := `UPDATE time_entries
		 SET is_running = FALSE,
		     end_time = $2,
		     duration = FLOOR(EXTRACT(EPOCH FROM ($2::timestamptz - start_time)))::bigint,
		     updated_at = $2
		 WHERE id = $1 AND user_id = $3 AND is_running
		 `
		// Zero rows means missing or already stopped; the fetch below decides.
		if _, err := tx.ExecContext(ctx, query, entryID, now, userID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		query = `SELECT ` + entryColumns + `, p.name, p.color
		 FROM time_entries e
		 JOIN projects p ON p.id = e.project_id
		 WHERE e.id = $1 AND e.user_id = $2
		 `
		var err error
		entry, err = scanEntry(tx.QueryRowContext(ctx, query, entryID, userID), true)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("entry %s: %w", entryID, domain.ErrNotFound)
			}
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return entry, nil
}

func (s *Store) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	query := `SELECT id, user_id, name, color, created_at FROM projects
	 WHERE user_id = $1
	 ORDER BY name
	 `
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: db error: %v", domain.ErrGateway, err)
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Color, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: db error: %v", domain.ErrGateway, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: db error: %v", domain.ErrGateway, err)
	}
	return out, nil
}

func (s *Store) CreateProject(ctx context.Context, userID, name, color string) (*domain.Project, error) {
	if userID == "" {
		return nil, fmt.Errorf("create project: %w", domain.ErrAuthRequired)
	}
	if color == "" {
		color = domain.DefaultProjectColor
	}
	p := &domain.Project{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Color:     color,
		CreatedAt: s.now().UTC(),
	}
	query := `INSERT INTO projects (id, user_id, name, color, created_at)
	 VALUES ($1, $2, $3, $4, $5)
	 `
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.UserID, p.Name, p.Color, p.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: db error: %v", domain.ErrGateway, err)
	}
	return p, nil
}

func (s *Store) ListEntries(ctx context.Context, userID string, from, to time.Time) ([]domain.TimeEntry, error) {
	query := `SELECT ` + entryColumns + `, p.name, p.color
	 FROM time_entries e
	 JOIN projects p ON p.id = e.project_id
	 WHERE e.user_id = $1 AND e.start_time >= $2 AND e.start_time <= $3
	 ORDER BY e.start_time DESC
	 `
	return s.queryEntries(ctx, query, userID, from, to)
}

// ListCompletedSince yields stopped entries updated at or after the given
// time, oldest first, for the analytics export.
func (s *Store) ListCompletedSince(ctx context.Context, since time.Time) ([]domain.TimeEntry, error) {
	query := `SELECT ` + entryColumns + `, p.name, p.color
	 FROM time_entries e
	 JOIN projects p ON p.id = e.project_id
	 WHERE NOT e.is_running AND e.end_time IS NOT NULL AND e.updated_at >= $1
	 ORDER BY e.updated_at
	 `
	return s.queryEntries(ctx, query, since)
}

// GetUserByEmail looks up an account for password login.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT id, email, name, password_hash, is_demo, created_at FROM users
	 WHERE email = $1
	 `
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

// GetDemoUser returns the seeded demo account.
func (s *Store) GetDemoUser(ctx context.Context) (*domain.User, error) {
	query := `SELECT id, email, name, password_hash, is_demo, created_at FROM users
	 WHERE is_demo
	 LIMIT 1
	 `
	return scanUser(s.db.QueryRowContext(ctx, query))
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]domain.TimeEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: db error: %v", domain.ErrGateway, err)
	}
	defer rows.Close()

	var out []domain.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows, true)
		if err != nil {
			return nil, fmt.Errorf("%w: db error: %v", domain.ErrGateway, err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: db error: %v", domain.ErrGateway, err)
	}
	return out, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsDemo, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: db error: %v", domain.ErrGateway, err)
	}
	return u, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner, withJoin bool) (*domain.TimeEntry, error) {
	var (
		e       domain.TimeEntry
		taskID  sql.NullString
		endTime sql.NullTime
		dur     sql.NullInt64
		tags    sql.NullString
		summary domain.ProjectSummary
	)
	dest := []any{
		&e.ID, &e.UserID, &e.ProjectID, &taskID, &e.Description,
		&e.StartTime, &endTime, &dur, &e.IsRunning, &tags,
		&e.CreatedAt, &e.UpdatedAt,
	}
	if withJoin {
		dest = append(dest, &summary.Name, &summary.Color)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if taskID.Valid {
		v := taskID.String
		e.TaskID = &v
	}
	if endTime.Valid {
		v := endTime.Time
		e.EndTime = &v
	}
	if dur.Valid {
		v := dur.Int64
		e.Duration = &v
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &e.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if withJoin {
		e.Project = &summary
	}
	return &e, nil
}

// encodeTags stores tags as a JSON array in a text column.
func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

// classify maps store errors onto the gateway taxonomy, leaving already
// classified errors alone. A unique violation means two starts raced and the
// one_running_per_user index caught the loser, so it reads as a conflict.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrAuthRequired),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrGateway):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
}
