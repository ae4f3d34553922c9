// Package mysql implements the analytics export sink. Completed time
// entries are upserted into a flat reporting table that BI dashboards read
// directly.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"dainage/internal/domain"
)

// Client implements ports.Sink by writing to a MySQL table.
type Client struct {
	db  *sql.DB
	log *slog.Logger
}

// NewClient opens a MySQL connection using the provided DSN and ensures the
// reporting table exists.
// Example DSN: user:pass@tcp(host:3306)/dbname?parseTime=true
func NewClient(ctx context.Context, dsn string, log *slog.Logger) (*Client, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	client := &Client{db: db, log: log}
	if err := client.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return client, nil
}

func (c *Client) ensureSchema(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS dainage_time_entries (
        id VARCHAR(64) PRIMARY KEY,
        user_id VARCHAR(64) NOT NULL,
        project_id VARCHAR(64) NOT NULL,
        project_name VARCHAR(255) NOT NULL DEFAULT '',
        description TEXT,
        tags TEXT,
        start_time DATETIME(6) NOT NULL,
        end_time DATETIME(6) NOT NULL,
        duration_sec BIGINT NOT NULL
    ) ENGINE=InnoDB;`
	_, err := c.db.ExecContext(ctx, ddl)
	return err
}

// ExportEntries upserts completed entries. Running entries are skipped:
// the reporting table only holds closed sessions.
func (c *Client) ExportEntries(ctx context.Context, entries []domain.TimeEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	const q = `
INSERT INTO dainage_time_entries
  (id, user_id, project_id, project_name, description, tags, start_time, end_time, duration_sec)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  user_id=VALUES(user_id),
  project_id=VALUES(project_id),
  project_name=VALUES(project_name),
  description=VALUES(description),
  tags=VALUES(tags),
  start_time=VALUES(start_time),
  end_time=VALUES(end_time),
  duration_sec=VALUES(duration_sec);
`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	exported := 0
	for i := range entries {
		e := &entries[i]
		if !e.Stopped() {
			continue
		}
		tagsJSON, _ := json.Marshal(e.Tags)
		projectName := ""
		if e.Project != nil {
			projectName = e.Project.Name
		}
		if _, err := stmt.ExecContext(
			ctx,
			e.ID,
			e.UserID,
			e.ProjectID,
			projectName,
			e.Description,
			string(tagsJSON),
			e.StartTime.UTC(),
			e.EndTime.UTC(),
			e.DurationSeconds(),
		); err != nil {
			tx.Rollback()
			return err
		}
		exported++
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.log.Info("mysql sink upserted entries", slog.Int("count", exported))
	return nil
}

// Close closes the underlying DB. Not wired via interface to keep ports minimal.
func (c *Client) Close() error { return c.db.Close() }
