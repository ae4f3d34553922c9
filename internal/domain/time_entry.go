package domain

import "time"

// TimeEntry represents one work session, possibly still running.
// EndTime and Duration are set exactly once, when the session is stopped.
type TimeEntry struct {
	ID          string
	UserID      string
	ProjectID   string
	TaskID      *string
	Description string
	StartTime   time.Time
	EndTime     *time.Time
	Duration    *int64 // seconds, present once stopped
	IsRunning   bool
	Tags        []string
	Project     *ProjectSummary // joined project summary, populated on fetch
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DurationSeconds returns the stored duration, or 0 when the entry is still
// running or the duration was never computed.
func (e *TimeEntry) DurationSeconds() int64 {
	if e.Duration == nil {
		return 0
	}
	return *e.Duration
}

// Stopped reports whether the entry has been closed out.
func (e *TimeEntry) Stopped() bool {
	return !e.IsRunning && e.EndTime != nil
}
