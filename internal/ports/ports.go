package ports

import (
	"context"
	"time"

	"dainage/internal/domain"
)

// StartRequest carries the parameters for starting a session.
type StartRequest struct {
	UserID      string
	ProjectID   string
	TaskID      *string
	Description string
	Tags        []string
}

// SessionGateway mediates all persistence operations for timer sessions.
//
// GetActiveSession returns (nil, nil) when the user has no running entry;
// a non-nil error always means "could not determine", never "none".
// StartSession closes any prior running entry for the user before creating
// the new one, atomically with respect to concurrent reads. StopSession sets
// the end time, clears the running flag and stores the truncated integer
// duration in seconds; it only touches entries owned by userID, and an entry
// owned by someone else reads as not found.
type SessionGateway interface {
	GetActiveSession(ctx context.Context, userID string) (*domain.TimeEntry, error)
	StartSession(ctx context.Context, req StartRequest) (*domain.TimeEntry, error)
	StopSession(ctx context.Context, userID, entryID string) (*domain.TimeEntry, error)
}

// ProjectDirectory lists and creates the projects a user can track against.
type ProjectDirectory interface {
	ListProjects(ctx context.Context, userID string) ([]domain.Project, error)
	CreateProject(ctx context.Context, userID, name, color string) (*domain.Project, error)
}

// EntryLog reads back finished and running entries for reports.
type EntryLog interface {
	ListEntries(ctx context.Context, userID string, from, to time.Time) ([]domain.TimeEntry, error)
}

// UserDirectory resolves accounts for login.
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetDemoUser(ctx context.Context) (*domain.User, error)
}

// ExportSource yields completed entries for the analytics export.
type ExportSource interface {
	ListCompletedSince(ctx context.Context, since time.Time) ([]domain.TimeEntry, error)
}

// Sink receives completed entries and persists them to a reporting target.
// The interface is intentionally generic to support sinks other than MySQL.
type Sink interface {
	ExportEntries(ctx context.Context, entries []domain.TimeEntry) error
}
