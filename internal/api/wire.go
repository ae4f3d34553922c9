package api

import (
	"time"

	"dainage/internal/domain"
	"dainage/internal/ports"
)

// ProjectSummaryPayload is the joined project summary attached to an entry.
type ProjectSummaryPayload struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// EntryPayload is the wire shape of a time entry.
//
// The joined summary travels under the plural "projects" key (it mirrors the
// backing table name); the singular "project" key is also carried because
// older consumers populate and read that one. Both keys must stay tolerated
// until the queries are unified. Known technical debt; do not "fix" by
// dropping either side.
type EntryPayload struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	ProjectID   string                 `json:"project_id"`
	TaskID      *string                `json:"task_id,omitempty"`
	Description string                 `json:"description,omitempty"`
	StartTime   time.Time              `json:"start_time"`
	EndTime     *time.Time             `json:"end_time"`
	Duration    *int64                 `json:"duration"`
	IsRunning   bool                   `json:"is_running"`
	Tags        []string               `json:"tags"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Projects    *ProjectSummaryPayload `json:"projects,omitempty"`
	Project     *ProjectSummaryPayload `json:"project,omitempty"`
}

// ProjectPayload is the wire shape of a project.
type ProjectPayload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// StartSessionRequest is the body of POST /time-entries/start.
type StartSessionRequest struct {
	ProjectID   string   `json:"projectId" binding:"required"`
	TaskID      *string  `json:"taskId,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// CreateProjectRequest is the body of POST /projects.
type CreateProjectRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// EntryToPayload maps a domain entry to its wire shape.
func EntryToPayload(e *domain.TimeEntry) *EntryPayload {
	if e == nil {
		return nil
	}
	p := &EntryPayload{
		ID:          e.ID,
		UserID:      e.UserID,
		ProjectID:   e.ProjectID,
		TaskID:      e.TaskID,
		Description: e.Description,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Duration:    e.Duration,
		IsRunning:   e.IsRunning,
		Tags:        e.Tags,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.Project != nil {
		p.Projects = &ProjectSummaryPayload{Name: e.Project.Name, Color: e.Project.Color}
	}
	return p
}

// PayloadToEntry maps a wire entry back to the domain, tolerating the joined
// summary under either key and preferring the plural one.
func PayloadToEntry(p *EntryPayload) *domain.TimeEntry {
	if p == nil {
		return nil
	}
	e := &domain.TimeEntry{
		ID:          p.ID,
		UserID:      p.UserID,
		ProjectID:   p.ProjectID,
		TaskID:      p.TaskID,
		Description: p.Description,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Duration:    p.Duration,
		IsRunning:   p.IsRunning,
		Tags:        p.Tags,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	join := p.Projects
	if join == nil {
		join = p.Project
	}
	if join != nil {
		e.Project = &domain.ProjectSummary{Name: join.Name, Color: join.Color}
	}
	return e
}

// ProjectToPayload maps a domain project to its wire shape.
func ProjectToPayload(p *domain.Project) *ProjectPayload {
	if p == nil {
		return nil
	}
	return &ProjectPayload{
		ID:        p.ID,
		UserID:    p.UserID,
		Name:      p.Name,
		Color:     p.Color,
		CreatedAt: p.CreatedAt,
	}
}

// PayloadToProject maps a wire project back to the domain.
func PayloadToProject(p *ProjectPayload) *domain.Project {
	if p == nil {
		return nil
	}
	return &domain.Project{
		ID:        p.ID,
		UserID:    p.UserID,
		Name:      p.Name,
		Color:     p.Color,
		CreatedAt: p.CreatedAt,
	}
}

// StartRequestFromWire binds the authenticated user to the request body.
func StartRequestFromWire(userID string, r StartSessionRequest) ports.StartRequest {
	return ports.StartRequest{
		UserID:      userID,
		ProjectID:   r.ProjectID,
		TaskID:      r.TaskID,
		Description: r.Description,
		Tags:        r.Tags,
	}
}
