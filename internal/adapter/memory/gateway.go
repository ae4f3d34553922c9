// Package memory implements the session gateway against process-local state.
// It backs the demo mode of the CLI and the handler tests; selection between
// this and the remote gateway is a configuration decision, never a magic
// user id in business logic.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dainage/internal/domain"
	"dainage/internal/ports"
)

// Gateway holds entries and projects in memory. It enforces the same
// invariant the real backend does: at most one running entry per user,
// with last-writer-wins on start.
type Gateway struct {
	now func() time.Time

	mu       sync.Mutex
	entries  map[string]*domain.TimeEntry // by entry id
	projects map[string]*domain.Project   // by project id
}

func NewGateway() *Gateway {
	return &Gateway{
		now:      time.Now,
		entries:  make(map[string]*domain.TimeEntry),
		projects: make(map[string]*domain.Project),
	}
}

// WithClock overrides the wall clock. Test seam.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

// SeedProject registers a project, assigning an id when none is set.
func (g *Gateway) SeedProject(p domain.Project) domain.Project {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Color == "" {
		p.Color = domain.DefaultProjectColor
	}
	cp := p
	g.projects[p.ID] = &cp
	return p
}

func (g *Gateway) GetActiveSession(ctx context.Context, userID string) (*domain.TimeEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.entries {
		if e.UserID == userID && e.IsRunning {
			return g.withJoin(e), nil
		}
	}
	return nil, nil
}

func (g *Gateway) StartSession(ctx context.Context, req ports.StartRequest) (*domain.TimeEntry, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("start session: %w", domain.ErrAuthRequired)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.projects[req.ProjectID]
	if !ok || p.UserID != "" && p.UserID != req.UserID {
		return nil, fmt.Errorf("project %s: %w", req.ProjectID, domain.ErrNotFound)
	}

	now := g.now()
	// Close any prior running entry first: last-writer-wins, not an error.
	for _, e := range g.entries {
		if e.UserID == req.UserID && e.IsRunning {
			g.closeEntry(e, now)
		}
	}

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
	g.entries[entry.ID] = entry
	return g.withJoin(entry), nil
}

func (g *Gateway) StopSession(ctx context.Context, userID, entryID string) (*domain.TimeEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[entryID]
	if !ok || e.UserID != userID {
		return nil, fmt.Errorf("entry %s: %w", entryID, domain.ErrNotFound)
	}
	if e.IsRunning {
		g.closeEntry(e, g.now())
	}
	return g.withJoin(e), nil
}

func (g *Gateway) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Project, 0, len(g.projects))
	for _, p := range g.projects {
		if p.UserID == "" || p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (g *Gateway) CreateProject(ctx context.Context, userID, name, color string) (*domain.Project, error) {
	if userID == "" {
		return nil, fmt.Errorf("create project: %w", domain.ErrAuthRequired)
	}
	if color == "" {
		color = domain.DefaultProjectColor
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	p := &domain.Project{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Color:     color,
		CreatedAt: g.now(),
	}
	g.projects[p.ID] = p
	cp := *p
	return &cp, nil
}

func (g *Gateway) ListEntries(ctx context.Context, userID string, from, to time.Time) ([]domain.TimeEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []domain.TimeEntry
	for _, e := range g.entries {
		if e.UserID != userID {
			continue
		}
		if e.StartTime.Before(from) || e.StartTime.After(to) {
			continue
		}
		out = append(out, *g.withJoin(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

// closeEntry stops e at now, computing the truncated integer duration.
// Callers hold the mutex.
func (g *Gateway) closeEntry(e *domain.TimeEntry, now time.Time) {
	end := now
	dur := int64(end.Sub(e.StartTime) / time.Second)
	if dur < 0 {
		dur = 0
	}
	e.EndTime = &end
	e.Duration = &dur
	e.IsRunning = false
	e.UpdatedAt = now
}

// withJoin returns a copy of e with the project summary populated.
// Callers hold the mutex.
func (g *Gateway) withJoin(e *domain.TimeEntry) *domain.TimeEntry {
	cp := *e
	if p, ok := g.projects[e.ProjectID]; ok {
		s := p.Summary()
		cp.Project = &s
	}
	return &cp
}
