package domain

import "time"

// DefaultProjectColor is the display color used when an entry has no joined
// project summary.
const DefaultProjectColor = "#3B82F6"

// Project represents a project a time entry can be tracked against.
type Project struct {
	ID        string
	UserID    string
	Name      string
	Color     string // display hex, e.g. #3B82F6
	CreatedAt time.Time
}

// ProjectSummary is the denormalized slice of a project attached to a time
// entry when the fetch requests the join.
type ProjectSummary struct {
	Name  string
	Color string
}

// Summary returns the denormalized view of the project.
func (p *Project) Summary() ProjectSummary {
	return ProjectSummary{Name: p.Name, Color: p.Color}
}
