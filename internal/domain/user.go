package domain

import "time"

// User is an account that owns projects and time entries.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsDemo       bool
	CreatedAt    time.Time
}
