package domain

import "errors"

// Failure taxonomy exposed by session gateways. Adapters classify transport
// and backend failures into one of these; callers test with errors.Is.
var (
	// ErrAuthRequired means the operation needs a user context and none was
	// present, or the backend rejected the credentials.
	ErrAuthRequired = errors.New("auth required")

	// ErrNotFound means a referenced entry or project does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a concurrent mutation invalidated an assumption,
	// e.g. a second start fired while one was already in flight.
	ErrConflict = errors.New("conflict")

	// ErrGateway is a generic backend/connectivity failure. It is distinct
	// from "no active session", which is reported as a nil entry.
	ErrGateway = errors.New("gateway failure")
)
