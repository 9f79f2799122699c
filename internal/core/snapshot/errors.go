// Package snapshot defines domain-specific errors
package snapshot

import "errors"

// Domain errors - DRY principle: defined once, used everywhere
var (
	ErrInvalidSnapshotID = errors.New("invalid snapshot ID")
	ErrInvalidSessionID  = errors.New("invalid session ID")
	ErrNilSnapshot       = errors.New("snapshot cannot be nil")
	ErrSnapshotNotFound  = errors.New("snapshot not found")

	ErrInvalidLimit     = errors.New("limit cannot be negative")
	ErrInvalidOffset    = errors.New("offset cannot be negative")
	ErrInvalidTimeRange = errors.New("invalid time range: since is after before")
)
