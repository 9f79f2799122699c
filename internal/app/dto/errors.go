package dto

import "errors"

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMissingCreator  = errors.New("creator ID is required")
	ErrAgentNotSaved   = errors.New("agent must be saved before it can run")
	ErrAgentIDChanged  = errors.New("agent ID cannot be changed once assigned")
	ErrNoCatalog       = errors.New("node catalog not loaded")
	ErrRemote          = errors.New("remote service call failed")
	ErrNoDraftStore    = errors.New("draft snapshots are disabled")
)
