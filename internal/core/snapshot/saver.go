package snapshot

import (
	"context"
	"time"
)

// Saver persists snapshots.
// PRINCIPLES:
// - ISP: four methods, nothing backend specific
type Saver interface {
	Save(ctx context.Context, s *Snapshot) error
	Load(ctx context.Context, id string) (*Snapshot, error)
	List(ctx context.Context, filter Filter) ([]*Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// Filter for snapshot queries. Results are newest first.
type Filter struct {
	SessionID string     `json:"session_id,omitempty"`
	AgentID   string     `json:"agent_id,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
	Before    *time.Time `json:"before,omitempty"`
}

// Validate ensures filter parameters are valid
func (f *Filter) Validate() error {
	if f.Limit < 0 {
		return ErrInvalidLimit
	}
	if f.Offset < 0 {
		return ErrInvalidOffset
	}
	if f.Since != nil && f.Before != nil && f.Since.After(*f.Before) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Matches reports whether s passes the filter's predicates. Paging is
// applied by the caller.
func (f *Filter) Matches(s *Snapshot) bool {
	if f.SessionID != "" && s.SessionID != f.SessionID {
		return false
	}
	if f.AgentID != "" && s.AgentID != f.AgentID {
		return false
	}
	if f.Since != nil && !s.Timestamp.After(*f.Since) {
		return false
	}
	if f.Before != nil && !s.Timestamp.Before(*f.Before) {
		return false
	}
	return true
}
