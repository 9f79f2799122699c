// Package snapshot holds editor drafts: the graph and document metadata of a
// session at one point in time, restorable without the agent manager.
package snapshot

import (
	"time"

	"github.com/im-knots/ea-monorepo/internal/core/agent"
	"github.com/im-knots/ea-monorepo/internal/core/graph"
)

// CurrentVersion is written into every new snapshot.
const CurrentVersion = "1"

// Snapshot is one saved draft.
// PRINCIPLES:
// - KISS: plain data, encoded as a whole by the saver
type Snapshot struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	AgentID   string      `json:"agent_id,omitempty"`
	Meta      agent.Meta  `json:"meta"`
	Graph     graph.State `json:"graph"`
	Label     string      `json:"label,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Version   string      `json:"version"`
}

// Payload is the part of a snapshot stored as an opaque blob.
type Payload struct {
	Meta  agent.Meta  `json:"meta"`
	Graph graph.State `json:"graph"`
}

// Payload extracts the blob part.
func (s *Snapshot) Payload() Payload {
	return Payload{Meta: s.Meta, Graph: s.Graph}
}

// Validate ensures snapshot integrity
func (s *Snapshot) Validate() error {
	if s.ID == "" {
		return ErrInvalidSnapshotID
	}
	if s.SessionID == "" {
		return ErrInvalidSessionID
	}
	return nil
}
