package dto

import "time"

// EventType names a session event.
type EventType string

const (
	EventJobStarted   EventType = "job.started"
	EventNodeStatus   EventType = "node.status"
	EventJobCompleted EventType = "job.completed"
	EventAgentSaved   EventType = "agent.saved"
)

// Event is published for observers of a session, e.g. a UI pushing status
// to browsers.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	AgentID   string    `json:"agent_id,omitempty"`
	JobName   string    `json:"job_name,omitempty"`
	Alias     string    `json:"alias,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
