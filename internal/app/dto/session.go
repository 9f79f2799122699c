package dto

import "time"

// PollState is the status poller's state.
type PollState string

const (
	PollIdle    PollState = "idle"
	PollPolling PollState = "polling"
)

// StatusLevel classifies the transient status message.
type StatusLevel string

const (
	StatusSuccess StatusLevel = "success"
	StatusError   StatusLevel = "error"
	StatusInfo    StatusLevel = "info"
)

// StatusMessage is the one-shot feedback shown after save, launch or a
// rejected edit.
type StatusMessage struct {
	Level StatusLevel `json:"level"`
	Text  string      `json:"text"`
	At    time.Time   `json:"at"`
}

// NodeView is a node as presented to a client.
type NodeView struct {
	ID              string         `json:"id"`
	Alias           string         `json:"alias"`
	Type            string         `json:"type"`
	X               float64        `json:"x"`
	Y               float64        `json:"y"`
	ExecutionStatus string         `json:"execution_status"`
	ExecutionOutput map[string]any `json:"execution_output"`
	OutputText      string         `json:"output_text,omitempty"`
}

// EdgeView is an edge as presented to a client.
type EdgeView struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// SessionView is the full client-visible state of a session.
type SessionView struct {
	ID         string         `json:"id"`
	AgentID    string         `json:"agent_id,omitempty"`
	Creator    string         `json:"creator"`
	Definition string         `json:"definition"`
	Nodes      []NodeView     `json:"nodes"`
	Edges      []EdgeView     `json:"edges"`
	RunningJob string         `json:"running_job,omitempty"`
	PollState  PollState      `json:"poll_state"`
	Status     *StatusMessage `json:"status,omitempty"`
}
