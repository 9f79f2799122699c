package dto

import (
	"encoding/json"
	"strings"
	"time"
)

// TerminalJobStatus ends polling. Remote casing varies, so compare with
// IsTerminal.
const TerminalJobStatus = "completed"

// IsTerminal reports whether a job status ends polling.
func IsTerminal(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), TerminalJobStatus)
}

// JobRequest is the job API submission body.
type JobRequest struct {
	AgentID string `json:"agent_id"`
	UserID  string `json:"user_id"`
}

// JobCreated is the job API response.
type JobCreated struct {
	Status  string `json:"status"`
	JobName string `json:"job_name"`
	UserID  string `json:"user_id"`
}

// NodeStatus is one per-node entry of a job in the user record. Output is
// normally a JSON document encoded as a string; an inline object is accepted
// too.
type NodeStatus struct {
	Alias  string          `json:"alias"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
}

// Job is one entry of the user record's job list.
type Job struct {
	JobName     string       `json:"job_name"`
	JobType     string       `json:"job_type,omitempty"`
	Status      string       `json:"status"`
	ID          string       `json:"id,omitempty"`
	Nodes       []NodeStatus `json:"nodes,omitempty"`
	LastActive  time.Time    `json:"last_active,omitempty"`
	CreatedTime time.Time    `json:"created_time,omitempty"`
}

// UserRecord is the status source's view of a user.
type UserRecord struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Jobs []Job  `json:"jobs"`
}

// FindJob returns the job named jobName.
func (u *UserRecord) FindJob(jobName string) (*Job, bool) {
	for i := range u.Jobs {
		if u.Jobs[i].JobName == jobName {
			return &u.Jobs[i], true
		}
	}
	return nil, false
}

// NodeUpdate is a parsed NodeStatus ready to apply to the graph. Output is
// nil when it should be left unchanged.
type NodeUpdate struct {
	Alias  string
	Status string
	Output map[string]any
}

// AgentCreated is the agent manager's create response.
type AgentCreated struct {
	Message string `json:"message,omitempty"`
	AgentID string `json:"agent_id"`
	Creator string `json:"creator,omitempty"`
}
