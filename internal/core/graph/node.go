// Package graph provides node definitions
package graph

import (
	"strings"

	"github.com/im-knots/ea-monorepo/internal/core/catalog"
)

// Status is the execution state reported for a node. Remote values are kept
// verbatim; compare with Is.
type Status string

const (
	StatusIdle      Status = "Idle"
	StatusExecuting Status = "Executing"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

// Is compares two statuses ignoring letter case.
func (s Status) Is(other Status) bool {
	return strings.EqualFold(string(s), string(other))
}

// Position is a layout coordinate. It never affects the serialized agent.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one instantiated catalog entry in the editor graph.
// PRINCIPLES:
// - KISS: Simple node representation
// - SRP: Only responsible for node data
type Node struct {
	ID              string              `json:"id"`
	Alias           string              `json:"alias,omitempty"`
	Type            string              `json:"type"`
	CatalogID       string              `json:"catalog_id,omitempty"`
	Parameters      []catalog.Parameter `json:"parameters,omitempty"`
	ParameterState  map[string]any      `json:"parameter_state"`
	Position        Position            `json:"position"`
	ExecutionStatus Status              `json:"execution_status"`
	ExecutionOutput map[string]any      `json:"execution_output"`
}

// Validate ensures node integrity
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if n.Type == "" {
		return ErrInvalidNodeType
	}
	return nil
}

// EffectiveAlias is the name used in the serialized agent and as the join
// key for execution status. An unset alias falls back to the ID.
func (n *Node) EffectiveAlias() string {
	if n.Alias == "" {
		return n.ID
	}
	return n.Alias
}

// Declaration returns the parameter declaration for key.
func (n *Node) Declaration(key string) (catalog.Parameter, bool) {
	for _, p := range n.Parameters {
		if p.Key == key {
			return p, true
		}
	}
	return catalog.Parameter{}, false
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Parameters = append([]catalog.Parameter(nil), n.Parameters...)
	c.ParameterState = CloneValue(n.ParameterState).(map[string]any)
	c.ExecutionOutput = CloneValue(n.ExecutionOutput).(map[string]any)
	return &c
}

// CloneValue deep-copies the JSON-shaped values held in parameter state and
// execution output. Nil maps come back as empty maps.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = CloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = CloneValue(val)
		}
		return out
	default:
		return v
	}
}
