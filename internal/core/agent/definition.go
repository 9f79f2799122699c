// Package agent maps the editor graph to and from the agent definition
// document exchanged with the agent manager.
package agent

import (
	"bytes"
	"encoding/json"
)

const (
	DefaultName        = "My Agent"
	DefaultDescription = "An awesome AI agent"
)

// Meta is the document-level metadata kept alongside the graph.
type Meta struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Creator     string `json:"creator"`
}

// NodeInstance is a node as it appears in the definition.
type NodeInstance struct {
	Alias      string         `json:"alias" validate:"required,alias"`
	Type       string         `json:"type" validate:"required,node_type"`
	Parameters map[string]any `json:"parameters"`
}

// Edge connects aliases. Each side is a list by wire contract; the editor
// always writes exactly one element.
type Edge struct {
	From MultiString `json:"from" validate:"min=1,dive,required"`
	To   MultiString `json:"to" validate:"min=1,dive,required"`
}

// Definition is the canonical serialized agent. Field order is the wire
// order.
type Definition struct {
	Name        string         `json:"name"`
	Creator     string         `json:"creator" validate:"required"`
	Description string         `json:"description"`
	ID          string         `json:"id,omitempty"`
	Nodes       []NodeInstance `json:"nodes" validate:"dive"`
	Edges       []Edge         `json:"edges" validate:"dive"`
}

// Meta extracts the document-level metadata.
func (d Definition) Meta() Meta {
	return Meta{ID: d.ID, Name: d.Name, Description: d.Description, Creator: d.Creator}
}

// MultiString decodes either a string or a list of strings.
type MultiString []string

// UnmarshalJSON accepts "a" as well as ["a", "b"]. null decodes to an empty
// list.
func (m *MultiString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = MultiString{}
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*m = MultiString{single}
		return nil
	}
	var multiple []string
	if err := json.Unmarshal(data, &multiple); err != nil {
		return err
	}
	*m = multiple
	return nil
}
