// Package graph provides edge definitions
package graph

// Edge connects two nodes by ID. Self-loops and parallel edges are allowed;
// the agent manager is the final validator.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Validate ensures edge integrity
func (e *Edge) Validate() error {
	if e.ID == "" {
		return ErrInvalidEdgeID
	}
	if e.Source == "" {
		return ErrSourceNodeNotFound
	}
	if e.Target == "" {
		return ErrTargetNodeNotFound
	}
	return nil
}

// Touches reports whether the edge references nodeID on either side.
func (e *Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}
