// Package graph provides the in-memory workflow graph edited in one session.
// A Graph is not safe for concurrent use; the owning session serializes access.
package graph

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/im-knots/ea-monorepo/internal/core/catalog"
)

// LayoutSize bounds the random placement of new nodes on both axes.
const LayoutSize = 400

// Option configures a Graph.
type Option func(*Graph)

// WithIDGenerator overrides the random suffix used for node and edge IDs.
func WithIDGenerator(fn func() string) Option {
	return func(g *Graph) { g.newID = fn }
}

// WithPlacement overrides the initial position of new nodes.
func WithPlacement(fn func() Position) Option {
	return func(g *Graph) { g.place = fn }
}

// Graph is the authoritative node and edge set for one agent definition.
// PRINCIPLES:
// - SRP: structure only, no I/O and no serialization
// - Nodes and edges keep insertion order
type Graph struct {
	nodes []*Node
	byID  map[string]*Node
	edges []*Edge
	newID func() string
	place func() Position
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		byID:  make(map[string]*Node),
		newID: uuid.NewString,
		place: randomPosition,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func randomPosition() Position {
	return Position{X: rand.Float64() * LayoutSize, Y: rand.Float64() * LayoutSize}
}

// AddNode instantiates a catalog entry. State is seeded from the declared
// defaults; the node starts Idle with no alias.
func (g *Graph) AddNode(entry catalog.Entry) *Node {
	n := &Node{
		ID:              entry.Type + "-" + g.newID(),
		Type:            entry.Type,
		CatalogID:       entry.ID,
		Parameters:      append([]catalog.Parameter(nil), entry.Parameters...),
		ParameterState:  make(map[string]any, len(entry.Parameters)),
		Position:        g.place(),
		ExecutionStatus: StatusIdle,
		ExecutionOutput: map[string]any{},
	}
	for _, p := range entry.Parameters {
		n.ParameterState[p.Key] = CloneValue(p.Default)
	}
	g.nodes = append(g.nodes, n)
	g.byID[n.ID] = n
	return n
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, error) {
	n, ok := g.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// NodeByAlias returns the first node whose effective alias matches.
func (g *Graph) NodeByAlias(alias string) (*Node, bool) {
	for _, n := range g.nodes {
		if n.EffectiveAlias() == alias {
			return n, true
		}
	}
	return nil, false
}

// Nodes returns the nodes in insertion order. The slice is a copy; the
// nodes are not.
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []*Edge {
	return append([]*Edge(nil), g.edges...)
}

// UpdateNodeAlias renames a node. An empty alias resets it to the ID.
// The new effective alias must not be used by any other node.
func (g *Graph) UpdateNodeAlias(nodeID, alias string) error {
	n, err := g.Node(nodeID)
	if err != nil {
		return err
	}
	effective := alias
	if effective == "" {
		effective = n.ID
	}
	for _, other := range g.nodes {
		if other != n && other.EffectiveAlias() == effective {
			return fmt.Errorf("%w: %q", ErrDuplicateAlias, effective)
		}
	}
	n.Alias = alias
	return nil
}

// UpdateNodeParameter writes value into the node's parameter state without
// checking it against the declared kind.
func (g *Graph) UpdateNodeParameter(nodeID, key string, value any) error {
	n, err := g.Node(nodeID)
	if err != nil {
		return err
	}
	if n.ParameterState == nil {
		n.ParameterState = make(map[string]any)
	}
	n.ParameterState[key] = value
	return nil
}

// MoveNode updates layout only.
func (g *Graph) MoveNode(nodeID string, pos Position) error {
	n, err := g.Node(nodeID)
	if err != nil {
		return err
	}
	n.Position = pos
	return nil
}

// Connect appends an edge from source to target.
func (g *Graph) Connect(sourceID, targetID string) (*Edge, error) {
	if _, ok := g.byID[sourceID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNodeNotFound, sourceID)
	}
	if _, ok := g.byID[targetID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNodeNotFound, targetID)
	}
	e := &Edge{ID: "edge-" + g.newID(), Source: sourceID, Target: targetID}
	g.edges = append(g.edges, e)
	return e, nil
}

// RemoveEdge deletes a single edge.
func (g *Graph) RemoveEdge(edgeID string) error {
	for i, e := range g.edges {
		if e.ID == edgeID {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
}

// RemoveNode deletes a node and every edge incident to it.
func (g *Graph) RemoveNode(nodeID string) error {
	if _, ok := g.byID[nodeID]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	delete(g.byID, nodeID)
	for i, n := range g.nodes {
		if n.ID == nodeID {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			break
		}
	}
	kept := g.edges[:0]
	for _, e := range g.edges {
		if !e.Touches(nodeID) {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(g.edges); i++ {
		g.edges[i] = nil
	}
	g.edges = kept
	return nil
}

// ResetExecutionState marks every node Idle and clears outputs.
func (g *Graph) ResetExecutionState() {
	for _, n := range g.nodes {
		n.ExecutionStatus = StatusIdle
		n.ExecutionOutput = map[string]any{}
	}
}

// ApplyNodeStatus overwrites the status of every node whose effective alias
// matches, and the output too when one was parsed. It returns the number of
// nodes updated.
func (g *Graph) ApplyNodeStatus(alias string, status Status, output map[string]any) int {
	updated := 0
	for _, n := range g.nodes {
		if n.EffectiveAlias() != alias {
			continue
		}
		n.ExecutionStatus = status
		if output != nil {
			n.ExecutionOutput = CloneValue(output).(map[string]any)
		}
		updated++
	}
	return updated
}

// State is a detached copy of the graph, used for draft snapshots.
type State struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// Export returns a deep copy of the graph contents.
func (g *Graph) Export() State {
	s := State{
		Nodes: make([]*Node, 0, len(g.nodes)),
		Edges: make([]*Edge, 0, len(g.edges)),
	}
	for _, n := range g.nodes {
		s.Nodes = append(s.Nodes, n.Clone())
	}
	for _, e := range g.edges {
		c := *e
		s.Edges = append(s.Edges, &c)
	}
	return s
}

// Restore replaces the graph contents with s. It fails without modifying
// the graph when s is inconsistent.
func (g *Graph) Restore(s State) error {
	byID := make(map[string]*Node, len(s.Nodes))
	aliases := make(map[string]struct{}, len(s.Nodes))
	nodes := make([]*Node, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		if n == nil {
			continue
		}
		if err := n.Validate(); err != nil {
			return err
		}
		if _, dup := byID[n.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		alias := n.EffectiveAlias()
		if _, dup := aliases[alias]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateAlias, alias)
		}
		aliases[alias] = struct{}{}
		c := n.Clone()
		if c.ExecutionStatus == "" {
			c.ExecutionStatus = StatusIdle
		}
		byID[c.ID] = c
		nodes = append(nodes, c)
	}
	edges := make([]*Edge, 0, len(s.Edges))
	for _, e := range s.Edges {
		if e == nil {
			continue
		}
		if err := e.Validate(); err != nil {
			return err
		}
		if _, ok := byID[e.Source]; !ok {
			return fmt.Errorf("%w: %s", ErrSourceNodeNotFound, e.Source)
		}
		if _, ok := byID[e.Target]; !ok {
			return fmt.Errorf("%w: %s", ErrTargetNodeNotFound, e.Target)
		}
		c := *e
		edges = append(edges, &c)
	}
	g.nodes, g.byID, g.edges = nodes, byID, edges
	return nil
}
