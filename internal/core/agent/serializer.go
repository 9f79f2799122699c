package agent

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/im-knots/ea-monorepo/internal/core/graph"
)

// ToDefinition renders the graph and metadata as a definition. Edge
// endpoints are mapped through one ID to alias lookup; an endpoint missing
// from the lookup is written as the raw node ID.
func ToDefinition(g *graph.Graph, meta Meta) Definition {
	nodes := g.Nodes()
	aliases := make(map[string]string, len(nodes))
	def := Definition{
		Name:        meta.Name,
		Creator:     meta.Creator,
		Description: meta.Description,
		ID:          meta.ID,
		Nodes:       make([]NodeInstance, 0, len(nodes)),
		Edges:       make([]Edge, 0),
	}
	for _, n := range nodes {
		alias := n.EffectiveAlias()
		aliases[n.ID] = alias
		params, _ := graph.CloneValue(n.ParameterState).(map[string]any)
		def.Nodes = append(def.Nodes, NodeInstance{Alias: alias, Type: n.Type, Parameters: params})
	}
	lookup := func(id string) string {
		if a, ok := aliases[id]; ok {
			return a
		}
		return id
	}
	for _, e := range g.Edges() {
		def.Edges = append(def.Edges, Edge{
			From: MultiString{lookup(e.Source)},
			To:   MultiString{lookup(e.Target)},
		})
	}
	return def
}

// Marshal renders the canonical text: two-space indented JSON.
func Marshal(def Definition) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(def); err != nil {
		return "", fmt.Errorf("encode definition: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// Render is ToDefinition followed by Marshal.
func Render(g *graph.Graph, meta Meta) (string, error) {
	return Marshal(ToDefinition(g, meta))
}

// ParseDefinition decodes text. It has no side effects; a failure means
// the caller keeps its previous state.
func ParseDefinition(text string) (Definition, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Definition{}, fmt.Errorf("%w: expected an object", ErrInvalidJSON)
	}
	var def Definition
	if err := json.Unmarshal(trimmed, &def); err != nil {
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return def, nil
}
