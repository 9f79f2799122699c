package agent

import (
	"fmt"

	"github.com/im-knots/ea-monorepo/internal/core/catalog"
	"github.com/im-knots/ea-monorepo/internal/core/graph"
)

// Build reconstructs an editor graph from a stored definition. Node types
// are resolved against the catalog so parameter declarations come back;
// stored parameter values replace the defaults.
func Build(def Definition, cat *catalog.Catalog, opts ...graph.Option) (*graph.Graph, error) {
	g := graph.New(opts...)
	byAlias := make(map[string]string, len(def.Nodes))

	for i, inst := range def.Nodes {
		entry, err := cat.ByType(inst.Type)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w: %s", i, ErrUnknownNodeType, inst.Type)
		}
		n := g.AddNode(entry)
		if inst.Alias != "" {
			if _, dup := byAlias[inst.Alias]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateAlias, inst.Alias)
			}
			if err := g.UpdateNodeAlias(n.ID, inst.Alias); err != nil {
				return nil, err
			}
		}
		for k, v := range inst.Parameters {
			if err := g.UpdateNodeParameter(n.ID, k, graph.CloneValue(v)); err != nil {
				return nil, err
			}
		}
		byAlias[n.EffectiveAlias()] = n.ID
	}

	for i, e := range def.Edges {
		for _, from := range e.From {
			src, ok := byAlias[from]
			if !ok {
				return nil, fmt.Errorf("edge %d: %w: %s", i, ErrUnknownAlias, from)
			}
			for _, to := range e.To {
				dst, ok := byAlias[to]
				if !ok {
					return nil, fmt.Errorf("edge %d: %w: %s", i, ErrUnknownAlias, to)
				}
				if _, err := g.Connect(src, dst); err != nil {
					return nil, err
				}
			}
		}
	}
	return g, nil
}
