package validation

import (
	"fmt"

	"github.com/im-knots/ea-monorepo/internal/core/agent"
)

// Definition validates an agent definition before it is sent to the agent
// manager: struct tags first, then alias uniqueness and edge endpoints.
// Self-loops and repeated edges are allowed.
func Definition(def agent.Definition) error {
	if err := Struct(def); err != nil {
		return err
	}

	var errs ValidationErrors
	seen := make(map[string]int, len(def.Nodes))
	for i, n := range def.Nodes {
		if first, dup := seen[n.Alias]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("nodes[%d].alias", i),
				Value:   n.Alias,
				Message: fmt.Sprintf("duplicates nodes[%d].alias", first),
			})
			continue
		}
		seen[n.Alias] = i
	}

	check := func(field string, aliases agent.MultiString) {
		for j, a := range aliases {
			if _, ok := seen[a]; !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s[%d]", field, j),
					Value:   a,
					Message: "does not name a node",
				})
			}
		}
	}
	for i, e := range def.Edges {
		check(fmt.Sprintf("edges[%d].from", i), e.From)
		check(fmt.Sprintf("edges[%d].to", i), e.To)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
