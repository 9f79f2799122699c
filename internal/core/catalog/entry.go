package catalog

// Parameter is one configurable field declared by a node type.
type Parameter struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// Metadata carries descriptive information about a node type.
type Metadata struct {
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Entry is the template a graph node is instantiated from.
// PRINCIPLES:
// - KISS: mirrors the node definition document as served remotely
// - SRP: reference data only, never mutated after load
type Entry struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Name       string      `json:"name,omitempty"`
	Creator    string      `json:"creator,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty"`
	Outputs    []Parameter `json:"outputs,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// Validate ensures entry integrity
func (e *Entry) Validate() error {
	if e.ID == "" {
		return ErrInvalidEntryID
	}
	if e.Type == "" {
		return ErrInvalidType
	}
	for _, p := range e.Parameters {
		if p.Key == "" {
			return ErrInvalidParamKey
		}
	}
	return nil
}

// Category returns the leading segment of the type, e.g. "input" for
// "input.internal.text".
func (e *Entry) Category() string {
	for i := 0; i < len(e.Type); i++ {
		if e.Type[i] == '.' {
			return e.Type[:i]
		}
	}
	return e.Type
}

// DisplayName prefers the human name and falls back to the ID.
func (e *Entry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}
