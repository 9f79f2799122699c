package parameter

import (
	"fmt"
	"strconv"

	"github.com/im-knots/ea-monorepo/internal/core/graph"
)

// Store applies typed parameter edits to the nodes of a graph. Like the
// graph it is not safe for concurrent use.
type Store struct {
	g *graph.Graph
}

// NewStore wraps g.
func NewStore(g *graph.Graph) *Store {
	return &Store{g: g}
}

// Resolve returns the current value of key, falling back to the declared
// default. The fallback is never written back.
func Resolve(n *graph.Node, key string) any {
	if v, ok := n.ParameterState[key]; ok && v != nil {
		return v
	}
	if decl, ok := n.Declaration(key); ok {
		return decl.Default
	}
	return nil
}

// KindOf classifies one parameter of a node.
func KindOf(n *graph.Node, key string) (Kind, error) {
	decl, ok := n.Declaration(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, key)
	}
	return Classify(n.Type, decl, Resolve(n, key)), nil
}

// Set validates value against the parameter's kind and writes it.
func (s *Store) Set(nodeID, key string, value any) error {
	n, err := s.g.Node(nodeID)
	if err != nil {
		return err
	}
	k, err := KindOf(n, key)
	if err != nil {
		return err
	}
	v, err := coerce(k, value)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", n.EffectiveAlias(), key, err)
	}
	return s.g.UpdateNodeParameter(nodeID, key, v)
}

func coerce(k Kind, value any) (any, error) {
	switch kind := k.(type) {
	case Boolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, ErrTypeMismatch
	case Choice:
		str, ok := value.(string)
		if !ok {
			return nil, ErrTypeMismatch
		}
		for _, opt := range kind.Options {
			if opt == str {
				return str, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrInvalidChoice, str)
	case LongText:
		if str, ok := value.(string); ok {
			return str, nil
		}
		return nil, ErrTypeMismatch
	case Scalar:
		return scalarText(value)
	case List:
		switch items := value.(type) {
		case []any:
			return graph.CloneValue(items), nil
		case []string:
			out := make([]any, len(items))
			for i, it := range items {
				out[i] = it
			}
			return out, nil
		}
		return nil, ErrTypeMismatch
	case Unsupported:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind.Declared)
	default:
		panic(fmt.Sprintf("parameter: unhandled kind %T", k))
	}
}

// scalarText renders single-line field input as text; numbers are not
// kept as numbers.
func scalarText(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	}
	return "", ErrTypeMismatch
}

// Toggle flips a boolean parameter.
func (s *Store) Toggle(nodeID, key string) error {
	n, err := s.g.Node(nodeID)
	if err != nil {
		return err
	}
	k, err := KindOf(n, key)
	if err != nil {
		return err
	}
	if _, ok := k.(Boolean); !ok {
		return fmt.Errorf("%s: %w", key, ErrTypeMismatch)
	}
	cur, _ := Resolve(n, key).(bool)
	return s.g.UpdateNodeParameter(nodeID, key, !cur)
}

func (s *Store) list(nodeID, key string) ([]any, error) {
	n, err := s.g.Node(nodeID)
	if err != nil {
		return nil, err
	}
	k, err := KindOf(n, key)
	if err != nil {
		return nil, err
	}
	if _, ok := k.(List); !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrTypeMismatch)
	}
	items, _ := Resolve(n, key).([]any)
	return graph.CloneValue(items).([]any), nil
}

// SetItem replaces the scalar item at index of a list parameter.
func (s *Store) SetItem(nodeID, key string, index int, value string) error {
	items, err := s.list(nodeID, key)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(items) {
		return fmt.Errorf("%s[%d]: %w", key, index, ErrIndexOutOfRange)
	}
	if _, isObj := items[index].(map[string]any); isObj {
		return fmt.Errorf("%s[%d]: %w", key, index, ErrTypeMismatch)
	}
	items[index] = value
	return s.g.UpdateNodeParameter(nodeID, key, items)
}

// SetField writes field of the object item at index. Index may equal the
// list length to append a new object.
func (s *Store) SetField(nodeID, key string, index int, field, value string) error {
	items, err := s.list(nodeID, key)
	if err != nil {
		return err
	}
	if index < 0 || index > len(items) {
		return fmt.Errorf("%s[%d]: %w", key, index, ErrIndexOutOfRange)
	}
	if index == len(items) {
		items = append(items, map[string]any{})
	}
	obj, ok := items[index].(map[string]any)
	if !ok {
		if items[index] != nil {
			return fmt.Errorf("%s[%d]: %w", key, index, ErrTypeMismatch)
		}
		obj = map[string]any{}
	}
	obj[field] = value
	items[index] = obj
	return s.g.UpdateNodeParameter(nodeID, key, items)
}
