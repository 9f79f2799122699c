package parameter

import (
	"fmt"
	"sort"

	"github.com/im-knots/ea-monorepo/internal/core/graph"
)

// DestinationTextNodeType nodes display their received input as output.
const DestinationTextNodeType = "destination.internal.text"

// SubField is one key of an object item in a list parameter.
type SubField struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Value any    `json:"value"`
}

// Item is one entry of a list parameter.
type Item struct {
	Index  int        `json:"index"`
	Label  string     `json:"label"`
	Value  any        `json:"value,omitempty"`
	Fields []SubField `json:"fields,omitempty"`
}

// Field describes how to render one parameter.
type Field struct {
	Key         string   `json:"key"`
	Description string   `json:"description,omitempty"`
	Widget      Widget   `json:"widget"`
	Value       any      `json:"value"`
	IsDefault   bool     `json:"is_default"`
	Options     []string `json:"options,omitempty"`
	Items       []Item   `json:"items,omitempty"`
}

// Fields renders every declared parameter of a node in declaration order.
func Fields(n *graph.Node) []Field {
	out := make([]Field, 0, len(n.Parameters))
	for _, decl := range n.Parameters {
		value := Resolve(n, decl.Key)
		_, set := n.ParameterState[decl.Key]
		k := Classify(n.Type, decl, value)
		f := Field{
			Key:         decl.Key,
			Description: decl.Description,
			Widget:      k.Widget(),
			Value:       value,
			IsDefault:   !set || n.ParameterState[decl.Key] == nil,
		}
		switch kind := k.(type) {
		case Choice:
			f.Options = append([]string(nil), kind.Options...)
		case List:
			f.Items = listItems(decl.Key, value)
		case Boolean, LongText, Scalar, Unsupported:
		}
		out = append(out, f)
	}
	return out
}

func listItems(key string, value any) []Item {
	items, _ := value.([]any)
	out := make([]Item, 0, len(items))
	for i, it := range items {
		item := Item{Index: i, Label: fmt.Sprintf("%s[%d]", key, i)}
		if obj, ok := it.(map[string]any); ok {
			names := make([]string, 0, len(obj))
			for name := range obj {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				item.Fields = append(item.Fields, SubField{
					Name:  name,
					Label: fmt.Sprintf("%s[%d].%s", key, i, name),
					Value: obj[name],
				})
			}
		} else {
			item.Value = it
		}
		out = append(out, item)
	}
	return out
}

// OutputText returns what a destination text node received during the
// last run, keyed as "<alias>.input" in its execution output.
func OutputText(n *graph.Node) (string, bool) {
	if n.Type != DestinationTextNodeType {
		return "", false
	}
	v, ok := n.ExecutionOutput[n.EffectiveAlias()+".input"]
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}
