// Package parameter implements the typed editing policy for node parameters:
// which widget a parameter gets and what values each widget may write.
package parameter

import (
	"fmt"
	"strings"

	"github.com/im-knots/ea-monorepo/internal/core/catalog"
)

// LongTextNodeType is the node type whose string parameters are edited as
// multi-line text.
const LongTextNodeType = "input.internal.text"

// Widget names the editor control for a parameter.
type Widget string

const (
	WidgetToggle   Widget = "toggle"
	WidgetSelect   Widget = "select"
	WidgetTextArea Widget = "textarea"
	WidgetText     Widget = "text"
	WidgetList     Widget = "list"
	WidgetNone     Widget = "none"
)

// Kind is the closed set of parameter kinds. The concrete types below are
// the only implementations.
type Kind interface {
	Widget() Widget
	kind()
}

// Boolean is edited with a toggle and stores bool.
type Boolean struct{}

// Choice is edited with a select and stores one of Options.
type Choice struct {
	Options []string
}

// LongText is edited with a textarea and stores a string.
type LongText struct{}

// Scalar is edited with a single-line field. Numbers are stored as text.
type Scalar struct{}

// List is edited item by item. Items are scalars or flat objects.
type List struct{}

// Unsupported covers values no widget can edit.
type Unsupported struct {
	Declared string
}

func (Boolean) Widget() Widget     { return WidgetToggle }
func (Choice) Widget() Widget      { return WidgetSelect }
func (LongText) Widget() Widget    { return WidgetTextArea }
func (Scalar) Widget() Widget      { return WidgetText }
func (List) Widget() Widget        { return WidgetList }
func (Unsupported) Widget() Widget { return WidgetNone }

func (Boolean) kind()     {}
func (Choice) kind()      {}
func (LongText) kind()    {}
func (Scalar) kind()      {}
func (List) kind()        {}
func (Unsupported) kind() {}

// Classify picks the kind for a declaration given the current (resolved)
// value. The value wins over the declared type when both are present, so a
// parameter keeps the widget matching what it holds.
func Classify(nodeType string, decl catalog.Parameter, value any) Kind {
	declared := strings.ToLower(decl.Type)

	if _, ok := value.(bool); ok || (value == nil && (declared == "bool" || declared == "boolean")) {
		return Boolean{}
	}
	if len(decl.Enum) > 0 {
		opts := make([]string, len(decl.Enum))
		for i, o := range decl.Enum {
			opts[i] = fmt.Sprint(o)
		}
		return Choice{Options: opts}
	}
	if _, ok := value.(string); nodeType == LongTextNodeType && (ok || (value == nil && declared == "string")) {
		return LongText{}
	}
	if isScalar(value) || (value == nil && isScalarType(declared)) {
		return Scalar{}
	}
	if _, ok := value.([]any); ok || (value == nil && declared == "array") {
		return List{}
	}
	return Unsupported{Declared: decl.Type}
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, float64, float32, int, int32, int64, uint, uint32, uint64:
		return true
	}
	return false
}

func isScalarType(declared string) bool {
	switch declared {
	case "string", "text", "number", "integer", "int", "float":
		return true
	}
	return false
}
