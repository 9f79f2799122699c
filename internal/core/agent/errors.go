// Package agent defines domain-specific errors
package agent

import "errors"

var (
	ErrInvalidJSON     = errors.New("invalid agent definition JSON")
	ErrUnknownNodeType = errors.New("node type not in catalog")
	ErrUnknownAlias    = errors.New("edge references unknown alias")
	ErrDuplicateAlias  = errors.New("duplicate node alias")
)
