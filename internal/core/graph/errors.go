// Package graph defines domain-specific errors
package graph

import "errors"

// Domain errors - DRY principle: defined once, used everywhere
var (
	// Node errors
	ErrInvalidNodeID   = errors.New("invalid node ID")
	ErrInvalidNodeType = errors.New("invalid node type")
	ErrNodeNotFound    = errors.New("node not found")
	ErrDuplicateNode   = errors.New("duplicate node ID")
	ErrDuplicateAlias  = errors.New("alias already in use")

	// Edge errors
	ErrInvalidEdgeID      = errors.New("invalid edge ID")
	ErrEdgeNotFound       = errors.New("edge not found")
	ErrSourceNodeNotFound = errors.New("source node not found")
	ErrTargetNodeNotFound = errors.New("target node not found")
)
