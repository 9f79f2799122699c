// Package catalog defines domain-specific errors
package catalog

import "errors"

var (
	ErrEntryNotFound   = errors.New("catalog entry not found")
	ErrInvalidEntryID  = errors.New("invalid catalog entry ID")
	ErrInvalidType     = errors.New("invalid catalog entry type")
	ErrDuplicateEntry  = errors.New("duplicate catalog entry")
	ErrInvalidParamKey = errors.New("invalid parameter key")
)
