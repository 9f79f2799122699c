// Package catalog holds the read-only set of node types an editing session
// can instantiate.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Source fetches node type reference data. The list call may return summary
// entries; Get returns the full definition.
type Source interface {
	ListNodes(ctx context.Context) ([]Entry, error)
	GetNode(ctx context.Context, id string) (*Entry, error)
}

// Catalog is immutable once built and safe for concurrent readers.
type Catalog struct {
	entries []Entry
	byID    map[string]int
}

// New builds a catalog from entries, rejecting invalid or duplicate IDs.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	for i := range entries {
		e := entries[i]
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if _, exists := c.byID[e.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.ID)
		}
		c.byID[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Load fetches the node list and then every definition. A failed
// per-definition fetch keeps the summary entry.
func Load(ctx context.Context, src Source, logger *slog.Logger) (*Catalog, error) {
	summaries, err := src.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list node definitions: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	full := make([]Entry, 0, len(summaries))
	for _, s := range summaries {
		if s.ID == "" {
			continue
		}
		def, err := src.GetNode(ctx, s.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("node definition fetch failed, using summary", "node_id", s.ID, "error", err)
			full = append(full, s)
			continue
		}
		if def.ID == "" {
			def.ID = s.ID
		}
		if def.Type == "" {
			def.Type = s.Type
		}
		full = append(full, *def)
	}

	sort.SliceStable(full, func(i, j int) bool { return full[i].ID < full[j].ID })
	return New(full)
}

// Lookup returns the entry with the given ID.
func (c *Catalog) Lookup(id string) (Entry, error) {
	idx, ok := c.byID[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return c.entries[idx], nil
}

// ByType returns the first entry declaring the given node type.
func (c *Catalog) ByType(nodeType string) (Entry, error) {
	for _, e := range c.entries {
		if e.Type == nodeType {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: type %s", ErrEntryNotFound, nodeType)
}

// Entries returns a copy of all entries in load order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Filter returns entries whose category matches; "" and "all" match everything.
func (c *Catalog) Filter(category string) []Entry {
	if category == "" || category == "all" {
		return c.Entries()
	}
	var out []Entry
	for _, e := range c.entries {
		if e.Category() == category {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }
