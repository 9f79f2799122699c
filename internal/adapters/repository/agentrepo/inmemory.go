// Package agentrepo is an in-process stand-in for the agent manager, used by
// offline tooling and tests.
package agentrepo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/im-knots/ea-monorepo/internal/core/agent"
	"github.com/im-knots/ea-monorepo/internal/core/catalog"
	"github.com/im-knots/ea-monorepo/pkg/validation"
)

var ErrAgentNotFound = errors.New("agent not found")

// InMemoryAgentRepository stores agents and serves node definitions from
// memory.
// PRINCIPLES:
// - KISS: Simple map-based storage
// - SRP: Only responsible for agent persistence
// - Thread-safe
type InMemoryAgentRepository struct {
	mu     sync.RWMutex
	agents map[string]agent.Definition
	nodes  map[string]catalog.Entry
}

// NewInMemoryAgentRepository creates a repository serving the given node
// definitions.
func NewInMemoryAgentRepository(nodes ...catalog.Entry) *InMemoryAgentRepository {
	r := &InMemoryAgentRepository{
		agents: make(map[string]agent.Definition),
		nodes:  make(map[string]catalog.Entry, len(nodes)),
	}
	for _, n := range nodes {
		r.nodes[n.ID] = n
	}
	return r
}

// CreateAgent validates and stores def under a fresh ID.
func (r *InMemoryAgentRepository) CreateAgent(ctx context.Context, def agent.Definition) (string, error) {
	if err := validation.Definition(def); err != nil {
		return "", fmt.Errorf("invalid agent: %w", err)
	}
	id := uuid.NewString()
	def.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[id] = def
	return id, nil
}

// UpdateAgent replaces an existing agent.
func (r *InMemoryAgentRepository) UpdateAgent(ctx context.Context, id string, def agent.Definition) error {
	if err := validation.Definition(def); err != nil {
		return fmt.Errorf("invalid agent: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[id]; !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	def.ID = id
	r.agents[id] = def
	return nil
}

func (r *InMemoryAgentRepository) GetAgent(ctx context.Context, id string) (agent.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.agents[id]
	if !ok {
		return agent.Definition{}, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return def, nil
}

// List returns every stored agent ordered by ID.
func (r *InMemoryAgentRepository) List(ctx context.Context) ([]agent.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]agent.Definition, 0, len(r.agents))
	for _, def := range r.agents {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListNodes implements catalog.Source.
func (r *InMemoryAgentRepository) ListNodes(ctx context.Context) ([]catalog.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]catalog.Entry, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetNode implements catalog.Source.
func (r *InMemoryAgentRepository) GetNode(ctx context.Context, id string) (*catalog.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", catalog.ErrEntryNotFound, id)
	}
	return &n, nil
}
