// Package agentmanager talks to the agent manager service: node type
// definitions and agent documents.
package agentmanager

import (
	"context"
	"fmt"

	"github.com/im-knots/ea-monorepo/internal/adapters/rest"
	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/core/agent"
	"github.com/im-knots/ea-monorepo/internal/core/catalog"
)

// Client implements catalog.Source and the session's agent store.
type Client struct {
	rest *rest.Client
}

// New wraps a REST client pointed at the agent manager's /api/v1 root.
func New(rc *rest.Client) *Client {
	return &Client{rest: rc}
}

// ListNodes returns the node type summaries.
func (c *Client) ListNodes(ctx context.Context) ([]catalog.Entry, error) {
	var entries []catalog.Entry
	if err := c.rest.Get(ctx, "/nodes", &entries); err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return entries, nil
}

// GetNode returns the full definition of a node type.
func (c *Client) GetNode(ctx context.Context, id string) (*catalog.Entry, error) {
	var entry catalog.Entry
	if err := c.rest.Get(ctx, "/nodes/"+id, &entry); err != nil {
		return nil, fmt.Errorf("get node %s: %w", id, err)
	}
	return &entry, nil
}

// CreateAgent stores a new agent and returns its ID.
func (c *Client) CreateAgent(ctx context.Context, def agent.Definition) (string, error) {
	var created dto.AgentCreated
	if err := c.rest.Post(ctx, "/agents", def, &created); err != nil {
		return "", fmt.Errorf("create agent: %w", err)
	}
	if created.AgentID == "" {
		return "", fmt.Errorf("create agent: %w: response carried no agent_id", dto.ErrRemote)
	}
	return created.AgentID, nil
}

// UpdateAgent replaces the stored agent document.
func (c *Client) UpdateAgent(ctx context.Context, id string, def agent.Definition) error {
	if err := c.rest.Put(ctx, "/agents/"+id, def, nil); err != nil {
		return fmt.Errorf("update agent %s: %w", id, err)
	}
	return nil
}

// GetAgent fetches a stored agent document.
func (c *Client) GetAgent(ctx context.Context, id string) (agent.Definition, error) {
	var def agent.Definition
	if err := c.rest.Get(ctx, "/agents/"+id, &def); err != nil {
		return agent.Definition{}, fmt.Errorf("get agent %s: %w", id, err)
	}
	return def, nil
}
