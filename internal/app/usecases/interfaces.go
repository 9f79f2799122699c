package usecases

import (
	"context"

	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/core/agent"
)

// AgentStore persists agent definitions remotely.
// PRINCIPLES:
// - SRP: Only responsible for agent document persistence
// - DIP: Used for dependency injection
type AgentStore interface {
	CreateAgent(ctx context.Context, def agent.Definition) (string, error)
	UpdateAgent(ctx context.Context, id string, def agent.Definition) error
	GetAgent(ctx context.Context, id string) (agent.Definition, error)
}

// JobSubmitter launches a run of a saved agent and returns the job name.
type JobSubmitter interface {
	SubmitJob(ctx context.Context, agentID, userID string) (string, error)
}

// EventPublisher receives session events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev dto.Event) error
}
