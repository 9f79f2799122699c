package usecases

import (
	"log/slog"

	"github.com/im-knots/ea-monorepo/internal/app/services"
	"github.com/im-knots/ea-monorepo/internal/core/catalog"
	"github.com/im-knots/ea-monorepo/internal/core/graph"
)

// EditorContext carries the collaborators shared by every editing session.
// The host builds it once and owns the lifecycle of everything inside.
type EditorContext struct {
	Catalog *catalog.Catalog
	Agents  AgentStore
	Jobs    JobSubmitter
	Status  services.StatusFetcher

	// Optional.
	Drafts *services.DraftService
	Events EventPublisher

	Poller       services.PollerConfig
	GraphOptions []graph.Option
	Logger       *slog.Logger
}
