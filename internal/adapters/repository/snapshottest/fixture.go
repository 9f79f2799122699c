// Package snapshottest provides shared fixtures for snapshot.Saver tests.
package snapshottest

import (
	"time"

	"github.com/im-knots/ea-monorepo/internal/core/agent"
	"github.com/im-knots/ea-monorepo/internal/core/catalog"
	"github.com/im-knots/ea-monorepo/internal/core/graph"
	"github.com/im-knots/ea-monorepo/internal/core/snapshot"
)

// New builds a snapshot holding a two node graph. Parameter values are
// strings and bools so they survive every codec unchanged.
func New(id, sessionID string, ts time.Time) *snapshot.Snapshot {
	g := graph.New()
	a := g.AddNode(catalog.Entry{
		ID:         "input.text",
		Type:       "input.internal.text",
		Parameters: []catalog.Parameter{{Key: "input", Type: "string", Default: "hello"}},
	})
	b := g.AddNode(catalog.Entry{
		ID:         "worker.ollama",
		Type:       "worker.inference.llm",
		Parameters: []catalog.Parameter{{Key: "stream", Type: "bool", Default: true}},
	})
	_ = g.UpdateNodeAlias(a.ID, "in")
	_, _ = g.Connect(a.ID, b.ID)

	return &snapshot.Snapshot{
		ID:        id,
		SessionID: sessionID,
		AgentID:   "agent-1",
		Meta:      agent.Meta{ID: "agent-1", Name: "My Agent", Description: "d", Creator: "user-1"},
		Graph:     g.Export(),
		Timestamp: ts,
		Version:   snapshot.CurrentVersion,
	}
}
