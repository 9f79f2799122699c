package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/core/agent"
	"github.com/im-knots/ea-monorepo/internal/core/parameter"
	"github.com/im-knots/ea-monorepo/internal/core/snapshot"
	"github.com/im-knots/ea-monorepo/pkg/validation"
)

// Save sends the current text to the agent manager: a create when no agent
// ID is tracked yet, an update otherwise. The returned ID is tracked from
// then on. There is no retry; the outcome is also the status message.
func (s *Session) Save(ctx context.Context) (string, error) {
	ctx = s.withCredential(ctx)
	s.mu.Lock()
	text := s.text
	agentID := s.meta.ID
	s.mu.Unlock()

	def, err := agent.ParseDefinition(text)
	if err != nil {
		s.setStatus(dto.StatusError, "invalid JSON: %v", err)
		return "", err
	}
	if def.Creator == "" {
		def.Creator = s.creator
	}
	if def.Creator == "" {
		s.setStatus(dto.StatusError, "no creator for this agent")
		return "", dto.ErrMissingCreator
	}
	if err := validation.Definition(def); err != nil {
		s.setStatus(dto.StatusError, "agent definition is invalid: %v", err)
		return "", err
	}

	if agentID != "" {
		def.ID = agentID
		if err := s.ectx.Agents.UpdateAgent(ctx, agentID, def); err != nil {
			s.logger.Error("agent update failed", slog.String("agent", agentID), slog.Any("error", err))
			s.setStatus(dto.StatusError, "error saving the agent: %v", err)
			return "", err
		}
		s.setStatus(dto.StatusSuccess, "agent updated")
		s.publish(dto.Event{Type: dto.EventAgentSaved, AgentID: agentID})
		return agentID, nil
	}

	def.ID = ""
	id, err := s.ectx.Agents.CreateAgent(ctx, def)
	if err != nil {
		s.logger.Error("agent create failed", slog.Any("error", err))
		s.setStatus(dto.StatusError, "error saving the agent: %v", err)
		return "", err
	}

	s.mu.Lock()
	if s.meta.ID == "" {
		s.meta.ID = id
		s.renderLocked()
	}
	s.setStatusLocked(dto.StatusSuccess, "agent saved")
	s.mu.Unlock()

	s.logger.Info("agent created", slog.String("agent", id))
	s.publish(dto.Event{Type: dto.EventAgentSaved, AgentID: id})
	return id, nil
}

// Open replaces the session's graph with a stored agent. Polling for the
// previous agent stops.
func (s *Session) Open(ctx context.Context, agentID string) error {
	if s.ectx.Catalog == nil {
		return dto.ErrNoCatalog
	}
	def, err := s.ectx.Agents.GetAgent(s.withCredential(ctx), agentID)
	if err != nil {
		s.setStatus(dto.StatusError, "failed to load agent: %v", err)
		return err
	}
	g, err := agent.Build(def, s.ectx.Catalog, s.ectx.GraphOptions...)
	if err != nil {
		s.setStatus(dto.StatusError, "failed to load agent: %v", err)
		return fmt.Errorf("open agent %s: %w", agentID, err)
	}

	s.launchMu.Lock()
	defer s.launchMu.Unlock()
	s.poller.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.g = g
	s.params = parameter.NewStore(g)
	s.meta = agent.Meta{
		ID:          agentID,
		Name:        def.Name,
		Description: def.Description,
		Creator:     s.creator,
	}
	s.runningJob = ""
	s.renderLocked()
	s.setStatusLocked(dto.StatusInfo, "agent %s loaded", agentID)
	return nil
}

// SaveDraft stores a local snapshot of the graph and metadata.
func (s *Session) SaveDraft(ctx context.Context, label string) (*snapshot.Snapshot, error) {
	if s.ectx.Drafts == nil {
		return nil, dto.ErrNoDraftStore
	}
	s.mu.Lock()
	meta := s.meta
	state := s.g.Export()
	s.mu.Unlock()

	return s.ectx.Drafts.CreateDraft(ctx, s.id, meta, state, label)
}

// ListDrafts returns the drafts of the tracked agent, from any session,
// together with this session's own drafts. Before the first save only the
// session's drafts exist. Newest first.
func (s *Session) ListDrafts(ctx context.Context, limit int) ([]*snapshot.Snapshot, error) {
	if s.ectx.Drafts == nil {
		return nil, dto.ErrNoDraftStore
	}
	s.mu.Lock()
	agentID := s.meta.ID
	s.mu.Unlock()

	own, err := s.ectx.Drafts.ListDrafts(ctx, snapshot.Filter{SessionID: s.id, Limit: limit})
	if err != nil || agentID == "" {
		return own, err
	}
	byAgent, err := s.ectx.Drafts.ListDrafts(ctx, snapshot.Filter{AgentID: agentID, Limit: limit})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(byAgent)+len(own))
	out := make([]*snapshot.Snapshot, 0, len(byAgent)+len(own))
	for _, d := range append(byAgent, own...) {
		if !seen[d.ID] {
			seen[d.ID] = true
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteDraft removes a draft listed by ListDrafts. Drafts of other agents
// and sessions are reported as not found.
func (s *Session) DeleteDraft(ctx context.Context, draftID string) error {
	if s.ectx.Drafts == nil {
		return dto.ErrNoDraftStore
	}
	snap, err := s.ectx.Drafts.LoadDraft(ctx, draftID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	agentID := s.meta.ID
	s.mu.Unlock()
	if snap.SessionID != s.id && (agentID == "" || snap.AgentID != agentID) {
		return fmt.Errorf("%w: %s", snapshot.ErrSnapshotNotFound, draftID)
	}
	return s.ectx.Drafts.DeleteDraft(ctx, draftID)
}

// RestoreDraft replaces the graph and metadata with a draft. A draft of a
// different agent is rejected once this session tracks an agent ID.
func (s *Session) RestoreDraft(ctx context.Context, draftID string) error {
	if s.ectx.Drafts == nil {
		return dto.ErrNoDraftStore
	}
	snap, err := s.ectx.Drafts.LoadDraft(ctx, draftID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta.ID != "" && snap.Meta.ID != s.meta.ID {
		return fmt.Errorf("%w: draft belongs to %q", dto.ErrAgentIDChanged, snap.Meta.ID)
	}
	if err := s.g.Restore(snap.Graph); err != nil {
		return fmt.Errorf("restore draft %s: %w", draftID, err)
	}
	if s.meta.ID == "" {
		s.meta.ID = snap.Meta.ID
	}
	s.meta.Name = snap.Meta.Name
	s.meta.Description = snap.Meta.Description
	s.renderLocked()
	s.setStatusLocked(dto.StatusInfo, "draft %s restored", draftID)
	return nil
}
