package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/im-knots/ea-monorepo/internal/core/agent"
	"github.com/im-knots/ea-monorepo/internal/core/graph"
	"github.com/im-knots/ea-monorepo/internal/core/snapshot"
)

// defaultDraftListLimit caps ListDrafts when the caller passes no limit.
const defaultDraftListLimit = 100

// DraftService stores and restores editor drafts.
// PRINCIPLES:
// - SRP: Manages draft snapshot operations for editing sessions
// - DIP: Depends on snapshot.Saver abstraction
type DraftService struct {
	saver snapshot.Saver
	now   func() time.Time
}

// NewDraftService creates a new draft service
func NewDraftService(saver snapshot.Saver) *DraftService {
	return &DraftService{
		saver: saver,
		now:   time.Now,
	}
}

// CreateDraft snapshots a session's document metadata and graph.
func (s *DraftService) CreateDraft(ctx context.Context, sessionID string, meta agent.Meta, state graph.State, label string) (*snapshot.Snapshot, error) {
	snap := &snapshot.Snapshot{
		ID:        s.generateDraftID(),
		SessionID: sessionID,
		AgentID:   meta.ID,
		Meta:      meta,
		Graph:     state,
		Label:     label,
		Timestamp: s.now().UTC(),
		Version:   snapshot.CurrentVersion,
	}

	if err := s.saver.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return snap, nil
}

// LoadDraft loads a draft by ID
func (s *DraftService) LoadDraft(ctx context.Context, draftID string) (*snapshot.Snapshot, error) {
	snap, err := s.saver.Load(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	return snap, nil
}

// ListDrafts returns the drafts matching filter, newest first. A zero limit
// means defaultDraftListLimit.
func (s *DraftService) ListDrafts(ctx context.Context, filter snapshot.Filter) ([]*snapshot.Snapshot, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultDraftListLimit
	}
	snaps, err := s.saver.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	return snaps, nil
}

// DeleteDraft removes a draft
func (s *DraftService) DeleteDraft(ctx context.Context, draftID string) error {
	if err := s.saver.Delete(ctx, draftID); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

func (s *DraftService) generateDraftID() string {
	return "draft-" + uuid.NewString()
}
