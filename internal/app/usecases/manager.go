package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/pkg/logger"
)

// SessionManager owns the open sessions of a host process.
type SessionManager struct {
	ectx   EditorContext
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a manager sharing ectx across sessions.
func NewSessionManager(ectx EditorContext) *SessionManager {
	if ectx.Logger == nil {
		ectx.Logger = logger.Named("sessions")
	}
	return &SessionManager{
		ectx:     ectx,
		logger:   ectx.Logger,
		sessions: make(map[string]*Session),
	}
}

// Context returns the shared editor context.
func (m *SessionManager) Context() EditorContext {
	return m.ectx
}

// Create opens a session for creator. When agentID is set the stored agent
// is loaded; a load failure discards the session. A credential on ctx is
// kept for the session's later remote calls.
func (m *SessionManager) Create(ctx context.Context, creator, agentID string) (*Session, error) {
	if creator == "" {
		return nil, dto.ErrMissingCreator
	}
	s := NewSession(m.ectx, creator)
	if token, ok := dto.CredentialFrom(ctx); ok {
		s.SetCredential(token)
	}
	if agentID != "" {
		if err := s.Open(ctx, agentID); err != nil {
			s.Close()
			return nil, err
		}
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("session opened", slog.String("session", s.ID()), slog.String("creator", creator))
	return s, nil
}

// Get returns an open session.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dto.ErrSessionNotFound, id)
	}
	return s, nil
}

// Close stops and forgets a session.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", dto.ErrSessionNotFound, id)
	}
	s.Close()
	m.logger.Info("session closed", slog.String("session", id))
	return nil
}

// CloseAll closes every session. Used on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
