package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/app/services"
	"github.com/im-knots/ea-monorepo/internal/core/agent"
	"github.com/im-knots/ea-monorepo/internal/core/graph"
	"github.com/im-knots/ea-monorepo/internal/core/parameter"
	"github.com/im-knots/ea-monorepo/internal/infrastructure/metrics"
	"github.com/im-knots/ea-monorepo/pkg/logger"
	"github.com/im-knots/ea-monorepo/pkg/validation"
)

const eventPublishTimeout = 5 * time.Second

// Session is one editor: a graph, its definition text, and the job it is
// tracking.
//
// All graph and text state is guarded by mu. Remote calls are made without
// holding it; their results are applied afterwards, last write wins.
// PRINCIPLES:
// - SRP: Owns the editing state, delegates I/O to EditorContext collaborators
// - The text is re-rendered after every graph mutation
type Session struct {
	id      string
	creator string
	ectx    EditorContext
	logger  *slog.Logger
	poller  *services.Poller

	// launchMu serializes job launches so the tracked job and the poller
	// always agree.
	launchMu sync.Mutex

	mu         sync.Mutex
	g          *graph.Graph
	params     *parameter.Store
	meta       agent.Meta
	text       string
	runningJob string
	status     *dto.StatusMessage
	closed     bool
	credential string
}

// NewSession creates an empty editor for creator.
func NewSession(ectx EditorContext, creator string) *Session {
	log := ectx.Logger
	if log == nil {
		log = logger.Named("session")
	}
	id := uuid.NewString()
	s := &Session{
		id:      id,
		creator: creator,
		ectx:    ectx,
		logger:  log.With(slog.String("session", id)),
		g:       graph.New(ectx.GraphOptions...),
		meta: agent.Meta{
			Name:        agent.DefaultName,
			Description: agent.DefaultDescription,
			Creator:     creator,
		},
	}
	s.params = parameter.NewStore(s.g)
	s.poller = services.NewPoller(callerFetcher{s}, creator, s, ectx.Poller, s.logger)
	s.renderLocked()
	metrics.AddSessions(1)
	return s
}

func (s *Session) ID() string      { return s.id }
func (s *Session) Creator() string { return s.creator }

// SetCredential stores the caller's bearer token. Remote calls made for the
// session, including status polls, carry it unless the request context
// already has one.
func (s *Session) SetCredential(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = token
}

func (s *Session) withCredential(ctx context.Context) context.Context {
	if _, ok := dto.CredentialFrom(ctx); ok {
		return ctx
	}
	s.mu.Lock()
	token := s.credential
	s.mu.Unlock()
	return dto.WithCredential(ctx, token)
}

// callerFetcher polls job status with the session's credential.
type callerFetcher struct{ s *Session }

func (f callerFetcher) GetUser(ctx context.Context, userID string) (*dto.UserRecord, error) {
	return f.s.ectx.Status.GetUser(f.s.withCredential(ctx), userID)
}

// renderLocked regenerates the text from the graph. The caller holds mu.
func (s *Session) renderLocked() {
	text, err := agent.Render(s.g, s.meta)
	if err != nil {
		s.logger.Error("render definition", slog.Any("error", err))
		return
	}
	s.text = text
}

// mutate runs fn under the lock and re-renders on success.
func (s *Session) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	s.renderLocked()
	return nil
}

func (s *Session) setStatusLocked(level dto.StatusLevel, format string, args ...any) {
	s.status = &dto.StatusMessage{Level: level, Text: fmt.Sprintf(format, args...), At: time.Now().UTC()}
}

func (s *Session) setStatus(level dto.StatusLevel, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatusLocked(level, format, args...)
}

// AddNode instantiates a catalog entry at a random position.
func (s *Session) AddNode(catalogID string) (dto.NodeView, error) {
	if s.ectx.Catalog == nil {
		return dto.NodeView{}, dto.ErrNoCatalog
	}
	entry, err := s.ectx.Catalog.Lookup(catalogID)
	if err != nil {
		return dto.NodeView{}, err
	}

	var view dto.NodeView
	err = s.mutate(func() error {
		view = nodeView(s.g.AddNode(entry))
		return nil
	})
	return view, err
}

// UpdateAlias renames a node. An empty alias falls back to the node ID.
// Aliases the agent manager would reject are refused here.
func (s *Session) UpdateAlias(nodeID, alias string) error {
	if alias != "" {
		if err := validation.Var("alias", alias, "alias"); err != nil {
			return err
		}
	}
	return s.mutate(func() error { return s.g.UpdateNodeAlias(nodeID, alias) })
}

// SetParameter writes a typed parameter value.
func (s *Session) SetParameter(nodeID, key string, value any) error {
	return s.mutate(func() error { return s.params.Set(nodeID, key, value) })
}

// ToggleParameter flips a boolean parameter.
func (s *Session) ToggleParameter(nodeID, key string) error {
	return s.mutate(func() error { return s.params.Toggle(nodeID, key) })
}

// SetListItem writes one scalar entry of a list parameter.
func (s *Session) SetListItem(nodeID, key string, index int, value string) error {
	return s.mutate(func() error { return s.params.SetItem(nodeID, key, index, value) })
}

// SetListField writes one field of an object entry of a list parameter.
func (s *Session) SetListField(nodeID, key string, index int, field, value string) error {
	return s.mutate(func() error { return s.params.SetField(nodeID, key, index, field, value) })
}

// MoveNode changes layout only; the text does not change.
func (s *Session) MoveNode(nodeID string, pos graph.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.MoveNode(nodeID, pos)
}

func (s *Session) Connect(sourceID, targetID string) (dto.EdgeView, error) {
	var view dto.EdgeView
	err := s.mutate(func() error {
		e, err := s.g.Connect(sourceID, targetID)
		if err != nil {
			return err
		}
		view = edgeView(e)
		return nil
	})
	return view, err
}

func (s *Session) RemoveNode(nodeID string) error {
	return s.mutate(func() error { return s.g.RemoveNode(nodeID) })
}

func (s *Session) RemoveEdge(edgeID string) error {
	return s.mutate(func() error { return s.g.RemoveEdge(edgeID) })
}

// SetName changes the agent name.
func (s *Session) SetName(name string) {
	_ = s.mutate(func() error {
		s.meta.Name = name
		return nil
	})
}

// SetDescription changes the agent description.
func (s *Session) SetDescription(description string) {
	_ = s.mutate(func() error {
		s.meta.Description = description
		return nil
	})
}

// EditJSON replaces the text with a user edit. Invalid JSON is rejected and
// nothing changes. On success the text is kept verbatim and its name and
// description are adopted; node and edge edits in the text are not applied
// to the graph and are lost on the next graph mutation.
func (s *Session) EditJSON(text string) error {
	def, err := agent.ParseDefinition(text)
	if err != nil {
		metrics.IncJSONEditsRejected()
		s.setStatus(dto.StatusError, "invalid JSON: %v", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if def.ID != s.meta.ID {
		metrics.IncJSONEditsRejected()
		s.setStatusLocked(dto.StatusError, "agent id cannot be changed")
		return fmt.Errorf("%w: %q", dto.ErrAgentIDChanged, def.ID)
	}
	s.meta.Name = def.Name
	s.meta.Description = def.Description
	s.text = text
	return nil
}

// Text returns the current definition text.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Meta returns the document metadata.
func (s *Session) Meta() agent.Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// RunningJob returns the tracked job name, "" when none.
func (s *Session) RunningJob() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningJob
}

// PollState reports the status poller's state.
func (s *Session) PollState() dto.PollState {
	return s.poller.State()
}

// Fields describes the parameter widgets of one node.
func (s *Session) Fields(nodeID string) ([]parameter.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.g.Node(nodeID)
	if err != nil {
		return nil, err
	}
	return parameter.Fields(n), nil
}

// Node returns a view of one node.
func (s *Session) Node(nodeID string) (dto.NodeView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.g.Node(nodeID)
	if err != nil {
		return dto.NodeView{}, err
	}
	return nodeView(n), nil
}

// View snapshots everything a client renders.
func (s *Session) View() dto.SessionView {
	state := s.poller.State()

	s.mu.Lock()
	defer s.mu.Unlock()
	v := dto.SessionView{
		ID:         s.id,
		AgentID:    s.meta.ID,
		Creator:    s.creator,
		Definition: s.text,
		Nodes:      make([]dto.NodeView, 0, len(s.g.Nodes())),
		Edges:      make([]dto.EdgeView, 0, len(s.g.Edges())),
		RunningJob: s.runningJob,
		PollState:  state,
	}
	for _, n := range s.g.Nodes() {
		v.Nodes = append(v.Nodes, nodeView(n))
	}
	for _, e := range s.g.Edges() {
		v.Edges = append(v.Edges, edgeView(e))
	}
	if s.status != nil {
		msg := *s.status
		v.Status = &msg
	}
	return v
}

// Close stops polling. The session must not be used afterwards.
func (s *Session) Close() {
	s.poller.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.runningJob = ""
	metrics.AddSessions(-1)
}

func (s *Session) publish(ev dto.Event) {
	if s.ectx.Events == nil {
		return
	}
	ev.SessionID = s.id
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
	defer cancel()
	if err := s.ectx.Events.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish event", slog.String("type", string(ev.Type)), slog.Any("error", err))
	}
}

func nodeView(n *graph.Node) dto.NodeView {
	out, _ := graph.CloneValue(n.ExecutionOutput).(map[string]any)
	text, _ := parameter.OutputText(n)
	return dto.NodeView{
		ID:              n.ID,
		Alias:           n.EffectiveAlias(),
		Type:            n.Type,
		X:               n.Position.X,
		Y:               n.Position.Y,
		ExecutionStatus: string(n.ExecutionStatus),
		ExecutionOutput: out,
		OutputText:      text,
	}
}

func edgeView(e *graph.Edge) dto.EdgeView {
	return dto.EdgeView{ID: e.ID, Source: e.Source, Target: e.Target}
}
