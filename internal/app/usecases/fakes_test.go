package usecases

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/app/services"
	"github.com/im-knots/ea-monorepo/internal/core/agent"
	"github.com/im-knots/ea-monorepo/internal/core/catalog"
	"github.com/im-knots/ea-monorepo/pkg/logger"
)

func credential(ctx context.Context) string {
	token, _ := dto.CredentialFrom(ctx)
	return token
}

type fakeAgents struct {
	mu      sync.Mutex
	stored  map[string]agent.Definition
	creates int
	updates int
	tokens  []string
	err     error
}

func newFakeAgents() *fakeAgents {
	return &fakeAgents{stored: map[string]agent.Definition{}}
}

func (f *fakeAgents) CreateAgent(ctx context.Context, def agent.Definition) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.creates++
	f.tokens = append(f.tokens, credential(ctx))
	id := fmt.Sprintf("agent-%d", f.creates)
	def.ID = id
	f.stored[id] = def
	return id, nil
}

func (f *fakeAgents) UpdateAgent(ctx context.Context, id string, def agent.Definition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.updates++
	f.tokens = append(f.tokens, credential(ctx))
	f.stored[id] = def
	return nil
}

func (f *fakeAgents) GetAgent(ctx context.Context, id string) (agent.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.stored[id]
	if !ok {
		return agent.Definition{}, fmt.Errorf("agent %s not found", id)
	}
	return def, nil
}

type fakeJobs struct {
	mu     sync.Mutex
	calls  []dto.JobRequest
	tokens []string
	err    error
}

func (f *fakeJobs) SubmitJob(ctx context.Context, agentID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, dto.JobRequest{AgentID: agentID, UserID: userID})
	f.tokens = append(f.tokens, credential(ctx))
	return fmt.Sprintf("job-%d", len(f.calls)), nil
}

// fakeStatus serves whatever user record was last set.
type fakeStatus struct {
	mu    sync.Mutex
	user  *dto.UserRecord
	token string
}

func (f *fakeStatus) set(jobs ...dto.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = &dto.UserRecord{ID: "user-1", Jobs: jobs}
}

func (f *fakeStatus) lastToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeStatus) GetUser(ctx context.Context, userID string) (*dto.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = credential(ctx)
	if f.user == nil {
		return &dto.UserRecord{ID: userID}, nil
	}
	return f.user, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev dto.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Types() []dto.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]dto.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

var testEntries = []catalog.Entry{
	{
		ID:   "input.text",
		Type: "input.internal.text",
		Parameters: []catalog.Parameter{
			{Key: "input", Type: "string", Default: ""},
		},
	},
	{
		ID:   "worker.ollama",
		Type: "worker.inference.llm",
		Parameters: []catalog.Parameter{
			{Key: "model", Type: "string", Default: "llama3", Enum: []any{"llama3", "mistral"}},
			{Key: "stream", Type: "bool", Default: false},
		},
	},
	{
		ID:   "destination.text",
		Type: "destination.internal.text",
	},
}

type harness struct {
	ectx   EditorContext
	agents *fakeAgents
	jobs   *fakeJobs
	status *fakeStatus
	events *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat, err := catalog.New(testEntries)
	require.NoError(t, err)

	h := &harness{
		agents: newFakeAgents(),
		jobs:   &fakeJobs{},
		status: &fakeStatus{},
		events: &recordingPublisher{},
	}
	h.ectx = EditorContext{
		Catalog: cat,
		Agents:  h.agents,
		Jobs:    h.jobs,
		Status:  h.status,
		Events:  h.events,
		Poller:  services.PollerConfig{Interval: 5 * time.Millisecond, FetchTimeout: time.Second},
		Logger:  logger.Discard(),
	}
	return h
}

func (h *harness) session(t *testing.T) *Session {
	t.Helper()
	s := NewSession(h.ectx, "user-1")
	t.Cleanup(s.Close)
	return s
}
