package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/im-knots/ea-monorepo/internal/adapters/repository/agentrepo"
	"github.com/im-knots/ea-monorepo/internal/adapters/repository/memory"
	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/app/services"
	"github.com/im-knots/ea-monorepo/internal/app/usecases"
	"github.com/im-knots/ea-monorepo/internal/core/catalog"
	"github.com/im-knots/ea-monorepo/pkg/logger"
)

var entries = []catalog.Entry{
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
			{Key: "stop", Type: "array", Default: []any{"a", "b"}},
		},
	},
}

type stubJobs struct {
	mu     sync.Mutex
	count  int
	tokens []string
}

func (s *stubJobs) SubmitJob(ctx context.Context, agentID, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	token, _ := dto.CredentialFrom(ctx)
	s.tokens = append(s.tokens, token)
	return fmt.Sprintf("job-%d", s.count), nil
}

type stubStatus struct{}

func (stubStatus) GetUser(ctx context.Context, userID string) (*dto.UserRecord, error) {
	return &dto.UserRecord{ID: userID}, nil
}

func newTestApp(t *testing.T, opts Options) (*fiber.App, *usecases.SessionManager) {
	t.Helper()
	cat, err := catalog.New(entries)
	require.NoError(t, err)

	saver := memory.NewSnapshotSaver(memory.Config{})
	t.Cleanup(func() { _ = saver.Close() })

	m := usecases.NewSessionManager(usecases.EditorContext{
		Catalog: cat,
		Agents:  agentrepo.NewInMemoryAgentRepository(entries...),
		Jobs:    &stubJobs{},
		Status:  stubStatus{},
		Drafts:  services.NewDraftService(saver),
		Poller:  services.PollerConfig{Interval: time.Hour, FetchTimeout: time.Second},
		Logger:  logger.Discard(),
	})
	t.Cleanup(m.CloseAll)

	opts.Logger = logger.Discard()
	return NewApp(m, opts), m
}

func call(t *testing.T, app *fiber.App, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func createSession(t *testing.T, app *fiber.App) dto.SessionView {
	t.Helper()
	var view dto.SessionView
	status := call(t, app, http.MethodPost, "/api/v1/sessions", map[string]any{"creator_id": "user-1"}, &view)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, view.ID)
	return view
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := newTestApp(t, Options{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "agentbuilder_sessions_active")
}

func TestCatalog(t *testing.T) {
	app, _ := newTestApp(t, Options{})

	var all []catalog.Entry
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/catalog", nil, &all))
	assert.Len(t, all, 2)

	var workers []catalog.Entry
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/catalog?filter=worker", nil, &workers))
	require.Len(t, workers, 1)
	assert.Equal(t, "worker.ollama", workers[0].ID)
}

func TestSession_Lifecycle(t *testing.T) {
	app, m := newTestApp(t, Options{})

	t.Run("creator required", func(t *testing.T) {
		var body map[string]any
		status := call(t, app, http.MethodPost, "/api/v1/sessions", map[string]any{}, &body)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "validation failed", body["error"])
	})

	view := createSession(t, app)
	assert.Equal(t, "user-1", view.Creator)
	assert.Contains(t, view.Definition, `"name": "My Agent"`)
	assert.Equal(t, dto.PollIdle, view.PollState)
	assert.Equal(t, 1, m.Len())

	var got dto.SessionView
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/sessions/"+view.ID, nil, &got))
	assert.Equal(t, view.ID, got.ID)

	assert.Equal(t, http.StatusNoContent, call(t, app, http.MethodDelete, "/api/v1/sessions/"+view.ID, nil, nil))
	assert.Equal(t, 0, m.Len())

	var missing map[string]any
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodGet, "/api/v1/sessions/"+view.ID, nil, &missing))
	assert.Contains(t, missing["error"], "session not found")
}

func TestSession_EditGraph(t *testing.T) {
	app, _ := newTestApp(t, Options{})
	base := "/api/v1/sessions/" + createSession(t, app).ID

	var in, llm dto.NodeView
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, base+"/nodes", map[string]any{"catalog_id": "input.text"}, &in))
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, base+"/nodes", map[string]any{"catalog_id": "worker.ollama"}, &llm))

	t.Run("unknown catalog entry", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodPost, base+"/nodes", map[string]any{"catalog_id": "nope"}, nil))
	})

	var view dto.SessionView
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPut, base+"/nodes/"+in.ID+"/alias", map[string]any{"alias": "prompt"}, &view))
	assert.Contains(t, view.Definition, `"alias": "prompt"`)

	t.Run("alias with trailing space rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, call(t, app, http.MethodPut, base+"/nodes/"+llm.ID+"/alias", map[string]any{"alias": "llm "}, nil))
	})

	t.Run("duplicate alias conflicts", func(t *testing.T) {
		assert.Equal(t, http.StatusConflict, call(t, app, http.MethodPut, base+"/nodes/"+llm.ID+"/alias", map[string]any{"alias": "prompt"}, nil))
	})

	require.Equal(t, http.StatusOK, call(t, app, http.MethodPut, base+"/nodes/"+llm.ID+"/parameters/model", map[string]any{"value": "mistral"}, &view))
	assert.Contains(t, view.Definition, `"model": "mistral"`)

	t.Run("invalid choice rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, call(t, app, http.MethodPut, base+"/nodes/"+llm.ID+"/parameters/model", map[string]any{"value": "gpt"}, nil))
	})

	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, base+"/nodes/"+llm.ID+"/parameters/stream/toggle", nil, &view))
	assert.Contains(t, view.Definition, `"stream": true`)

	require.Equal(t, http.StatusOK, call(t, app, http.MethodPut, base+"/nodes/"+llm.ID+"/parameters/stop/items/1", map[string]any{"value": "z"}, &view))
	assert.Contains(t, view.Definition, `"z"`)
	assert.Equal(t, http.StatusBadRequest, call(t, app, http.MethodPut, base+"/nodes/"+llm.ID+"/parameters/stop/items/x", map[string]any{"value": "z"}, nil))

	var edge dto.EdgeView
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, base+"/edges", map[string]any{"source": in.ID, "target": llm.ID}, &edge))
	assert.Equal(t, in.ID, edge.Source)
	assert.Equal(t, http.StatusBadRequest, call(t, app, http.MethodPost, base+"/edges", map[string]any{"source": "ghost", "target": llm.ID}, nil))

	var fields []map[string]any
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, base+"/nodes/"+llm.ID+"/fields", nil, &fields))
	require.Len(t, fields, 3)
	assert.Equal(t, "model", fields[0]["key"])

	assert.Equal(t, http.StatusNoContent, call(t, app, http.MethodPut, base+"/nodes/"+llm.ID+"/position", map[string]any{"x": 1, "y": 2}, nil))
	var node dto.NodeView
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, base+"/nodes/"+llm.ID, nil, &node))
	assert.Equal(t, 1.0, node.X)
	assert.Equal(t, 2.0, node.Y)

	require.Equal(t, http.StatusOK, call(t, app, http.MethodDelete, base+"/nodes/"+in.ID, nil, &view))
	assert.Empty(t, view.Edges)
	assert.Len(t, view.Nodes, 1)
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodDelete, base+"/edges/"+edge.ID, nil, nil))
}

func TestSession_MetaAndJSON(t *testing.T) {
	app, _ := newTestApp(t, Options{})
	base := "/api/v1/sessions/" + createSession(t, app).ID

	var view dto.SessionView
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPut, base+"/meta", map[string]any{"name": "Summarizer"}, &view))
	assert.Contains(t, view.Definition, `"name": "Summarizer"`)
	assert.Contains(t, view.Definition, `"description": "An awesome AI agent"`)

	text := `{"name": "Edited", "creator": "user-1", "description": "d", "nodes": [], "edges": []}`
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPut, base+"/json", map[string]any{"text": text}, &view))
	assert.Equal(t, text, view.Definition)

	var body map[string]any
	assert.Equal(t, http.StatusBadRequest, call(t, app, http.MethodPut, base+"/json", map[string]any{"text": "{"}, &body))
	assert.Contains(t, body["error"], "invalid agent definition JSON")

	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, base, nil, &view))
	assert.Equal(t, text, view.Definition, "rejected edit leaves text unchanged")
	require.NotNil(t, view.Status)
	assert.Equal(t, dto.StatusError, view.Status.Level)
}

func TestSession_SaveRunStop(t *testing.T) {
	app, _ := newTestApp(t, Options{})
	base := "/api/v1/sessions/" + createSession(t, app).ID

	t.Run("run before save conflicts", func(t *testing.T) {
		assert.Equal(t, http.StatusConflict, call(t, app, http.MethodPost, base+"/run", nil, nil))
	})

	var in dto.NodeView
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, base+"/nodes", map[string]any{"catalog_id": "input.text"}, &in))

	var saved struct {
		AgentID string          `json:"agent_id"`
		Session dto.SessionView `json:"session"`
	}
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, base+"/save", nil, &saved))
	require.NotEmpty(t, saved.AgentID)
	assert.Equal(t, saved.AgentID, saved.Session.AgentID)
	assert.Contains(t, saved.Session.Definition, saved.AgentID)

	var launched struct {
		JobName string          `json:"job_name"`
		Session dto.SessionView `json:"session"`
	}
	require.Equal(t, http.StatusAccepted, call(t, app, http.MethodPost, base+"/run", nil, &launched))
	assert.Equal(t, "job-1", launched.JobName)
	assert.Equal(t, "job-1", launched.Session.RunningJob)
	assert.Equal(t, dto.PollPolling, launched.Session.PollState)

	var view dto.SessionView
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, base+"/stop", nil, &view))
	assert.Equal(t, dto.PollIdle, view.PollState)
	assert.Empty(t, view.RunningJob)
}

func TestSession_Drafts(t *testing.T) {
	app, _ := newTestApp(t, Options{})
	base := "/api/v1/sessions/" + createSession(t, app).ID

	var in dto.NodeView
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, base+"/nodes", map[string]any{"catalog_id": "input.text"}, &in))

	var created map[string]any
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, base+"/drafts", map[string]any{"label": "one node"}, &created))
	draftID, _ := created["id"].(string)
	require.NotEmpty(t, draftID)

	var view dto.SessionView
	require.Equal(t, http.StatusOK, call(t, app, http.MethodDelete, base+"/nodes/"+in.ID, nil, &view))
	assert.Empty(t, view.Nodes)

	var drafts []draftSummary
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, base+"/drafts", nil, &drafts))
	require.Len(t, drafts, 1)
	assert.Equal(t, "one node", drafts[0].Label)
	assert.Equal(t, 1, drafts[0].Nodes)

	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, base+"/drafts/"+draftID+"/restore", nil, &view))
	require.Len(t, view.Nodes, 1)
	assert.Equal(t, in.ID, view.Nodes[0].ID)

	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodPost, base+"/drafts/missing/restore", nil, nil))
	assert.Equal(t, http.StatusNoContent, call(t, app, http.MethodDelete, base+"/drafts/"+draftID, nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodPost, base+"/drafts/"+draftID+"/restore", nil, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, app, http.MethodGet, base+"/drafts?limit=-1", nil, nil))
}

func TestBearerAuth(t *testing.T) {
	app, m := newTestApp(t, Options{RequireAuth: true})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"creator_id":"user-1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"creator_id":"user-1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var view dto.SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))

	// the creating caller's token is kept for calls made without a request
	s, err := m.Get(view.ID)
	require.NoError(t, err)
	_, err = s.Save(context.Background())
	require.NoError(t, err)
	_, err = s.Start(context.Background())
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+view.ID+"/run", nil)
	req.Header.Set("Authorization", "Bearer xyz")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	jobs := m.Context().Jobs.(*stubJobs)
	jobs.mu.Lock()
	assert.Equal(t, []string{"abc", "xyz"}, jobs.tokens)
	jobs.mu.Unlock()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health stays open")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("wrap: %w", dto.ErrSessionNotFound)))
	assert.Equal(t, http.StatusConflict, statusFor(dto.ErrAgentIDChanged))
	assert.Equal(t, http.StatusNotImplemented, statusFor(dto.ErrNoDraftStore))
	assert.Equal(t, http.StatusBadGateway, statusFor(fmt.Errorf("%w: boom", dto.ErrRemote)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}
