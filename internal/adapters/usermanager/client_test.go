package usermanager

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/im-knots/ea-monorepo/internal/adapters/rest"
)

func TestClient_GetUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/user-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"user-1","name":"Ada","jobs":[
			{"job_name":"job-1","job_type":"Agent","status":"executing","last_active":"2026-01-02T03:04:05Z",
			 "nodes":[{"alias":"a","status":"Completed","output":"{\"a.input\":\"hi\"}"}]}
		]}`))
	}))
	defer srv.Close()

	rc, err := rest.NewClient("user_manager", srv.URL+"/api/v1")
	require.NoError(t, err)

	user, err := New(rc).GetUser(context.Background(), "user-1")
	require.NoError(t, err)

	job, ok := user.FindJob("job-1")
	require.True(t, ok)
	assert.Equal(t, "executing", job.Status)
	assert.Equal(t, 2026, job.LastActive.Year())
	require.Len(t, job.Nodes, 1)
	assert.Equal(t, "a", job.Nodes[0].Alias)
}
