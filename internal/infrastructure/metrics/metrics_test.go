package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := Snapshot()
	RemoteCall("user_manager")
	RemoteFailure("user_manager")
	IncOutputParseErrors()
	AddNodeStatusUpdates(3)
	after := Snapshot()

	assert.Equal(t, before["remote_calls.user_manager"]+1, after["remote_calls.user_manager"])
	assert.Equal(t, before["remote_failures.user_manager"]+1, after["remote_failures.user_manager"])
	assert.Equal(t, before["output_parse_errors"]+1, after["output_parse_errors"])
	assert.Equal(t, before["node_status_updates"]+3, after["node_status_updates"])
}

func TestWritePrometheus(t *testing.T) {
	RemoteCall("agent_manager")
	EventPublished(`odd"type`)

	var buf strings.Builder
	WritePrometheus(&buf)
	out := buf.String()

	assert.Contains(t, out, "# TYPE agentbuilder_remote_calls_total counter\n")
	assert.Contains(t, out, `agentbuilder_remote_calls_total{service="agent_manager"} `)
	assert.Contains(t, out, `agentbuilder_events_published_total{type="odd\"type"} 1`)
	assert.Contains(t, out, "# TYPE agentbuilder_sessions_active gauge\n")
	assert.NotContains(t, out, "memstats", "non-integer expvars are skipped")
}
