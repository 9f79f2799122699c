package metrics

import (
	"expvar"
)

// Remote calls keyed by service ("agent_manager", "job_api",
// "user_manager"); events keyed by event type.
var (
	remoteCalls    = expvar.NewMap("agentbuilder_remote_calls_total")
	remoteFailures = expvar.NewMap("agentbuilder_remote_failures_total")
	eventsTotal    = expvar.NewMap("agentbuilder_events_published_total")
)

// Session and poller metrics.
var (
	sessionsActive     = new(expvar.Int)
	pollersActive      = new(expvar.Int)
	outputParseErrors  = new(expvar.Int)
	staleResults       = new(expvar.Int)
	jsonEditsRejected  = new(expvar.Int)
	nodeStatusUpdates  = new(expvar.Int)
	jobsCompletedTotal = new(expvar.Int)
)

func init() {
	expvar.Publish("agentbuilder_sessions_active", sessionsActive)
	expvar.Publish("agentbuilder_pollers_active", pollersActive)
	expvar.Publish("agentbuilder_output_parse_errors_total", outputParseErrors)
	expvar.Publish("agentbuilder_stale_poll_results_total", staleResults)
	expvar.Publish("agentbuilder_json_edits_rejected_total", jsonEditsRejected)
	expvar.Publish("agentbuilder_node_status_updates_total", nodeStatusUpdates)
	expvar.Publish("agentbuilder_jobs_completed_total", jobsCompletedTotal)
}

// Remote call helpers
func RemoteCall(op string)       { remoteCalls.Add(op, 1) }
func RemoteFailure(op string)    { remoteFailures.Add(op, 1) }
func EventPublished(kind string) { eventsTotal.Add(kind, 1) }

// Session/poller helpers
func AddSessions(n int64)        { sessionsActive.Add(n) }
func AddPollers(n int64)         { pollersActive.Add(n) }
func IncOutputParseErrors()      { outputParseErrors.Add(1) }
func IncStaleResults()           { staleResults.Add(1) }
func IncJSONEditsRejected()      { jsonEditsRejected.Add(1) }
func AddNodeStatusUpdates(n int) { nodeStatusUpdates.Add(int64(n)) }
func IncJobsCompleted()          { jobsCompletedTotal.Add(1) }

// Snapshot returns current values for tests and diagnostics.
func Snapshot() map[string]int64 {
	out := map[string]int64{
		"sessions_active":     sessionsActive.Value(),
		"pollers_active":      pollersActive.Value(),
		"output_parse_errors": outputParseErrors.Value(),
		"stale_results":       staleResults.Value(),
		"json_edits_rejected": jsonEditsRejected.Value(),
		"node_status_updates": nodeStatusUpdates.Value(),
		"jobs_completed":      jobsCompletedTotal.Value(),
	}
	remoteCalls.Do(func(kv expvar.KeyValue) {
		if v, ok := kv.Value.(*expvar.Int); ok {
			out["remote_calls."+kv.Key] = v.Value()
		}
	})
	remoteFailures.Do(func(kv expvar.KeyValue) {
		if v, ok := kv.Value.(*expvar.Int); ok {
			out["remote_failures."+kv.Key] = v.Value()
		}
	})
	return out
}
