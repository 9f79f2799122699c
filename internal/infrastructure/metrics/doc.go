// Package metrics exposes expvar-published counters for editing sessions,
// the status poller and remote calls. The server renders them at /metrics
// in Prometheus text format and at /debug/vars as JSON.
package metrics
