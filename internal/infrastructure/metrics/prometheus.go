package metrics

import (
	"expvar"
	"fmt"
	"io"
	"sort"
	"strings"
)

type promMeta struct {
	typ, help string
	isMap     bool
	label     string
}

var promMetas = map[string]promMeta{
	"agentbuilder_remote_calls_total":        {typ: "counter", help: "Remote service calls", isMap: true, label: "service"},
	"agentbuilder_remote_failures_total":     {typ: "counter", help: "Failed remote service calls", isMap: true, label: "service"},
	"agentbuilder_events_published_total":    {typ: "counter", help: "Session events published", isMap: true, label: "type"},
	"agentbuilder_sessions_active":           {typ: "gauge", help: "Open editing sessions"},
	"agentbuilder_pollers_active":            {typ: "gauge", help: "Running status poll loops"},
	"agentbuilder_output_parse_errors_total": {typ: "counter", help: "Node outputs that were not JSON objects"},
	"agentbuilder_stale_poll_results_total":  {typ: "counter", help: "Poll results discarded for untracked jobs"},
	"agentbuilder_json_edits_rejected_total": {typ: "counter", help: "Rejected definition text edits"},
	"agentbuilder_node_status_updates_total": {typ: "counter", help: "Node status updates applied"},
	"agentbuilder_jobs_completed_total":      {typ: "counter", help: "Jobs observed reaching completion"},
}

// ContentType is the Prometheus text exposition content type.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// WritePrometheus renders expvar-published metrics in Prometheus text
// format. Known metrics get HELP and TYPE lines; other integer vars are
// written as untyped gauges and everything else is skipped.
// nolint:gocognit // Straightforward formatter; long but simple
func WritePrometheus(w io.Writer) {
	varNames := make([]string, 0, 64)
	expvar.Do(func(kv expvar.KeyValue) {
		varNames = append(varNames, kv.Key)
	})
	sort.Strings(varNames)

	for _, name := range varNames {
		v := expvar.Get(name)
		m, known := promMetas[name]
		if !known {
			if iv, ok := v.(*expvar.Int); ok {
				_, _ = fmt.Fprintf(w, "# TYPE %s gauge\n", name)
				_, _ = fmt.Fprintf(w, "%s %s\n", name, iv.String())
			}
			continue
		}

		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, sanitizeHelp(m.help))
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, m.typ)
		if !m.isMap {
			_, _ = fmt.Fprintf(w, "%s %s\n", name, v.String())
			continue
		}
		mp, ok := v.(*expvar.Map)
		if !ok {
			continue
		}
		sub := make([]expvar.KeyValue, 0, 8)
		mp.Do(func(kv expvar.KeyValue) { sub = append(sub, kv) })
		sort.Slice(sub, func(i, j int) bool { return sub[i].Key < sub[j].Key })
		for _, kv := range sub {
			_, _ = fmt.Fprintf(w, "%s{%s=\"%s\"} %s\n", name, m.label, escapeLabel(kv.Key), kv.Value.String())
		}
	}
}

func sanitizeHelp(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeLabel escapes backslash, double quote and newline.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
