// Package agentbuilder wires the agent builder from configuration: the
// remote service clients, the node catalog, the draft store, the event
// publisher and the session manager. It re-exports the types a host needs so
// it never imports internal packages directly.
package agentbuilder
