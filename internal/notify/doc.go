// Package notify delivers task progress notifications to clients.
//
// The orchestrator talks to a Sink. Hub keeps per-project subscribers in
// memory for server-sent events, RedisSink publishes the same notifications
// on a Redis channel per project, and MultiSink fans out to several sinks.
package notify
