// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry wiring, health probes and graceful shutdown for the idhub
// service.
//
// Logging is slog-based JSON with context plumbing for the request id and
// acting user. Metrics cover the provisioning and reconciliation flows plus
// gateway and database health. OTel tracing is optional and config-gated.
package observability
