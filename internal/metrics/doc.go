// Package metrics defines observability hooks for artifact preparation.
// The default NoopRecorder makes instrumentation optional; the Prometheus
// recorder is wired in when a metrics listen address is configured.
package metrics
