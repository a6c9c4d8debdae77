package metrics

import "time"

// ResultLabel enumerates preparation outcome categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultSkipped  ResultLabel = "skipped"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for preparation and stage metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe for nil receivers when using the NoopRecorder (allowing
// optional injection).
type Recorder interface {
	ObservePrepareDuration(d time.Duration)
	ObserveStageDuration(stage string, d time.Duration)
	IncPrepareOutcome(outcome ResultLabel)
	IncCacheResolution(fresh bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePrepareDuration(time.Duration)      {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncPrepareOutcome(ResultLabel)             {}
func (NoopRecorder) IncCacheResolution(bool)                   {}
