package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	prepareDuration  prom.Histogram
	stageDuration    *prom.HistogramVec
	prepareOutcome   *prom.CounterVec
	cacheResolutions *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.prepareDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "wheelhouse",
			Name:      "prepare_duration_seconds",
			Help:      "Total artifact preparation duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "wheelhouse",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual preparation stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.prepareOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "wheelhouse",
			Name:      "prepare_outcomes_total",
			Help:      "Preparation outcomes by final status",
		}, []string{"outcome"})
		pr.cacheResolutions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "wheelhouse",
			Name:      "cache_resolutions_total",
			Help:      "Cache destination resolutions by freshness",
		}, []string{"result"})
		reg.MustRegister(pr.prepareDuration, pr.stageDuration, pr.prepareOutcome, pr.cacheResolutions)
	})
	return pr
}

func (p *PrometheusRecorder) ObservePrepareDuration(d time.Duration) {
	if p == nil || p.prepareDuration == nil {
		return
	}
	p.prepareDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPrepareOutcome(outcome ResultLabel) {
	if p == nil || p.prepareOutcome == nil {
		return
	}
	p.prepareOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncCacheResolution(fresh bool) {
	if p == nil || p.cacheResolutions == nil {
		return
	}
	res := "reused"
	if fresh {
		res = "fresh"
	}
	p.cacheResolutions.WithLabelValues(res).Inc()
}
