package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rewind"

// Registry holds all application metrics. Every method is safe to call on a
// nil *Registry, which records nothing.
type Registry struct {
	registry *prometheus.Registry

	// Replay metrics
	EntriesApplied     *prometheus.CounterVec
	ReplayFailures     *prometheus.CounterVec
	SegmentResets      prometheus.Counter
	UnknownThreadExits prometheus.Counter
	ReplayDuration     prometheus.Histogram

	// Memory differ metrics
	StagedBytes    prometheus.Gauge
	CommittedBytes prometheus.Counter
}

// NewRegistry creates a registry with the replay collectors and the Go
// runtime collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		EntriesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_applied_total",
			Help:      "Journal entries applied, by entry kind",
		}, []string{"kind"}),
		ReplayFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_failures_total",
			Help:      "Replay sessions that failed, by error code",
		}, []string{"code"}),
		SegmentResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_resets_total",
			Help:      "clear-ethereal entries applied",
		}),
		UnknownThreadExits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_thread_exits_total",
			Help:      "close-thread entries for threads absent from the roster",
		}),
		ReplayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replay_duration_seconds",
			Help:      "Wall time of completed replay runs",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		StagedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "staged_bytes",
			Help:      "Memory bytes staged in the differ and not yet committed",
		}),
		CommittedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "committed_bytes_total",
			Help:      "Memory bytes committed to live processes",
		}),
	}

	r.registry.MustRegister(
		r.EntriesApplied,
		r.ReplayFailures,
		r.SegmentResets,
		r.UnknownThreadExits,
		r.ReplayDuration,
		r.StagedBytes,
		r.CommittedBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Prometheus returns the underlying registry so storage layers can register
// their own collectors.
func (r *Registry) Prometheus() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// EntryApplied counts one applied entry of the given kind.
func (r *Registry) EntryApplied(kind string) {
	if r == nil {
		return
	}
	r.EntriesApplied.WithLabelValues(kind).Inc()
}

// Failure counts a failed replay.
func (r *Registry) Failure(code string) {
	if r == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	r.ReplayFailures.WithLabelValues(code).Inc()
}

// SegmentReset counts a clear-ethereal entry.
func (r *Registry) SegmentReset() {
	if r == nil {
		return
	}
	r.SegmentResets.Inc()
}

// UnknownThreadExit counts a close-thread entry for an unknown thread.
func (r *Registry) UnknownThreadExit() {
	if r == nil {
		return
	}
	r.UnknownThreadExits.Inc()
}

// SetStaged records the differ's current staged byte count.
func (r *Registry) SetStaged(n int) {
	if r == nil {
		return
	}
	r.StagedBytes.Set(float64(n))
}

// Committed adds to the committed byte counter.
func (r *Registry) Committed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.CommittedBytes.Add(float64(n))
}

// ObserveDuration records a completed replay run.
func (r *Registry) ObserveDuration(seconds float64) {
	if r == nil {
		return
	}
	r.ReplayDuration.Observe(seconds)
}
