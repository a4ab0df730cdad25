package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts transcoding runs and their durations on a private
// registry so several recorders can coexist in one process.
type Recorder struct {
	registry *prometheus.Registry
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	queue    prometheus.Gauge
}

// NewRecorder registers the transcode collectors under namespace.
func NewRecorder(namespace string) *Recorder {
	if namespace == "" {
		namespace = "enzymeml"
	}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transcode_total",
				Help:      "Transcoding runs by direction and outcome.",
			},
			[]string{"direction", "success"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transcode_duration_seconds",
				Help:      "Transcoding run duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"direction"},
		),
		queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcode_queue_depth",
			Help:      "Export jobs waiting for a worker.",
		}),
	}
	r.registry.MustRegister(r.total, r.duration, r.queue)
	return r
}

// Observe records one run. A nil recorder ignores the call.
func (r *Recorder) Observe(_ context.Context, direction string, success bool, d time.Duration) {
	if r == nil {
		return
	}
	r.total.WithLabelValues(direction, strconv.FormatBool(success)).Inc()
	r.duration.WithLabelValues(direction).Observe(d.Seconds())
}

// QueueDepth sets the number of pending export jobs.
func (r *Recorder) QueueDepth(n int) {
	if r == nil {
		return
	}
	r.queue.Set(float64(n))
}

// Registry exposes the collectors, e.g. for promhttp or a push gateway.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }
