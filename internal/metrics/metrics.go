// Package metrics exports service call and event loop outcomes to
// Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/svcstore/internal/events"
	"github.com/roach88/svcstore/internal/transport"
)

const namespace = "svcstore"

// Recorder implements service.MetricsRecorder on Prometheus collectors.
type Recorder struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	dropped  *prometheus.CounterVec
	gatherer prometheus.Gatherer
}

// NewRecorder registers the collectors with reg. A nil reg uses a fresh
// registry, which Handler then serves.
func NewRecorder(reg *prometheus.Registry) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Recorder{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_calls_total",
			Help:      "Remote service calls by operation and outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "service_call_duration_seconds",
			Help:      "Remote service call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Real-time events the event loop did not apply.",
		}, []string{"service", "reason"}),
		gatherer: reg,
	}
	for _, c := range []prometheus.Collector{r.calls, r.duration, r.dropped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records one service operation outcome.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.calls.WithLabelValues(operation, status).Inc()
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// EventDropped counts an event the loop could not apply. It has the
// signature of events.WithErrorHandler.
func (r *Recorder) EventDropped(ev transport.Event, err error) {
	reason := "error"
	var de *events.DispatchError
	if errors.As(err, &de) {
		reason = string(de.Code)
	}
	r.dropped.WithLabelValues(ev.Service, reason).Inc()
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
