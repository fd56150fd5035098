package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records relay outcomes per destination topic.
type OutboxMetrics struct {
	duration  *prometheus.HistogramVec
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	terminal  *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox publisher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_publish_duration_seconds",
		Help:    "Time spent handing one event to the sink.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Events relayed successfully.",
	}, []string{"topic"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Retryable publish failures.",
	}, []string{"topic"})
	terminal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_terminal_total",
		Help: "Events parked without further retries.",
	}, []string{"topic"})
	reg.MustRegister(duration, published, failed, terminal)
	return &OutboxMetrics{
		duration:  duration,
		published: published,
		failed:    failed,
		terminal:  terminal,
	}
}

func (o *OutboxMetrics) ObservePublish(topic string, d time.Duration) {
	if o == nil || o.duration == nil {
		return
	}
	o.duration.WithLabelValues(normalizeLabel(topic)).Observe(d.Seconds())
}

func (o *OutboxMetrics) IncPublished(topic string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(topic)).Inc()
}

func (o *OutboxMetrics) IncFailed(topic string) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(normalizeLabel(topic)).Inc()
}

func (o *OutboxMetrics) IncTerminal(topic string) {
	if o == nil || o.terminal == nil {
		return
	}
	o.terminal.WithLabelValues(normalizeLabel(topic)).Inc()
}
