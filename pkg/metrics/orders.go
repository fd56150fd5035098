package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics counts order lifecycle outcomes.
type OrderMetrics struct {
	created        prometheus.Counter
	transitions    *prometheus.CounterVec
	lockRejections *prometheus.CounterVec
	writeConflicts prometheus.Counter
}

// NewOrderMetrics registers the order metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders persisted by checkout.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Accepted order and payment status transitions.",
	}, []string{"field", "to", "forced"})
	lockRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_lock_rejections_total",
		Help: "Mutations rejected because the edit window elapsed.",
	}, []string{"field"})
	writeConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_write_conflicts_total",
		Help: "Optimistic write attempts that lost a version race.",
	})
	reg.MustRegister(created, transitions, lockRejections, writeConflicts)
	return &OrderMetrics{
		created:        created,
		transitions:    transitions,
		lockRejections: lockRejections,
		writeConflicts: writeConflicts,
	}
}

func (m *OrderMetrics) IncCreated() {
	if m == nil || m.created == nil {
		return
	}
	m.created.Inc()
}

func (m *OrderMetrics) IncTransition(field, to string, forced bool) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(field), normalizeLabel(to), strconv.FormatBool(forced)).Inc()
}

func (m *OrderMetrics) IncLockRejection(field string) {
	if m == nil || m.lockRejections == nil {
		return
	}
	m.lockRejections.WithLabelValues(normalizeLabel(field)).Inc()
}

func (m *OrderMetrics) IncWriteConflict() {
	if m == nil || m.writeConflicts == nil {
		return
	}
	m.writeConflicts.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
