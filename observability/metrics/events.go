package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"flashreserve/core/events"
)

// EventMetrics counts committed events. It is an events.Emitter so it can sit
// in the same fan-out as the journal and the websocket broadcaster.
type EventMetrics struct {
	emitted *prometheus.CounterVec
	supply  *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *EventMetrics
)

// Events returns the lazily registered event collectors.
func Events() *EventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &EventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "flashreserve",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Committed events segmented by type.",
			}, []string{"type"}),
			supply: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "flashreserve",
				Subsystem: "events",
				Name:      "supply_changes_total",
				Help:      "Token supply changes segmented by token and reason.",
			}, []string{"token", "reason"}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.supply)
	})
	return eventRegistry
}

// Emit implements events.Emitter.
func (m *EventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	typ := evt.EventType()
	if typ == "" {
		typ = "unknown"
	}
	m.emitted.WithLabelValues(typ).Inc()
	if raw := events.Raw(evt); raw != nil && typ == events.TypeTokenSupply {
		token := strings.ToUpper(strings.TrimSpace(raw.Attr("token")))
		if token == "" {
			token = "UNKNOWN"
		}
		m.supply.WithLabelValues(token, raw.Attr("reason")).Inc()
	}
}
