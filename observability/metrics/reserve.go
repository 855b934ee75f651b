package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReserveMetrics tracks reserve engine activity.
type ReserveMetrics struct {
	operations    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	rejections    *prometheus.CounterVec
	loanPrincipal prometheus.Counter
	loanFees      *prometheus.CounterVec
	reserve       prometheus.Gauge
	supply        prometheus.Gauge
}

var (
	reserveOnce     sync.Once
	reserveRegistry *ReserveMetrics
)

// Reserve returns the lazily registered reserve collectors.
func Reserve() *ReserveMetrics {
	reserveOnce.Do(func() {
		reserveRegistry = &ReserveMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "flashreserve",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Reserve operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "flashreserve",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution of reserve operations including borrower calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "flashreserve",
				Subsystem: "engine",
				Name:      "rejections_total",
				Help:      "Rejected operations segmented by error code.",
			}, []string{"operation", "code"}),
			loanPrincipal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "flashreserve",
				Subsystem: "flash_loan",
				Name:      "principal_total",
				Help:      "Cumulative principal of settled flash loans.",
			}),
			loanFees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "flashreserve",
				Subsystem: "flash_loan",
				Name:      "fees_total",
				Help:      "Cumulative flash-loan fees segmented by destination.",
			}, []string{"destination"}),
			reserve: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "flashreserve",
				Subsystem: "pool",
				Name:      "reserve_balance",
				Help:      "Base-asset balance held by the vault after the last committed operation.",
			}),
			supply: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "flashreserve",
				Subsystem: "pool",
				Name:      "claim_supply",
				Help:      "Outstanding claim-token supply after the last committed operation.",
			}),
		}
		prometheus.MustRegister(
			reserveRegistry.operations,
			reserveRegistry.latency,
			reserveRegistry.rejections,
			reserveRegistry.loanPrincipal,
			reserveRegistry.loanFees,
			reserveRegistry.reserve,
			reserveRegistry.supply,
		)
	})
	return reserveRegistry
}

// ObserveOperation records the outcome and latency of a single operation. An
// empty code marks success.
func (m *ReserveMetrics) ObserveOperation(operation, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "ok"
	if code != "" {
		outcome = "rejected"
		m.rejections.WithLabelValues(operation, code).Inc()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveFlashLoan records a settled loan.
func (m *ReserveMetrics) ObserveFlashLoan(principal, reserveShare, treasuryShare uint64) {
	if m == nil {
		return
	}
	m.loanPrincipal.Add(float64(principal))
	m.loanFees.WithLabelValues("reserve").Add(float64(reserveShare))
	m.loanFees.WithLabelValues("treasury").Add(float64(treasuryShare))
}

// SetPool publishes the latest reserve balance and claim supply.
func (m *ReserveMetrics) SetPool(reserve, supply uint64) {
	if m == nil {
		return
	}
	m.reserve.Set(float64(reserve))
	m.supply.Set(float64(supply))
}
