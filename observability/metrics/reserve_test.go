package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"flashreserve/core/events"
	"flashreserve/core/types"
)

func TestReserveMetricsRecordOutcomes(t *testing.T) {
	m := Reserve()
	require.Same(t, m, Reserve())

	before := testutil.ToFloat64(m.operations.WithLabelValues("stake", "ok"))
	m.ObserveOperation("stake", "", time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(m.operations.WithLabelValues("stake", "ok")))

	m.ObserveOperation("flash_loan", "paused", time.Millisecond)
	require.Equal(t, float64(1), testutil.ToFloat64(m.rejections.WithLabelValues("flash_loan", "paused")))

	m.ObserveFlashLoan(1_000, 8, 2)
	require.Equal(t, float64(8), testutil.ToFloat64(m.loanFees.WithLabelValues("reserve")))
	require.Equal(t, float64(2), testutil.ToFloat64(m.loanFees.WithLabelValues("treasury")))

	m.SetPool(150, 100)
	require.Equal(t, float64(150), testutil.ToFloat64(m.reserve))
	require.Equal(t, float64(100), testutil.ToFloat64(m.supply))
}

func TestNilReserveMetricsIsSafe(t *testing.T) {
	var m *ReserveMetrics
	m.ObserveOperation("stake", "", 0)
	m.ObserveFlashLoan(1, 1, 0)
	m.SetPool(1, 1)
}

func TestHTTPMetricsObserve(t *testing.T) {
	m := HTTP()
	require.Same(t, m, HTTP())

	m.Observe("/v1/stake", "POST", 200, time.Millisecond)
	m.Observe("", "GET", 404, time.Millisecond)
	require.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("/v1/stake", "POST", "200")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "GET", "404")))

	m.Throttled()
	require.Equal(t, float64(1), testutil.ToFloat64(m.throttled))

	var nilMetrics *HTTPMetrics
	nilMetrics.Observe("x", "GET", 200, 0)
	nilMetrics.Throttled()
}

type typedEvent struct{ typ string }

func (e typedEvent) EventType() string { return e.typ }

type rawEvent struct{ evt *types.Event }

func (r rawEvent) EventType() string    { return r.evt.Type }
func (r rawEvent) Event() *types.Event { return r.evt }

func TestEventMetricsCountTypesAndSupply(t *testing.T) {
	m := Events()
	require.Same(t, m, Events())

	m.Emit(typedEvent{typ: "reserve.staked"})
	m.Emit(typedEvent{})
	m.Emit(events.TokenSupply{Token: "flash", Reason: events.SupplyReasonMint})
	m.Emit(rawEvent{evt: &types.Event{Type: events.TypeTokenSupply, Attributes: map[string]string{"reason": "burn"}}})
	m.Emit(nil)

	require.Equal(t, float64(1), testutil.ToFloat64(m.emitted.WithLabelValues("reserve.staked")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.emitted.WithLabelValues("unknown")))
	require.Equal(t, float64(2), testutil.ToFloat64(m.emitted.WithLabelValues(events.TypeTokenSupply)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.supply.WithLabelValues("FLASH", "mint")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.supply.WithLabelValues("UNKNOWN", "burn")))

	var nilMetrics *EventMetrics
	nilMetrics.Emit(typedEvent{typ: "x"})
}
