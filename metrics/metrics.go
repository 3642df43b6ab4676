// Package metrics exposes the engine's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BarsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reversion_bars_total", Help: "Price bars processed, by instrument",
	}, []string{"instrument"})
	BarsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reversion_bars_skipped_total", Help: "Bars skipped for data errors, by reason",
	}, []string{"reason"})
	EntriesDenied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reversion_entries_denied_total", Help: "Enter decisions refused by the risk manager, by violation code",
	}, []string{"code"})
	IntentsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reversion_intents_submitted_total", Help: "Intents handed to the executor, by side",
	}, []string{"side"})
	IntentRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reversion_intent_retries_total", Help: "Failed submission attempts that were retried, by side",
	}, []string{"side"})
	Fills = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reversion_fills_total", Help: "Confirmed fills, by side",
	}, []string{"side"})
	PositionsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reversion_positions_closed_total", Help: "Closed positions, by strategy and exit reason",
	}, []string{"strategy", "reason"})
	FatalAlerts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reversion_fatal_alerts_total", Help: "Alerts requiring manual intervention",
	})
	ActivePositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reversion_active_positions", Help: "Positions PENDING, OPEN or CLOSING",
	})
	RealizedPnL = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reversion_realized_pnl_abs_total", Help: "Absolute realized PnL in quote currency, by strategy and sign",
	}, []string{"strategy", "sign"})
	EngineState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reversion_engine_state", Help: "0=running, 1=paused, 2=paused_exec_errors, 3=emergency_stop, 4=paused_price_feed",
	})
	Oscillator = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reversion_oscillator", Help: "Latest oscillator value, by instrument",
	}, []string{"instrument"})
)

func init() {
	prometheus.MustRegister(
		BarsProcessed, BarsSkipped, EntriesDenied, IntentsSubmitted, IntentRetries,
		Fills, PositionsClosed, FatalAlerts, ActivePositions, RealizedPnL, EngineState,
		Oscillator,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
