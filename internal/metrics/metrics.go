// Package metrics exposes Prometheus metrics for the trading core.
//
// Primary series:
//   - trader_ticks_total                    – market updates processed
//   - trader_commands_total{kind,outcome}   – user commands by result
//   - trader_orders_submitted_total{leg}    – order legs submitted
//   - trader_order_modifies_total{leg}      – price-modify commands issued
//   - trader_refusals_total{reason}         – refused operations
//   - trader_faults_total                   – contained handler faults
//   - trader_exit_fills_deduped_total       – duplicate exit fills discarded
//   - trader_state                          – arming state indicator (per state)
//
// Served at /metrics in Prometheus text exposition format when the metrics
// endpoint is enabled.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Ticks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_ticks_total",
		Help: "Market updates processed",
	})

	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_commands_total",
		Help: "User commands by kind and outcome",
	}, []string{"kind", "outcome"})

	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_orders_submitted_total",
		Help: "Order legs submitted to the gateway",
	}, []string{"leg"})

	OrderModifies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_order_modifies_total",
		Help: "Price-modify commands issued",
	}, []string{"leg"})

	Refusals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_refusals_total",
		Help: "Refused operations by reason",
	}, []string{"reason"})

	Faults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_faults_total",
		Help: "Contained handler faults",
	})

	ExitFillsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_exit_fills_deduped_total",
		Help: "Duplicate exit fills discarded",
	})

	State = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trader_state",
		Help: "Arming state indicator, 1 for the active state",
	}, []string{"state"})
)

// SetState flips the state gauge so exactly the active state reads 1.
func SetState(active string) {
	for _, s := range []string{"IDLE", "ARMED_LONG", "ARMED_SHORT", "PENDING_ENTRY", "IN_POSITION"} {
		v := 0.0
		if s == active {
			v = 1.0
		}
		State.WithLabelValues(s).Set(v)
	}
}

// Serve starts the metrics endpoint on addr. Blocks; run in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
