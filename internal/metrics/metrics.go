// Package metrics exposes process-level Prometheus counters for order
// flow and window finalization. The HTTP scrape endpoint itself is out of
// scope per the core's Non-goals (no servers), but the counters are
// updated by the core so an external scraper has something real to read —
// the Non-goals carve-out excludes the transport, not the instrumentation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OrdersSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backtestcore_orders_submitted_total",
		Help: "Orders submitted to the simulated venue.",
	})
	OrdersRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backtestcore_orders_rejected_total",
		Help: "Orders rejected by OMS validation.",
	})
	FillsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backtestcore_fills_processed_total",
		Help: "Fills applied to the portfolio.",
	})
	WindowsFinalized = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backtestcore_windows_finalized_total",
		Help: "Settlement windows finalized.",
	})
	RiskBlocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backtestcore_risk_blocks_total",
		Help: "Orders blocked by the risk gate, by reason.",
	}, []string{"reason"})
)

// Registry bundles the core's collectors for registration by whatever
// external HTTP server the host process wires up.
func Registry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(OrdersSubmitted, OrdersRejected, FillsProcessed, WindowsFinalized, RiskBlocks)
	return r
}
