package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrdersExecuted counts market orders settled, by side (buy/sell)
var OrdersExecuted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "velocex_orders_executed_total",
		Help: "Total number of market orders executed and settled",
	},
	[]string{"side"},
)

// ExecutionAborts counts execution attempts aborted before settlement,
// by reason (depth_unavailable, unknown_cryptocurrency, zero_liquidity)
var ExecutionAborts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "velocex_execution_aborts_total",
		Help: "Total number of market order executions aborted before settlement",
	},
	[]string{"reason"},
)

// SettlementFailures counts settlement transactions rolled back
var SettlementFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "velocex_settlement_failures_total",
		Help: "Total number of settlement transactions rolled back",
	},
)

// ExecutionLatency records end-to-end latency from event receipt to commit
var ExecutionLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "velocex_execution_latency_seconds",
		Help:    "Latency in seconds to execute and settle a market order",
		Buckets: prometheus.DefBuckets,
	},
)

// DepthUpdates counts ladder replacements per symbol
var DepthUpdates = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "velocex_depth_updates_total",
		Help: "Total number of depth snapshot replacements received from the feed",
	},
	[]string{"symbol"},
)

// NotificationsPublished counts trade-executed events pushed to users
var NotificationsPublished = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "velocex_notifications_published_total",
		Help: "Total number of trade executed notifications published",
	},
)

func init() {
	prometheus.MustRegister(OrdersExecuted, ExecutionAborts, SettlementFailures, ExecutionLatency)
	prometheus.MustRegister(DepthUpdates, NotificationsPublished)
}
