package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_orders_placed_total",
		Help: "Total number of orders placed at checkout",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_orders_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_order_transitions_total",
		Help: "Order status transitions applied",
	}, []string{"from", "to", "role"})

	OrderTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_order_transitions_rejected_total",
		Help: "Order status transitions rejected by the transition table or a concurrent change",
	}, []string{"role", "reason"})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_cart_mutations_total",
		Help: "Successful cart mutations",
	}, []string{"op"})

	CartRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_cart_rejections_total",
		Help: "Cart mutations rejected before any write",
	}, []string{"reason"})

	VendorGateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_vendor_gate_rejections_total",
		Help: "Vendor mutations blocked by the approval gate",
	}, []string{"state"})

	ViewCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_view_cache_lookups_total",
		Help: "Named view cache lookups",
	}, []string{"view", "result"})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketplace_checkout_latency_seconds",
		Help:    "Latency of checkout including the placement transaction",
		Buckets: prometheus.DefBuckets,
	})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_events_consumed_total",
		Help: "Domain events handled by workers",
	}, []string{"type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
