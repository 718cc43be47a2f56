package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersApprovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_approved_total",
		Help: "Total number of orders approved",
	})

	OrdersRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Total number of pending orders rejected",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order placements",
	}, []string{"reason"})

	StockReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_reserve_latency_seconds",
		Help:    "Latency of reserving stock for a whole cart",
		Buckets: prometheus.DefBuckets,
	})

	StockUnitsRestoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_units_restored_total",
		Help: "Total number of stock units returned by rejected orders",
	})

	OTPIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otp_issued_total",
		Help: "Total number of password reset codes issued",
	})

	OTPPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otp_purged_total",
		Help: "Total number of expired password reset codes cleared",
	})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_publish_failed_total",
		Help: "Total number of order events that could not be published",
	}, []string{"event_type"})

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
