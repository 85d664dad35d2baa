package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	}, []string{"buyer"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order creations",
	}, []string{"reason"})

	OrdersConvertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_converted_total",
		Help: "Total number of guest orders converted to user accounts",
	})

	OrdersConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_confirmed_total",
		Help: "Total number of orders confirmed after payment",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	StockReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_failed_total",
		Help: "Total number of failed stock reservations",
	}, []string{"reason"})

	OrderBuildLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_build_latency_seconds",
		Help:    "Latency of order assembly including stock reservation",
		Buckets: prometheus.DefBuckets,
	})

	ProductCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "product_cache_hits_total",
		Help: "Total number of catalog reads served from the cache",
	})

	ProductCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "product_cache_misses_total",
		Help: "Total number of catalog reads that fell through to the database",
	})

	PaymentIntentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_intents_created_total",
		Help: "Total number of payment intents created at the gateway",
	})

	PaymentsSucceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_succeeded_total",
		Help: "Total number of payments that reached SUCCEEDED",
	})

	PaymentsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total number of payments that reached FAILED",
	})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total number of gateway webhook events received",
	}, []string{"type", "outcome"})

	GatewayRequestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "Latency of payment gateway API calls",
		Buckets: prometheus.DefBuckets,
	})

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
