package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carrental"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	BookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_transitions_total",
		Help:      "Booking lifecycle changes by resulting state.",
	}, []string{"state"})

	CarReturns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "car_returns_total",
		Help:      "Completed car returns.",
	})

	Payments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_total",
		Help:      "Payment coordinator outcomes.",
	}, []string{"outcome"})

	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_publish_failures_total",
		Help:      "Domain events that could not be published.",
	}, []string{"subject"})
)

// Handler serves the default registry
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
