package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "p4"

var (
	// RequestsTotal counts HTTP requests by method, route pattern and status.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "The total number of HTTP requests",
	}, []string{"method", "route", "status"})

	// RequestDuration observes HTTP request latency by method and route.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "The HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// UserOperations counts user service operations by outcome.
	UserOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_operations_total",
		Help:      "The total number of user operations by result",
	}, []string{"operation", "result"})

	// EventsPublished counts user lifecycle events handed to the broker.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_events_published_total",
		Help:      "The total number of published user events by result",
	}, []string{"type", "result"})

	// AssetsUploaded counts image uploads by result.
	AssetsUploaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assets_uploaded_total",
		Help:      "The total number of uploaded assets by result",
	}, []string{"result"})
)
