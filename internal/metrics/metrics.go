package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kanswers_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kanswers_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Queue metrics
	JobsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kanswers_jobs_enqueued_total",
			Help: "Total jobs enqueued",
		},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kanswers_jobs_processed_total",
			Help: "Total worker dispatches by outcome",
		},
		[]string{"status", "mode"},
	)

	DeadLetters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kanswers_dead_letters_total",
			Help: "Total jobs moved to the dead list",
		},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kanswers_queue_depth",
			Help: "Current queue list depths",
		},
		[]string{"queue"}, // "waiting", "processing", "dead"
	)

	JobsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kanswers_jobs_recovered_total",
			Help: "Total stuck jobs moved back to waiting",
		},
	)

	// Delivery metrics
	DeliveryRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kanswers_delivery_retries_total",
			Help: "Total throttled Slack calls that were retried",
		},
		[]string{"op"},
	)

	StreamingUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kanswers_streaming_updates_total",
			Help: "Total in-place message updates pushed while streaming",
		},
	)

	// Engine metrics
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kanswers_generation_duration_seconds",
			Help:    "Answer generation latency",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)
)
