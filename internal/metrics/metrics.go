// Package metrics holds the Prometheus collectors exported on /metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storybook"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "path"},
	)

	// status: success, blocked, failed
	StoryGenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "generation_total",
			Help:      "Total number of story generations",
		},
		[]string{"status"},
	)

	StoryGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "generation_duration_seconds",
			Help:      "End to end story generation duration, illustrations included",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	StoryParagraphs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "story",
			Name:      "paragraphs",
			Help:      "Number of paragraphs per generated story",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 15},
		},
	)

	// status: success, empty, failed
	IllustrationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "illustration",
			Name:      "generation_total",
			Help:      "Total number of illustration requests",
		},
		[]string{"status"},
	)

	ModelRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "request_duration_seconds",
			Help:      "Gemini request duration in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"kind"},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)
)
