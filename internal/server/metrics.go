package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sweer",
		Name:      "operations_total",
		Help:      "Browser operations handled, by outcome and error code.",
	}, []string{"operation", "status", "code"})
	metricOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sweer",
		Name:      "operation_duration_seconds",
		Help:      "Time spent executing a browser operation.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"operation"})
	metricScreenshots = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sweer",
		Name:      "screenshots_total",
		Help:      "Screenshots captured with overlay labels.",
	})
	metricPageOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sweer",
		Name:      "page_open",
		Help:      "1 while a website is loaded in the browser session.",
	})
)
