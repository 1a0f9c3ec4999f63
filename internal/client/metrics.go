package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apios_client",
			Name:      "requests_total",
			Help:      "Outbound provider calls by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "apios_client",
			Name:      "request_duration_seconds",
			Help:      "Latency of outbound provider calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)
