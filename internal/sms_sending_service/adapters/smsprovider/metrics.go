package smsprovider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sms_adapter",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests to SMS carriers.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider_name", "operation"},
	)

	providerRequestsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_adapter",
			Name:      "requests_total",
			Help:      "Total carrier requests by outcome.",
		},
		[]string{"provider_name", "operation", "result"}, // result: ok, transport_error, http_error
	)
)
