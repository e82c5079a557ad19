package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	smsSendingProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_sending",
			Name:      "messages_processed_total",
			Help:      "Total outbound messages handed to adapters.",
		},
		[]string{"adapter", "status"}, // status: success, error_transport, error_application, error_validation
	)

	smsSendingDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sms_sending",
			Name:      "send_duration_seconds",
			Help:      "Duration of adapter Send calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"adapter"},
	)
)
