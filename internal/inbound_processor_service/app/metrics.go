package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inboundSMSProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inbound_processor",
			Name:      "sms_processed_total",
			Help:      "Total number of inbound SMS messages processed.",
		},
		[]string{"adapter", "source", "status"}, // source: callback, poll; status: success, error_parsing, error_db_save
	)

	readPollDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inbound_processor",
			Name:      "read_poll_duration_seconds",
			Help:      "Duration of one read poll over every phone.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
