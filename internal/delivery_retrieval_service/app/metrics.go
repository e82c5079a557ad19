package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var statusCallbacksProcessedCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "delivery_retrieval",
		Name:      "status_callbacks_processed_total",
		Help:      "Total number of carrier status callbacks processed.",
	},
	[]string{"adapter", "status"}, // status: delivered, failed, unknown, error
)
