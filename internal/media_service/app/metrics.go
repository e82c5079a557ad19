package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var mediaOperationsCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "media",
		Name:      "operations_total",
		Help:      "Total number of media operations.",
	},
	[]string{"operation", "result"},
)
