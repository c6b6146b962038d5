package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	predictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of served occupancy predictions",
		},
		[]string{"prediction"},
	)

	predictionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_errors_total",
			Help: "Total number of rejected or failed prediction requests",
		},
		[]string{"reason"},
	)

	// InputDriftTotal is incremented by the analytics tracker's drift callback.
	InputDriftTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "input_drift_detected_total",
			Help: "Total number of sensor readings flagged as drifted",
		},
		[]string{"room_id"},
	)
)
