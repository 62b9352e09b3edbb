package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesSubmitted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_assist", Name: "rides_submitted_total", Help: "Total ride requests submitted"})
	RidesAccepted  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_assist", Name: "rides_accepted_total", Help: "Total ride requests accepted by a driver"})
	RidesDeclined  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_assist", Name: "rides_declined_total", Help: "Total pending ride requests declined"})
	RidesCompleted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_assist", Name: "rides_completed_total", Help: "Total rides completed, awaiting rating"})
	RidesRated     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_assist", Name: "rides_rated_total", Help: "Total rides rated and settled"})
	ActiveRides    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_assist", Name: "active_rides", Help: "Rides currently in ACCEPTED state"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_assist", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_assist",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
