package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_sessions_initiated_total",
			Help: "STK push sessions acknowledged by the gateway",
		},
		[]string{"purpose"},
	)

	sessionsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_sessions_resolved_total",
			Help: "Payment sessions reaching a terminal status",
		},
		[]string{"purpose", "status"},
	)

	gatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_requests_total",
			Help: "Calls made to the mobile money gateway",
		},
		[]string{"operation", "outcome"},
	)

	activePollers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_active_pollers",
			Help: "Sessions currently being polled",
		},
	)

	slowSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_sessions_slow_total",
			Help: "Sessions still pending when the slow threshold passed",
		},
		[]string{"purpose"},
	)

	resolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_resolution_duration_seconds",
			Help:    "Time from initiation to terminal status",
			Buckets: prometheus.ExponentialBuckets(3, 2, 8),
		},
		[]string{"purpose"},
	)

	reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciliations_total",
			Help: "Out of band reconciliation outcomes",
		},
		[]string{"outcome"},
	)
)

func SessionInitiated(purpose string) {
	sessionsInitiated.WithLabelValues(purpose).Inc()
	activePollers.Inc()
}

func SessionResolved(purpose, status string, elapsed time.Duration) {
	sessionsResolved.WithLabelValues(purpose, status).Inc()
	resolutionDuration.WithLabelValues(purpose).Observe(elapsed.Seconds())
}

func PollerStopped() {
	activePollers.Dec()
}

func SessionSlow(purpose string) {
	slowSessions.WithLabelValues(purpose).Inc()
}

func GatewayRequest(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayRequests.WithLabelValues(operation, outcome).Inc()
}

func Reconciled(outcome string) {
	reconciliations.WithLabelValues(outcome).Inc()
}
