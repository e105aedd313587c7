// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EscrowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_transitions_total",
			Help: "Project lifecycle transitions by outcome",
		},
		[]string{"transition", "result"},
	)

	LedgerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_call_duration_seconds",
			Help:    "Duration of ledger calls including confirmation wait",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"operation", "result"},
	)

	MatchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_requests_total",
			Help: "Freelancer matching requests by outcome",
		},
		[]string{"result"},
	)

	MatchCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_candidates",
			Help:    "Number of freelancers returned per match request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
	)

	ReconciliationPending = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciliation_pending_total",
			Help: "Confirmed ledger effects whose persistence failed",
		},
	)
)

// ObserveLedgerCall records how long a ledger operation took since start.
func ObserveLedgerCall(operation string, start time.Time, err error) {
	LedgerCallDuration.WithLabelValues(operation, result(err)).Observe(time.Since(start).Seconds())
}

func RecordTransition(transition string, err error) {
	EscrowTransitions.WithLabelValues(transition, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the default registry on fiber.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
