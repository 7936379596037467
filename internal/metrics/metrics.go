package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reservation outcomes.
const (
	OutcomeReserved    = "reserved"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeReleased    = "released"
	OutcomeFailed      = "failed"
)

var (
	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservations_total",
			Help: "Seat reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	reservationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reservation_duration_seconds",
			Help:    "Latency of the ledger check-and-increment",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Applied booking status transitions",
		},
		[]string{"from", "to"},
	)

	releases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capacity_releases_total",
			Help: "Seat releases by outcome",
		},
		[]string{"outcome"},
	)

	releaseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capacity_release_failures_total",
			Help: "Releases that were still unacknowledged when the retry budget ran out",
		},
	)

	capacityDrift = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "capacity_drift_seats",
			Help: "Ledger counter minus committed booking seats, last audited value per trip",
		},
		[]string{"trip_id"},
	)
)

func RecordReservation(outcome string, took time.Duration) {
	reservations.WithLabelValues(outcome).Inc()
	reservationLatency.Observe(took.Seconds())
}

func RecordTransition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}

func RecordRelease(outcome string) {
	releases.WithLabelValues(outcome).Inc()
	if outcome == OutcomeFailed {
		releaseFailures.Inc()
	}
}

func RecordDrift(tripID string, drift int) {
	capacityDrift.WithLabelValues(tripID).Set(float64(drift))
}
