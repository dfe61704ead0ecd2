// Package metrics holds the Prometheus collectors of the booking engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reservations counts createReservation outcomes by result
	// ("created", "conflict", "no_room", "invalid", "error").
	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_reservations_total",
		Help: "Reservation creation attempts by result.",
	}, []string{"result"})

	LockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "booking_lock_wait_seconds",
		Help:    "Time spent acquiring the room lock.",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	})

	// Repairs counts reconciliation repairs by kind and result.
	Repairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_repairs_total",
		Help: "Consistency repairs performed by the reconciliation service.",
	}, []string{"kind", "result"})

	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconcile_sweep_duration_seconds",
		Help:    "Duration of reconciliation sweeps by trigger.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
)
