// Package metrics defines the Prometheus instruments exposed on
// /metrics.  Counters are registered once at init through promauto and
// incremented from the service layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReservationsCreated counts reservations successfully placed,
	// bulk items included.
	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_created_total",
		Help: "Number of reservations created.",
	})

	// ReservationsConfirmed counts holds converted into committed stock.
	ReservationsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_confirmed_total",
		Help: "Number of reservations confirmed.",
	})

	// ReservationsReleased counts explicit releases, bulk releases included.
	ReservationsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_released_total",
		Help: "Number of reservations released by their owner or an administrator.",
	})

	// ReservationsExpired counts holds reclaimed by the sweeper.
	ReservationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_expired_total",
		Help: "Number of lapsed reservations reclaimed by the expiry sweeper.",
	})

	// Conflicts counts transaction condition failures across all
	// operations; a rising rate signals heavy contention on few products.
	Conflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservation_conflicts_total",
		Help: "Number of operations aborted because a transaction condition failed.",
	})

	// SweepRuns counts completed sweeper passes.
	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_sweep_runs_total",
		Help: "Number of completed expiry sweep passes.",
	})
)
