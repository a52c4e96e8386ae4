package booking

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/semanticallynull/carpool-backend/ride"
)

type metrics struct {
	reservations  *prometheus.CounterVec
	cancellations prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		reservations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_reservations_total",
				Help: "Total number of reservation attempts by result",
			},
			[]string{"result"},
		),
		cancellations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_cancellations_total",
				Help: "Total number of bookings cancelled",
			},
		),
	}
}

func (m *metrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.reservations, m.cancellations)
}

func (m *metrics) observeReservation(err error) {
	m.reservations.WithLabelValues(reservationResult(err)).Inc()
}

func reservationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRideUnavailable):
		return "ride_unavailable"
	case errors.Is(err, ErrInsufficientCapacity):
		return "insufficient_capacity"
	case errors.Is(err, ErrDuplicateBooking):
		return "duplicate"
	case errors.Is(err, ride.ErrNotFound):
		return "not_found"
	}
	return "error"
}
