package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/semanticallynull/carpool-backend/internal/events"
	"github.com/semanticallynull/carpool-backend/ride"
)

// Store persists bookings. Both commit methods apply the booking and the
// ride occupancy change as one unit or not at all.
type Store interface {
	GetBooking(ctx context.Context, id uuid.UUID) (Booking, error)
	HasActiveBooking(ctx context.Context, passengerID, rideID uuid.UUID) (bool, error)
	ListBookingsByPassenger(ctx context.Context, passengerID uuid.UUID) ([]Booking, error)
	ListBookingsByRide(ctx context.Context, rideID uuid.UUID) ([]Booking, error)
	// CommitReservation inserts b and adds b.SeatCount to the ride's
	// occupancy, confirming the ride when it becomes full. It returns the
	// updated ride.
	CommitReservation(ctx context.Context, b *Booking) (ride.Ride, error)
	// CommitCancellation cancels the confirmed booking b and gives its seats
	// back to the ride. b is updated in place. If the stored booking is no
	// longer confirmed nothing changes and ErrAlreadyCancelled is returned.
	CommitCancellation(ctx context.Context, b *Booking, at time.Time) (ride.Ride, error)
}

const tracerName = "github.com/semanticallynull/carpool-backend/booking"

type Ledger struct {
	rides     *ride.Registry
	store     Store
	publisher events.Publisher
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics
	now       func() time.Time
}

type Option func(*Ledger)

func WithPublisher(p events.Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithRegisterer registers the ledger counters with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(l *Ledger) { l.metrics.register(reg) }
}

// WithTracerProvider makes the ledger start its spans from tp instead of the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Ledger) { l.tracer = tp.Tracer(tracerName) }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(rides *ride.Registry, store Store, opts ...Option) *Ledger {
	l := &Ledger{
		rides:     rides,
		store:     store,
		publisher: events.Nop{},
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		metrics:   newMetrics(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type ReserveParams struct {
	PassengerID    uuid.UUID
	RideID         uuid.UUID
	PickupLocation string
	Seats          int
}

// Reserve books seats on a ride for a passenger. The ride must be waiting,
// have room for every requested seat and hold no other confirmed booking by
// the same passenger, checked in that order.
func (l *Ledger) Reserve(ctx context.Context, p ReserveParams) (Booking, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.Reserve", trace.WithAttributes(
		attribute.String("ride.id", p.RideID.String()),
		attribute.Int("booking.seats", p.Seats),
	))
	defer span.End()

	b, r, err := l.reserve(ctx, p)
	l.metrics.observeReservation(err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrPersistence) {
			l.logger.ErrorContext(ctx, "failed to commit reservation",
				slog.String("ride_id", p.RideID.String()),
				slog.String("passenger_id", p.PassengerID.String()),
				slog.Any("error", err),
			)
		}
		return Booking{}, err
	}

	l.logger.DebugContext(ctx, "reservation committed",
		slog.String("booking_id", b.ID.String()),
		slog.String("ride_id", r.ID.String()),
		slog.Int("occupancy", r.CurrentPassengers),
		slog.String("ride_status", r.Status.String()),
	)

	l.publish(ctx, eventFor(events.BookingReserved, b, r, l.now()))
	if r.Status == ride.StatusConfirmed {
		l.publish(ctx, eventFor(events.RideStatusChanged, Booking{}, r, l.now()))
	}
	return b, nil
}

func (l *Ledger) reserve(ctx context.Context, p ReserveParams) (Booking, ride.Ride, error) {
	unlock := l.rides.Lock(p.RideID)
	defer unlock()

	current, err := l.rides.Get(ctx, p.RideID)
	if err != nil {
		return Booking{}, ride.Ride{}, err
	}
	if _, err := reserveSeats(current, p.Seats); err != nil {
		return Booking{}, ride.Ride{}, err
	}

	dup, err := l.store.HasActiveBooking(ctx, p.PassengerID, p.RideID)
	if err != nil {
		return Booking{}, ride.Ride{}, persistErr(err)
	}
	if dup {
		return Booking{}, ride.Ride{}, ErrDuplicateBooking
	}

	b := Booking{
		ID:             uuid.New(),
		PassengerID:    p.PassengerID,
		RideID:         p.RideID,
		PickupLocation: strings.TrimSpace(p.PickupLocation),
		SeatCount:      p.Seats,
		Status:         StatusConfirmed,
		CreatedAt:      l.now(),
	}
	updated, err := l.store.CommitReservation(ctx, &b)
	if err != nil {
		return Booking{}, ride.Ride{}, persistErr(err)
	}
	return b, updated, nil
}

// Cancel cancels a booking and frees its seats. Cancelling a booking that is
// already cancelled succeeds without changing anything.
func (l *Ledger) Cancel(ctx context.Context, id uuid.UUID) (Booking, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.Cancel", trace.WithAttributes(
		attribute.String("booking.id", id.String()),
	))
	defer span.End()

	// The ride id is needed for the lock. It never changes, so an unlocked
	// read is enough to find it.
	b, err := l.store.GetBooking(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Booking{}, persistErr(err)
	}

	unlock := l.rides.Lock(b.RideID)
	b, r, changed, err := l.cancel(ctx, id)
	unlock()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrPersistence) {
			l.logger.ErrorContext(ctx, "failed to commit cancellation",
				slog.String("booking_id", id.String()),
				slog.Any("error", err),
			)
		}
		return Booking{}, err
	}
	if !changed {
		return b, nil
	}

	l.metrics.cancellations.Inc()
	l.logger.DebugContext(ctx, "cancellation committed",
		slog.String("booking_id", b.ID.String()),
		slog.String("ride_id", r.ID.String()),
		slog.Int("occupancy", r.CurrentPassengers),
		slog.String("ride_status", r.Status.String()),
	)

	l.publish(ctx, eventFor(events.BookingCancelled, b, r, l.now()))
	// The cancellation reopened a full ride.
	if r.Status == ride.StatusWaiting && r.CurrentPassengers+b.SeatCount >= r.MaxPassengers {
		l.publish(ctx, eventFor(events.RideStatusChanged, Booking{}, r, l.now()))
	}
	return b, nil
}

// cancel must be called with the ride lock held.
func (l *Ledger) cancel(ctx context.Context, id uuid.UUID) (Booking, ride.Ride, bool, error) {
	b, err := l.store.GetBooking(ctx, id)
	if err != nil {
		return Booking{}, ride.Ride{}, false, persistErr(err)
	}
	if !b.IsActive() {
		return b, ride.Ride{}, false, nil
	}

	updated, err := l.store.CommitCancellation(ctx, &b, l.now())
	if errors.Is(err, ErrAlreadyCancelled) {
		return b, ride.Ride{}, false, nil
	}
	if err != nil {
		return Booking{}, ride.Ride{}, false, persistErr(err)
	}
	return b, updated, true, nil
}

func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (Booking, error) {
	b, err := l.store.GetBooking(ctx, id)
	return b, persistErr(err)
}

// ListByPassenger returns a passenger's bookings, newest first.
func (l *Ledger) ListByPassenger(ctx context.Context, passengerID uuid.UUID) ([]Booking, error) {
	bookings, err := l.store.ListBookingsByPassenger(ctx, passengerID)
	return bookings, persistErr(err)
}

// ListByRide returns every booking on a ride, oldest first.
func (l *Ledger) ListByRide(ctx context.Context, rideID uuid.UUID) ([]Booking, error) {
	bookings, err := l.store.ListBookingsByRide(ctx, rideID)
	return bookings, persistErr(err)
}

// MarkFinished finishes the ride. Its bookings keep their status.
func (l *Ledger) MarkFinished(ctx context.Context, rideID uuid.UUID) (ride.Ride, error) {
	r, err := l.rides.Finish(ctx, rideID)
	if err != nil {
		return ride.Ride{}, err
	}
	l.publish(ctx, eventFor(events.RideStatusChanged, Booking{}, r, l.now()))
	return r, nil
}

// Retire cancels the ride together with its confirmed bookings and publishes
// a cancellation for each of them.
func (l *Ledger) Retire(ctx context.Context, rideID uuid.UUID) (ride.Ride, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.Retire", trace.WithAttributes(
		attribute.String("ride.id", rideID.String()),
	))
	defer span.End()

	r, cancelled, err := l.rides.Retire(ctx, rideID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return ride.Ride{}, err
	}
	l.metrics.cancellations.Add(float64(len(cancelled)))
	l.logger.DebugContext(ctx, "ride retired",
		slog.String("ride_id", r.ID.String()),
		slog.Int("cancelled_bookings", len(cancelled)),
	)

	for _, id := range cancelled {
		b, err := l.store.GetBooking(ctx, id)
		if err != nil {
			l.logger.WarnContext(ctx, "failed to load retired booking",
				slog.String("booking_id", id.String()),
				slog.Any("error", err),
			)
			continue
		}
		l.publish(ctx, eventFor(events.BookingCancelled, b, r, l.now()))
	}
	l.publish(ctx, eventFor(events.RideStatusChanged, Booking{}, r, l.now()))
	return r, nil
}

// publish runs after the commit. A failed publish is logged and does not
// undo the change.
func (l *Ledger) publish(ctx context.Context, e events.Event) {
	if err := l.publisher.Publish(ctx, e); err != nil {
		l.logger.WarnContext(ctx, "failed to publish event",
			slog.String("type", string(e.Type)),
			slog.String("ride_id", e.RideID),
			slog.Any("error", err),
		)
	}
}

func eventFor(t events.Type, b Booking, r ride.Ride, at time.Time) events.Event {
	e := events.Event{
		Type:       t,
		RideID:     r.ID.String(),
		RideStatus: r.Status.String(),
		Occupancy:  r.CurrentPassengers,
		Capacity:   r.MaxPassengers,
		OccurredAt: at,
	}
	if b.ID != uuid.Nil {
		e.BookingID = b.ID.String()
		e.PassengerID = b.PassengerID.String()
		e.Seats = b.SeatCount
	}
	return e
}

func persistErr(err error) error {
	if err == nil ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRideUnavailable) ||
		errors.Is(err, ErrInsufficientCapacity) ||
		errors.Is(err, ErrDuplicateBooking) ||
		errors.Is(err, ride.ErrNotFound) ||
		errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
