package ride

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/semanticallynull/carpool-backend/internal/keylock"
)

var (
	ErrNotFound        = errors.New("ride not found")
	ErrInvalidCapacity = errors.New("max passengers must be positive")
	ErrInvalidRide     = errors.New("ride name, departure and destination are required")
	ErrTerminal        = errors.New("ride is finished or cancelled")
	ErrHasBookings     = errors.New("ride is referenced by bookings")
	ErrPersistence     = errors.New("persistence failure")
)

// Store is the record store the Registry persists rides in.
type Store interface {
	CreateRide(ctx context.Context, r *Ride) error
	GetRide(ctx context.Context, id uuid.UUID) (Ride, error)
	ListAvailableRides(ctx context.Context, now time.Time) ([]Ride, error)
	ListRidesByCreator(ctx context.Context, creatorID uuid.UUID) ([]Ride, error)
	ListRides(ctx context.Context) ([]Ride, error)
	// RetireRide cancels the ride and every confirmed booking on it in one
	// unit. It returns the ids of the bookings it cancelled.
	RetireRide(ctx context.Context, id uuid.UUID) (Ride, []uuid.UUID, error)
	FinishRide(ctx context.Context, id uuid.UUID) (Ride, error)
	// DeleteRide removes the ride record and fails with ErrHasBookings if any
	// booking references it.
	DeleteRide(ctx context.Context, id uuid.UUID) error
}

// Registry owns the ride lifecycle. Every mutation of a ride, including the
// ones made by the booking ledger, runs under the ride's lock.
type Registry struct {
	store Store
	locks *keylock.Map
	now   func() time.Time
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		store: store,
		locks: keylock.New(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Lock serializes work on a single ride. Callers must invoke the returned func.
func (r *Registry) Lock(id uuid.UUID) func() {
	return r.locks.Lock(id)
}

type CreateParams struct {
	CreatorID     uuid.UUID
	Name          string
	Departure     string
	Destination   string
	ScheduledAt   time.Time
	MaxPassengers int
}

// Create persists a new waiting ride with no passengers. ScheduledAt is not
// checked against the current time.
func (r *Registry) Create(ctx context.Context, p CreateParams) (Ride, error) {
	if p.MaxPassengers <= 0 {
		return Ride{}, ErrInvalidCapacity
	}
	name := strings.TrimSpace(p.Name)
	departure := strings.TrimSpace(p.Departure)
	destination := strings.TrimSpace(p.Destination)
	if name == "" || departure == "" || destination == "" {
		return Ride{}, ErrInvalidRide
	}

	ride := Ride{
		ID:                uuid.New(),
		Name:              name,
		Departure:         departure,
		Destination:       destination,
		ScheduledAt:       p.ScheduledAt.UTC(),
		CreatorID:         p.CreatorID,
		MaxPassengers:     p.MaxPassengers,
		CurrentPassengers: 0,
		Status:            StatusWaiting,
		DiscountPercent:   DefaultDiscountPercent,
		EstimatedDuration: DefaultEstimatedDuration,
		CreatedAt:         r.now(),
	}
	if err := r.store.CreateRide(ctx, &ride); err != nil {
		return Ride{}, persistErr(err)
	}
	return ride, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (Ride, error) {
	ride, err := r.store.GetRide(ctx, id)
	return ride, persistErr(err)
}

// ListAvailable returns waiting, not yet full rides scheduled after now,
// soonest first.
func (r *Registry) ListAvailable(ctx context.Context, now time.Time) ([]Ride, error) {
	rides, err := r.store.ListAvailableRides(ctx, now)
	return rides, persistErr(err)
}

// ListByCreator returns the rides a user created, latest scheduled first.
func (r *Registry) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]Ride, error) {
	rides, err := r.store.ListRidesByCreator(ctx, creatorID)
	return rides, persistErr(err)
}

func (r *Registry) ListAll(ctx context.Context) ([]Ride, error) {
	rides, err := r.store.ListRides(ctx)
	return rides, persistErr(err)
}

// Retire takes the ride out of the active set. Its confirmed bookings are
// soft-cancelled along with it so occupancy keeps matching the bookings; their
// ids are returned.
func (r *Registry) Retire(ctx context.Context, id uuid.UUID) (Ride, []uuid.UUID, error) {
	var cancelled []uuid.UUID
	retired, err := r.transition(ctx, id, StatusCancelled, func(ctx context.Context, id uuid.UUID) (Ride, error) {
		ride, ids, err := r.store.RetireRide(ctx, id)
		cancelled = ids
		return ride, err
	})
	if err != nil {
		return Ride{}, nil, err
	}
	return retired, cancelled, nil
}

// Finish marks the ride finished. Bookings are left as they are.
func (r *Registry) Finish(ctx context.Context, id uuid.UUID) (Ride, error) {
	return r.transition(ctx, id, StatusFinished, r.store.FinishRide)
}

func (r *Registry) transition(ctx context.Context, id uuid.UUID, to Status, apply func(context.Context, uuid.UUID) (Ride, error)) (Ride, error) {
	unlock := r.Lock(id)
	defer unlock()

	current, err := r.store.GetRide(ctx, id)
	if err != nil {
		return Ride{}, persistErr(err)
	}
	if !current.Status.CanTransitionTo(to) {
		return Ride{}, ErrTerminal
	}

	updated, err := apply(ctx, id)
	if err != nil {
		return Ride{}, persistErr(err)
	}
	return updated, nil
}

// Remove physically deletes a ride. It is an administrative operation and is
// refused while any booking, active or cancelled, references the ride.
func (r *Registry) Remove(ctx context.Context, id uuid.UUID) error {
	unlock := r.Lock(id)
	defer unlock()

	if _, err := r.store.GetRide(ctx, id); err != nil {
		return persistErr(err)
	}
	return persistErr(r.store.DeleteRide(ctx, id))
}

// persistErr passes domain errors through and wraps everything else as a
// persistence failure.
func persistErr(err error) error {
	if err == nil ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTerminal) ||
		errors.Is(err, ErrHasBookings) ||
		errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
