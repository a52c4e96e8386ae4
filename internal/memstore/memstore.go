// Package memstore keeps users, rides and bookings in process memory. It
// satisfies the ride, booking and user stores and is used by tests and the
// memory store mode of the server.
package memstore

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/semanticallynull/carpool-backend/booking"
	"github.com/semanticallynull/carpool-backend/ride"
	"github.com/semanticallynull/carpool-backend/user"
)

var (
	_ ride.Store    = (*Store)(nil)
	_ booking.Store = (*Store)(nil)
	_ user.Store    = (*Store)(nil)
)

// Store applies every commit under one mutex, so each commit is atomic.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]user.User
	drivers  map[uuid.UUID]user.DriverProfile
	rides    map[uuid.UUID]ride.Ride
	bookings map[uuid.UUID]booking.Booking
	ratings  map[ratingKey]user.Rating
}

type ratingKey struct {
	rideID  uuid.UUID
	raterID uuid.UUID
}

func New() *Store {
	return &Store{
		users:    map[uuid.UUID]user.User{},
		drivers:  map[uuid.UUID]user.DriverProfile{},
		rides:    map[uuid.UUID]ride.Ride{},
		bookings: map[uuid.UUID]booking.Booking{},
		ratings:  map[ratingKey]user.Rating{},
	}
}

// Rides

func (s *Store) CreateRide(_ context.Context, r *ride.Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rides[r.ID] = *r
	return nil
}

func (s *Store) GetRide(_ context.Context, id uuid.UUID) (ride.Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rides[id]
	if !ok {
		return ride.Ride{}, ride.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListAvailableRides(_ context.Context, now time.Time) ([]ride.Ride, error) {
	return s.selectRides(func(r ride.Ride) bool { return r.AvailableAt(now) }, false), nil
}

func (s *Store) ListRidesByCreator(_ context.Context, creatorID uuid.UUID) ([]ride.Ride, error) {
	return s.selectRides(func(r ride.Ride) bool { return r.CreatorID == creatorID }, true), nil
}

func (s *Store) ListRides(context.Context) ([]ride.Ride, error) {
	return s.selectRides(func(ride.Ride) bool { return true }, false), nil
}

func (s *Store) selectRides(keep func(ride.Ride) bool, desc bool) []ride.Ride {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rides := []ride.Ride{}
	for _, r := range s.rides {
		if keep(r) {
			rides = append(rides, r)
		}
	}
	sort.Slice(rides, func(i, j int) bool {
		if desc {
			return rides[i].ScheduledAt.After(rides[j].ScheduledAt)
		}
		return rides[i].ScheduledAt.Before(rides[j].ScheduledAt)
	})
	return rides
}

func (s *Store) RetireRide(_ context.Context, id uuid.UUID) (ride.Ride, []uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.activeRide(id)
	if err != nil {
		return ride.Ride{}, nil, err
	}

	now := time.Now().UTC()
	cancelled := []uuid.UUID{}
	for bid, b := range s.bookings {
		if b.RideID == id && b.IsActive() {
			b.Status = booking.StatusCancelled
			b.CancelledAt = sql.NullTime{Time: now, Valid: true}
			s.bookings[bid] = b
			cancelled = append(cancelled, bid)
		}
	}
	r.Status = ride.StatusCancelled
	r.CurrentPassengers = 0
	s.rides[id] = r
	return r, cancelled, nil
}

func (s *Store) FinishRide(_ context.Context, id uuid.UUID) (ride.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.activeRide(id)
	if err != nil {
		return ride.Ride{}, err
	}
	r.Status = ride.StatusFinished
	s.rides[id] = r
	return r, nil
}

// activeRide must be called with s.mu held.
func (s *Store) activeRide(id uuid.UUID) (ride.Ride, error) {
	r, ok := s.rides[id]
	if !ok {
		return ride.Ride{}, ride.ErrNotFound
	}
	if r.Status.IsTerminal() {
		return ride.Ride{}, ride.ErrTerminal
	}
	return r, nil
}

func (s *Store) DeleteRide(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rides[id]; !ok {
		return ride.ErrNotFound
	}
	for _, b := range s.bookings {
		if b.RideID == id {
			return ride.ErrHasBookings
		}
	}
	delete(s.rides, id)
	return nil
}

// Bookings

func (s *Store) GetBooking(_ context.Context, id uuid.UUID) (booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

func (s *Store) HasActiveBooking(_ context.Context, passengerID, rideID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasActiveBooking(passengerID, rideID), nil
}

func (s *Store) hasActiveBooking(passengerID, rideID uuid.UUID) bool {
	for _, b := range s.bookings {
		if b.PassengerID == passengerID && b.RideID == rideID && b.IsActive() {
			return true
		}
	}
	return false
}

func (s *Store) ListBookingsByPassenger(_ context.Context, passengerID uuid.UUID) ([]booking.Booking, error) {
	return s.selectBookings(func(b booking.Booking) bool { return b.PassengerID == passengerID }, true), nil
}

func (s *Store) ListBookingsByRide(_ context.Context, rideID uuid.UUID) ([]booking.Booking, error) {
	return s.selectBookings(func(b booking.Booking) bool { return b.RideID == rideID }, false), nil
}

func (s *Store) selectBookings(keep func(booking.Booking) bool, desc bool) []booking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bookings := []booking.Booking{}
	for _, b := range s.bookings {
		if keep(b) {
			bookings = append(bookings, b)
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		if desc {
			return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
		}
		return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
	})
	return bookings
}

func (s *Store) CommitReservation(_ context.Context, b *booking.Booking) (ride.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rides[b.RideID]
	if !ok {
		return ride.Ride{}, ride.ErrNotFound
	}
	if r.Status != ride.StatusWaiting {
		return ride.Ride{}, booking.ErrRideUnavailable
	}
	if b.SeatCount < 1 || r.Remaining() < b.SeatCount {
		return ride.Ride{}, &booking.InsufficientCapacityError{Remaining: r.Remaining()}
	}
	if s.hasActiveBooking(b.PassengerID, b.RideID) {
		return ride.Ride{}, booking.ErrDuplicateBooking
	}

	r = r.Occupy(b.SeatCount)
	s.rides[r.ID] = r
	s.bookings[b.ID] = *b
	return r, nil
}

func (s *Store) CommitCancellation(_ context.Context, b *booking.Booking, at time.Time) (ride.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rides[b.RideID]
	if !ok {
		return ride.Ride{}, ride.ErrNotFound
	}
	current, ok := s.bookings[b.ID]
	if !ok {
		return ride.Ride{}, booking.ErrNotFound
	}
	if !current.IsActive() {
		*b = current
		return r, booking.ErrAlreadyCancelled
	}

	current.Status = booking.StatusCancelled
	current.CancelledAt = sql.NullTime{Time: at, Valid: true}
	r = r.Release(current.SeatCount)
	s.rides[r.ID] = r
	s.bookings[current.ID] = current
	*b = current
	return r, nil
}

// Users

func (s *Store) CreateUser(_ context.Context, u *user.User, profile *user.DriverProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	s.users[u.ID] = *u
	if profile != nil {
		s.drivers[u.ID] = *profile
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (s *Store) ListUsers(context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (s *Store) CountUsers(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *Store) GetDriverProfile(_ context.Context, userID uuid.UUID) (user.DriverProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.drivers[userID]
	if !ok {
		return user.DriverProfile{}, user.ErrNoDriverProfile
	}
	return p, nil
}

func (s *Store) RateUser(_ context.Context, r user.Rating) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[r.UserID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	key := ratingKey{rideID: r.RideID, raterID: r.RaterID}
	if _, ok := s.ratings[key]; ok {
		return user.User{}, user.ErrAlreadyRated
	}
	s.ratings[key] = r
	u.Rating = (u.Rating + float64(r.Stars)) / 2
	s.users[r.UserID] = u
	return u, nil
}

func (s *Store) DeleteUser(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return user.ErrNotFound
	}
	for _, r := range s.rides {
		if r.CreatorID == id {
			return user.ErrInUse
		}
	}
	for _, b := range s.bookings {
		if b.PassengerID == id {
			return user.ErrInUse
		}
	}
	for _, r := range s.ratings {
		if r.RaterID == id || r.UserID == id {
			return user.ErrInUse
		}
	}
	delete(s.users, id)
	delete(s.drivers, id)
	return nil
}
