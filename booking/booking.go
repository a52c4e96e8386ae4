package booking

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/semanticallynull/carpool-backend/ride"
)

type Status int

const (
	StatusConfirmed Status = iota
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func ParseStatus(v string) (Status, error) {
	switch v {
	case "confirmed":
		return StatusConfirmed, nil
	case "cancelled":
		return StatusCancelled, nil
	}
	return 0, fmt.Errorf("invalid booking status %q", v)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) Scan(i any) error {
	switch v := i.(type) {
	case string:
		parsed, err := ParseStatus(v)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	case []byte:
		return s.Scan(string(v))
	}
	return fmt.Errorf("cannot scan %T into booking status", i)
}

func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}

// Booking is one passenger's seat reservation against a ride. Bookings are
// never deleted, only cancelled.
type Booking struct {
	ID             uuid.UUID    `db:"id"`
	PassengerID    uuid.UUID    `db:"passenger_id"`
	RideID         uuid.UUID    `db:"ride_id"`
	PickupLocation string       `db:"pickup_location"`
	SeatCount      int          `db:"seat_count"`
	Status         Status       `db:"status"`
	CreatedAt      time.Time    `db:"created_at"`
	CancelledAt    sql.NullTime `db:"cancelled_at"`
}

func (b Booking) IsActive() bool {
	return b.Status == StatusConfirmed
}

var (
	ErrNotFound             = errors.New("booking not found")
	ErrRideUnavailable      = errors.New("ride is not accepting bookings")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrDuplicateBooking     = errors.New("passenger already holds a booking on this ride")
	// ErrAlreadyCancelled is returned by a Store when the booking stopped
	// being confirmed before the cancellation could be applied.
	ErrAlreadyCancelled = errors.New("booking is already cancelled")
	ErrPersistence      = ride.ErrPersistence
)

// InsufficientCapacityError carries the seats still free on the ride so the
// caller can offer a smaller request.
type InsufficientCapacityError struct {
	Remaining int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity: %d seats remaining", e.Remaining)
}

func (e *InsufficientCapacityError) Is(target error) bool {
	return target == ErrInsufficientCapacity
}

// RemainingFromError extracts the remaining seat count from an
// InsufficientCapacityError anywhere in err's chain.
func RemainingFromError(err error) (int, bool) {
	var capErr *InsufficientCapacityError
	if errors.As(err, &capErr) {
		return capErr.Remaining, true
	}
	return 0, false
}

// reserveSeats applies a reservation to a copy of r. Checks run in order and
// the first failure wins.
func reserveSeats(r ride.Ride, seats int) (ride.Ride, error) {
	if r.Status != ride.StatusWaiting {
		return r, ErrRideUnavailable
	}
	if seats < 1 || r.Remaining() < seats {
		return r, &InsufficientCapacityError{Remaining: r.Remaining()}
	}

	return r.Occupy(seats), nil
}
