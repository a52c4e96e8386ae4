package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/semanticallynull/carpool-backend/ride"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (Booking, error) {
	var b Booking
	err := r.db.GetContext(ctx, &b, getBookingQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	return b, err
}

const getBookingQuery = `SELECT * FROM bookings WHERE id = $1`

func (r *Repository) HasActiveBooking(ctx context.Context, passengerID, rideID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, hasActiveBookingQuery, passengerID, rideID)
	return exists, err
}

const hasActiveBookingQuery = `
SELECT EXISTS (
    SELECT 1 FROM bookings
    WHERE passenger_id = $1 AND ride_id = $2 AND status = 'confirmed'
)
`

func (r *Repository) ListBookingsByPassenger(ctx context.Context, passengerID uuid.UUID) ([]Booking, error) {
	bookings := []Booking{}
	err := r.db.SelectContext(ctx, &bookings, listBookingsByPassengerQuery, passengerID)
	return bookings, err
}

const listBookingsByPassengerQuery = `SELECT * FROM bookings WHERE passenger_id = $1 ORDER BY created_at DESC`

func (r *Repository) ListBookingsByRide(ctx context.Context, rideID uuid.UUID) ([]Booking, error) {
	bookings := []Booking{}
	err := r.db.SelectContext(ctx, &bookings, listBookingsByRideQuery, rideID)
	return bookings, err
}

const listBookingsByRideQuery = `SELECT * FROM bookings WHERE ride_id = $1 ORDER BY created_at ASC`

// CommitReservation re-checks the ride under a row lock so that several
// processes sharing the database cannot oversubscribe it.
func (r *Repository) CommitReservation(ctx context.Context, b *Booking) (ride.Ride, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return ride.Ride{}, err
	}
	defer tx.Rollback()

	var current ride.Ride
	err = tx.GetContext(ctx, &current, lockRideQuery, b.RideID)
	if errors.Is(err, sql.ErrNoRows) {
		return ride.Ride{}, ride.ErrNotFound
	}
	if err != nil {
		return ride.Ride{}, err
	}
	// Same checks as the ledger, against the locked row.
	if _, err := reserveSeats(current, b.SeatCount); err != nil {
		return ride.Ride{}, err
	}

	var updated ride.Ride
	err = tx.GetContext(ctx, &updated, addSeatsQuery, b.RideID, b.SeatCount)
	if err != nil {
		return ride.Ride{}, err
	}

	err = tx.GetContext(ctx, b, createBookingQuery,
		b.ID, b.PassengerID, b.RideID, b.PickupLocation, b.SeatCount, b.Status, b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ride.Ride{}, ErrDuplicateBooking
		}
		return ride.Ride{}, err
	}

	return updated, tx.Commit()
}

const lockRideQuery = `SELECT * FROM rides WHERE id = $1 FOR UPDATE`

// SET expressions see the row as it was before the update.
const addSeatsQuery = `
UPDATE rides
SET current_passengers = current_passengers + $2,
    status = CASE WHEN current_passengers + $2 = max_passengers THEN 'confirmed' ELSE status END
WHERE id = $1
RETURNING *
`

const createBookingQuery = `
INSERT INTO bookings (id, passenger_id, ride_id, pickup_location, seat_count, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING *
`

// CommitCancellation also locks the ride row, so a cancellation racing with
// another process is seen as ErrAlreadyCancelled rather than applied twice.
func (r *Repository) CommitCancellation(ctx context.Context, b *Booking, at time.Time) (ride.Ride, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return ride.Ride{}, err
	}
	defer tx.Rollback()

	var locked ride.Ride
	err = tx.GetContext(ctx, &locked, lockRideQuery, b.RideID)
	if errors.Is(err, sql.ErrNoRows) {
		return ride.Ride{}, ride.ErrNotFound
	}
	if err != nil {
		return ride.Ride{}, err
	}

	var cancelled Booking
	err = tx.GetContext(ctx, &cancelled, cancelBookingQuery, b.ID, at)
	if errors.Is(err, sql.ErrNoRows) {
		// Cancelled by someone else in the meantime.
		current, err := r.GetBooking(ctx, b.ID)
		if err != nil {
			return ride.Ride{}, err
		}
		*b = current
		return locked, ErrAlreadyCancelled
	}
	if err != nil {
		return ride.Ride{}, err
	}

	var updated ride.Ride
	err = tx.GetContext(ctx, &updated, releaseSeatsQuery, b.RideID, cancelled.SeatCount)
	if err != nil {
		return ride.Ride{}, err
	}

	if err := tx.Commit(); err != nil {
		return ride.Ride{}, err
	}
	*b = cancelled
	return updated, nil
}

const cancelBookingQuery = `
UPDATE bookings SET status = 'cancelled', cancelled_at = $2
WHERE id = $1 AND status = 'confirmed'
RETURNING *
`

// Terminal rides keep their status and only lose the seats.
const releaseSeatsQuery = `
UPDATE rides
SET current_passengers = current_passengers - $2,
    status = CASE WHEN status = 'confirmed' AND current_passengers - $2 < max_passengers THEN 'waiting' ELSE status END
WHERE id = $1
RETURNING *
`
