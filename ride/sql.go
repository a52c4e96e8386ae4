package ride

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) CreateRide(ctx context.Context, ride *Ride) error {
	return r.db.GetContext(ctx, ride, createRideQuery,
		ride.ID, ride.Name, ride.Departure, ride.Destination, ride.ScheduledAt, ride.CreatorID,
		ride.MaxPassengers, ride.CurrentPassengers, ride.Status, ride.DiscountPercent,
		ride.EstimatedDuration, ride.CreatedAt)
}

const createRideQuery = `
INSERT INTO rides (id, name, departure, destination, scheduled_at, creator_id, max_passengers,
                   current_passengers, status, discount_percent, estimated_duration, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING *
`

func (r *Repository) GetRide(ctx context.Context, id uuid.UUID) (Ride, error) {
	var ride Ride
	err := r.db.GetContext(ctx, &ride, getRideQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Ride{}, ErrNotFound
	}
	return ride, err
}

const getRideQuery = `SELECT * FROM rides WHERE id = $1`

func (r *Repository) ListAvailableRides(ctx context.Context, now time.Time) ([]Ride, error) {
	rides := []Ride{}
	err := r.db.SelectContext(ctx, &rides, listAvailableRidesQuery, now)
	return rides, err
}

const listAvailableRidesQuery = `
SELECT * FROM rides
WHERE status = 'waiting'
  AND current_passengers < max_passengers
  AND scheduled_at > $1
ORDER BY scheduled_at ASC
`

func (r *Repository) ListRidesByCreator(ctx context.Context, creatorID uuid.UUID) ([]Ride, error) {
	rides := []Ride{}
	err := r.db.SelectContext(ctx, &rides, listRidesByCreatorQuery, creatorID)
	return rides, err
}

const listRidesByCreatorQuery = `SELECT * FROM rides WHERE creator_id = $1 ORDER BY scheduled_at DESC`

func (r *Repository) ListRides(ctx context.Context) ([]Ride, error) {
	rides := []Ride{}
	err := r.db.SelectContext(ctx, &rides, listRidesQuery)
	return rides, err
}

const listRidesQuery = `SELECT * FROM rides ORDER BY scheduled_at ASC`

// RetireRide cancels the ride and its confirmed bookings in one transaction.
func (r *Repository) RetireRide(ctx context.Context, id uuid.UUID) (Ride, []uuid.UUID, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Ride{}, nil, err
	}
	defer tx.Rollback()

	if err := lockActiveRide(ctx, tx, id); err != nil {
		return Ride{}, nil, err
	}

	cancelled := []uuid.UUID{}
	err = tx.SelectContext(ctx, &cancelled, cancelRideBookingsQuery, id)
	if err != nil {
		return Ride{}, nil, err
	}

	var ride Ride
	err = tx.GetContext(ctx, &ride, retireRideQuery, id)
	if err != nil {
		return Ride{}, nil, err
	}

	if err := tx.Commit(); err != nil {
		return Ride{}, nil, err
	}
	return ride, cancelled, nil
}

const lockRideStatusQuery = `SELECT status FROM rides WHERE id = $1 FOR UPDATE`

const cancelRideBookingsQuery = `
UPDATE bookings SET status = 'cancelled', cancelled_at = now()
WHERE ride_id = $1 AND status = 'confirmed'
RETURNING id
`

const retireRideQuery = `
UPDATE rides SET status = 'cancelled', current_passengers = 0
WHERE id = $1
RETURNING *
`

func (r *Repository) FinishRide(ctx context.Context, id uuid.UUID) (Ride, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Ride{}, err
	}
	defer tx.Rollback()

	if err := lockActiveRide(ctx, tx, id); err != nil {
		return Ride{}, err
	}

	var ride Ride
	err = tx.GetContext(ctx, &ride, finishRideQuery, id)
	if err != nil {
		return Ride{}, err
	}

	return ride, tx.Commit()
}

const finishRideQuery = `UPDATE rides SET status = 'finished' WHERE id = $1 RETURNING *`

// lockActiveRide takes the row lock and fails if the ride is already terminal.
func lockActiveRide(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	var status Status
	err := tx.GetContext(ctx, &status, lockRideStatusQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status.IsTerminal() {
		return ErrTerminal
	}
	return nil
}

func (r *Repository) DeleteRide(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var bookings int
	err = tx.GetContext(ctx, &bookings, countRideBookingsQuery, id)
	if err != nil {
		return err
	}
	if bookings > 0 {
		return ErrHasBookings
	}

	res, err := tx.ExecContext(ctx, deleteRideQuery, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

const countRideBookingsQuery = `SELECT count(*) FROM bookings WHERE ride_id = $1`

const deleteRideQuery = `DELETE FROM rides WHERE id = $1`
