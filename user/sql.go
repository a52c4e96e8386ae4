package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) CreateUser(ctx context.Context, u *User, profile *DriverProfile) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.GetContext(ctx, u, createUserQuery,
		u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.Role, u.Rating, u.Verified, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return err
	}

	if profile != nil {
		_, err = tx.ExecContext(ctx, createDriverProfileQuery,
			profile.UserID, profile.LicenseNumber, profile.CarModel, profile.CarPlate, profile.Capacity, profile.Status)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

const createUserQuery = `
INSERT INTO users (id, name, email, phone, password_hash, role, rating, verified, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING *
`

const createDriverProfileQuery = `
INSERT INTO driver_profiles (user_id, license_number, car_model, car_plate, capacity, status)
VALUES ($1, $2, $3, $4, $5, $6)
`

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, getUserQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

const getUserQuery = `SELECT * FROM users WHERE id = $1`

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, getUserByEmailQuery, email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

const getUserByEmailQuery = `SELECT * FROM users WHERE email = lower($1)`

func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	err := r.db.SelectContext(ctx, &users, listUsersQuery)
	return users, err
}

const listUsersQuery = `SELECT * FROM users ORDER BY created_at ASC`

func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, countUsersQuery)
	return n, err
}

const countUsersQuery = `SELECT count(*) FROM users`

func (r *Repository) GetDriverProfile(ctx context.Context, userID uuid.UUID) (DriverProfile, error) {
	var p DriverProfile
	err := r.db.GetContext(ctx, &p, getDriverProfileQuery, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return DriverProfile{}, ErrNoDriverProfile
	}
	return p, err
}

const getDriverProfileQuery = `SELECT * FROM driver_profiles WHERE user_id = $1`

func (r *Repository) RateUser(ctx context.Context, rating Rating) (User, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, createRatingQuery,
		rating.RideID, rating.RaterID, rating.UserID, rating.Stars, rating.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return User{}, ErrAlreadyRated
			case foreignKeyViolation:
				return User{}, ErrNotFound
			}
		}
		return User{}, err
	}

	var u User
	err = tx.GetContext(ctx, &u, rateUserQuery, rating.UserID, rating.Stars)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}

	return u, tx.Commit()
}

const createRatingQuery = `
INSERT INTO ratings (ride_id, rater_id, user_id, stars, created_at)
VALUES ($1, $2, $3, $4, $5)
`

const rateUserQuery = `UPDATE users SET rating = (rating + $2) / 2 WHERE id = $1 RETURNING *`

func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var inUse bool
	err = tx.GetContext(ctx, &inUse, userInUseQuery, id)
	if err != nil {
		return err
	}
	if inUse {
		return ErrInUse
	}

	_, err = tx.ExecContext(ctx, deleteDriverProfileQuery, id)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, deleteUserQuery, id)
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

const userInUseQuery = `
SELECT EXISTS (SELECT 1 FROM rides WHERE creator_id = $1)
    OR EXISTS (SELECT 1 FROM bookings WHERE passenger_id = $1)
    OR EXISTS (SELECT 1 FROM ratings WHERE rater_id = $1 OR user_id = $1)
`

const deleteDriverProfileQuery = `DELETE FROM driver_profiles WHERE user_id = $1`

const deleteUserQuery = `DELETE FROM users WHERE id = $1`
