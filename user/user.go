package user

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type Role int

const (
	RolePassenger Role = iota
	RoleDriver
)

func (r Role) String() string {
	switch r {
	case RolePassenger:
		return "passenger"
	case RoleDriver:
		return "driver"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func ParseRole(v string) (Role, error) {
	switch v {
	case "passenger":
		return RolePassenger, nil
	case "driver":
		return RoleDriver, nil
	}
	return 0, fmt.Errorf("invalid role %q", v)
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r *Role) Scan(i any) error {
	switch v := i.(type) {
	case string:
		parsed, err := ParseRole(v)
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	case []byte:
		return r.Scan(string(v))
	}
	return fmt.Errorf("cannot scan %T into role", i)
}

func (r Role) Value() (driver.Value, error) {
	return r.String(), nil
}

type DriverStatus int

const (
	DriverOffline DriverStatus = iota
	DriverOnline
)

func (s DriverStatus) String() string {
	if s == DriverOnline {
		return "online"
	}
	return "offline"
}

func (s DriverStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *DriverStatus) Scan(i any) error {
	var v string
	switch t := i.(type) {
	case string:
		v = t
	case []byte:
		v = string(t)
	default:
		return fmt.Errorf("cannot scan %T into driver status", i)
	}
	switch v {
	case "offline":
		*s = DriverOffline
	case "online":
		*s = DriverOnline
	default:
		return fmt.Errorf("invalid driver status %q", v)
	}
	return nil
}

func (s DriverStatus) Value() (driver.Value, error) {
	return s.String(), nil
}

// InitialRating is the rating every new user starts with.
const InitialRating = 5.0

type User struct {
	ID           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Phone        string    `db:"phone"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
	Rating       float64   `db:"rating"`
	Verified     bool      `db:"verified"`
	CreatedAt    time.Time `db:"created_at"`
}

type DriverProfile struct {
	UserID        uuid.UUID    `db:"user_id"`
	LicenseNumber string       `db:"license_number"`
	CarModel      string       `db:"car_model"`
	CarPlate      string       `db:"car_plate"`
	Capacity      int          `db:"capacity"`
	Status        DriverStatus `db:"status"`
}

// Rating is one passenger's score for the creator of a ride they rode on.
// A passenger rates a ride once.
type Rating struct {
	RideID    uuid.UUID `db:"ride_id"`
	RaterID   uuid.UUID `db:"rater_id"`
	UserID    uuid.UUID `db:"user_id"`
	Stars     int       `db:"stars"`
	CreatedAt time.Time `db:"created_at"`
}
