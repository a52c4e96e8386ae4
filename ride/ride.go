package ride

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	// DefaultDiscountPercent is shown to passengers as the group discount. It
	// never feeds into any capacity or status decision.
	DefaultDiscountPercent = 15.0
	// DefaultEstimatedDuration is the trip estimate in minutes.
	DefaultEstimatedDuration = 30
)

type Status int

const (
	StatusWaiting Status = iota
	StatusConfirmed
	StatusFinished
	StatusCancelled
)

var statusNames = [...]string{"waiting", "confirmed", "finished", "cancelled"}

// transitions lists every status a ride may move to from a given status.
// Terminal statuses map to nothing.
var transitions = map[Status][]Status{
	StatusWaiting:   {StatusConfirmed, StatusFinished, StatusCancelled},
	StatusConfirmed: {StatusWaiting, StatusFinished, StatusCancelled},
	StatusFinished:  {},
	StatusCancelled: {},
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus maps the wire name back onto a Status.
func ParseStatus(v string) (Status, error) {
	for i, name := range statusNames {
		if name == v {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("invalid ride status %q", v)
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transitions leave s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := ParseStatus(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
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
	return fmt.Errorf("cannot scan %T into ride status", i)
}

func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}

// Ride is a scheduled shared trip with a fixed passenger capacity.
type Ride struct {
	ID                uuid.UUID `db:"id"`
	Name              string    `db:"name"`
	Departure         string    `db:"departure"`
	Destination       string    `db:"destination"`
	ScheduledAt       time.Time `db:"scheduled_at"`
	CreatorID         uuid.UUID `db:"creator_id"`
	MaxPassengers     int       `db:"max_passengers"`
	CurrentPassengers int       `db:"current_passengers"`
	Status            Status    `db:"status"`
	DiscountPercent   float64   `db:"discount_percent"`
	EstimatedDuration int       `db:"estimated_duration"` // minutes
	CreatedAt         time.Time `db:"created_at"`
}

// Remaining is the number of seats that can still be booked.
func (r Ride) Remaining() int {
	if r.CurrentPassengers >= r.MaxPassengers {
		return 0
	}
	return r.MaxPassengers - r.CurrentPassengers
}

// IsFull reports whether occupancy has reached capacity.
func (r Ride) IsFull() bool {
	return r.CurrentPassengers >= r.MaxPassengers
}

// AvailableAt reports whether the ride shows up in the available listing at now.
func (r Ride) AvailableAt(now time.Time) bool {
	return r.Status == StatusWaiting && !r.IsFull() && r.ScheduledAt.After(now)
}

// Occupy returns r with seats added, confirmed if that fills it. Callers
// check capacity first.
func (r Ride) Occupy(seats int) Ride {
	r.CurrentPassengers += seats
	if r.Status == StatusWaiting && r.IsFull() {
		r.Status = StatusConfirmed
	}
	return r
}

// Release returns r with seats freed. A confirmed ride drops back to waiting;
// terminal rides keep their status.
func (r Ride) Release(seats int) Ride {
	r.CurrentPassengers -= seats
	if r.Status == StatusConfirmed && !r.IsFull() {
		r.Status = StatusWaiting
	}
	return r
}
