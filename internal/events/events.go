// Package events publishes ledger changes for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

type Type string

const (
	BookingReserved   Type = "booking.reserved"
	BookingCancelled  Type = "booking.cancelled"
	RideStatusChanged Type = "ride.status_changed"
)

// Event is published after the change it describes has been committed.
type Event struct {
	Type        Type      `json:"type"`
	RideID      string    `json:"rideId"`
	BookingID   string    `json:"bookingId,omitempty"`
	PassengerID string    `json:"passengerId,omitempty"`
	Seats       int       `json:"seats,omitempty"`
	RideStatus  string    `json:"rideStatus"`
	Occupancy   int       `json:"occupancy"`
	Capacity    int       `json:"capacity"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// RoutingKey is the topic the event is published under, e.g. "booking.reserved".
func (e Event) RoutingKey() string {
	return string(e.Type)
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
