package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/semanticallynull/carpool-backend/booking"
)

type bookingResponse struct {
	ID             uuid.UUID      `json:"id"`
	PassengerID    uuid.UUID      `json:"passengerId"`
	RideID         uuid.UUID      `json:"rideId"`
	PickupLocation string         `json:"pickupLocation"`
	SeatCount      int            `json:"seatCount"`
	Status         booking.Status `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	CancelledAt    *time.Time     `json:"cancelledAt,omitempty"`
}

func toBookingResponse(b booking.Booking) bookingResponse {
	resp := bookingResponse{
		ID:             b.ID,
		PassengerID:    b.PassengerID,
		RideID:         b.RideID,
		PickupLocation: b.PickupLocation,
		SeatCount:      b.SeatCount,
		Status:         b.Status,
		CreatedAt:      b.CreatedAt,
	}
	if b.CancelledAt.Valid {
		resp.CancelledAt = &b.CancelledAt.Time
	}
	return resp
}

func toBookingResponses(bookings []booking.Booking) []bookingResponse {
	resp := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		resp = append(resp, toBookingResponse(b))
	}
	return resp
}

type reserveRequest struct {
	Seats          int    `json:"seats"`
	PickupLocation string `json:"pickupLocation"`
}

func (a *API) reserveHandler(c *gin.Context) {
	u, ok := a.currentUser(c)
	if !ok {
		return
	}
	rideID, ok := pathID(c, "rideId")
	if !ok {
		return
	}

	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	b, err := a.ledger.Reserve(c, booking.ReserveParams{
		PassengerID:    u.ID,
		RideID:         rideID,
		PickupLocation: req.PickupLocation,
		Seats:          req.Seats,
	})
	if err != nil {
		respondError(c, err, "failed to reserve seats")
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(b))
}

func (a *API) getBookingsHandler(c *gin.Context) {
	u, ok := a.currentUser(c)
	if !ok {
		return
	}
	bookings, err := a.ledger.ListByPassenger(c, u.ID)
	if err != nil {
		respondError(c, err, "failed to list bookings")
		return
	}
	c.JSON(http.StatusOK, toBookingResponses(bookings))
}

func (a *API) cancelBookingHandler(c *gin.Context) {
	u, ok := a.currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "bookingId")
	if !ok {
		return
	}

	b, err := a.ledger.Get(c, id)
	if err != nil {
		respondError(c, err, "failed to get booking")
		return
	}
	if b.PassengerID != u.ID {
		forbidden(c, "Not authorized to cancel this booking")
		return
	}

	b, err = a.ledger.Cancel(c, id)
	if err != nil {
		respondError(c, err, "failed to cancel booking")
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}
