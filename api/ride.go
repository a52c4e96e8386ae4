package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/semanticallynull/carpool-backend/booking"
	"github.com/semanticallynull/carpool-backend/ride"
	"github.com/semanticallynull/carpool-backend/user"
)

type rideResponse struct {
	ID                uuid.UUID   `json:"id"`
	Name              string      `json:"name"`
	Departure         string      `json:"departure"`
	Destination       string      `json:"destination"`
	ScheduledAt       time.Time   `json:"scheduledAt"`
	CreatorID         uuid.UUID   `json:"creatorId"`
	MaxPassengers     int         `json:"maxPassengers"`
	CurrentPassengers int         `json:"currentPassengers"`
	RemainingSeats    int         `json:"remainingSeats"`
	Status            ride.Status `json:"status"`
	DiscountPercent   float64     `json:"discountPercent"`
	EstimatedDuration int         `json:"estimatedDuration"`
	CreatedAt         time.Time   `json:"createdAt"`
}

func toRideResponse(r ride.Ride) rideResponse {
	return rideResponse{
		ID:                r.ID,
		Name:              r.Name,
		Departure:         r.Departure,
		Destination:       r.Destination,
		ScheduledAt:       r.ScheduledAt,
		CreatorID:         r.CreatorID,
		MaxPassengers:     r.MaxPassengers,
		CurrentPassengers: r.CurrentPassengers,
		RemainingSeats:    r.Remaining(),
		Status:            r.Status,
		DiscountPercent:   r.DiscountPercent,
		EstimatedDuration: r.EstimatedDuration,
		CreatedAt:         r.CreatedAt,
	}
}

func toRideResponses(rides []ride.Ride) []rideResponse {
	resp := make([]rideResponse, 0, len(rides))
	for _, r := range rides {
		resp = append(resp, toRideResponse(r))
	}
	return resp
}

type createRideRequest struct {
	Name          string    `json:"name" binding:"required"`
	Departure     string    `json:"departure" binding:"required"`
	Destination   string    `json:"destination" binding:"required"`
	ScheduledAt   time.Time `json:"scheduledAt" binding:"required"`
	MaxPassengers int       `json:"maxPassengers"`
}

func (a *API) createRideHandler(c *gin.Context) {
	u, ok := a.currentUser(c)
	if !ok {
		return
	}

	var req createRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name, departure, destination and scheduledAt are required")
		return
	}

	r, err := a.rides.Create(c, ride.CreateParams{
		CreatorID:     u.ID,
		Name:          req.Name,
		Departure:     req.Departure,
		Destination:   req.Destination,
		ScheduledAt:   req.ScheduledAt,
		MaxPassengers: req.MaxPassengers,
	})
	if err != nil {
		respondError(c, err, "failed to create ride")
		return
	}
	c.JSON(http.StatusCreated, toRideResponse(r))
}

func (a *API) availableRidesHandler(c *gin.Context) {
	rides, err := a.rides.ListAvailable(c, a.now())
	if err != nil {
		respondError(c, err, "failed to list available rides")
		return
	}
	c.JSON(http.StatusOK, toRideResponses(rides))
}

func (a *API) myRidesHandler(c *gin.Context) {
	u, ok := a.currentUser(c)
	if !ok {
		return
	}
	rides, err := a.rides.ListByCreator(c, u.ID)
	if err != nil {
		respondError(c, err, "failed to list rides")
		return
	}
	c.JSON(http.StatusOK, toRideResponses(rides))
}

func (a *API) getRideHandler(c *gin.Context) {
	id, ok := pathID(c, "rideId")
	if !ok {
		return
	}
	r, err := a.rides.Get(c, id)
	if err != nil {
		respondError(c, err, "failed to get ride")
		return
	}
	c.JSON(http.StatusOK, toRideResponse(r))
}

// ownRide loads the ride in the path and checks the caller created it.
func (a *API) ownRide(c *gin.Context) (ride.Ride, bool) {
	u, ok := a.currentUser(c)
	if !ok {
		return ride.Ride{}, false
	}
	id, ok := pathID(c, "rideId")
	if !ok {
		return ride.Ride{}, false
	}
	r, err := a.rides.Get(c, id)
	if err != nil {
		respondError(c, err, "failed to get ride")
		return ride.Ride{}, false
	}
	if r.CreatorID != u.ID {
		forbidden(c, "Only the ride creator can do this")
		return ride.Ride{}, false
	}
	return r, true
}

// deleteRideHandler retires the ride. Its bookings are cancelled with it.
func (a *API) deleteRideHandler(c *gin.Context) {
	r, ok := a.ownRide(c)
	if !ok {
		return
	}
	retired, err := a.ledger.Retire(c, r.ID)
	if err != nil {
		respondError(c, err, "failed to retire ride")
		return
	}
	c.JSON(http.StatusOK, toRideResponse(retired))
}

func (a *API) finishRideHandler(c *gin.Context) {
	r, ok := a.ownRide(c)
	if !ok {
		return
	}
	finished, err := a.ledger.MarkFinished(c, r.ID)
	if err != nil {
		respondError(c, err, "failed to finish ride")
		return
	}
	c.JSON(http.StatusOK, toRideResponse(finished))
}

func (a *API) rideBookingsHandler(c *gin.Context) {
	r, ok := a.ownRide(c)
	if !ok {
		return
	}
	bookings, err := a.ledger.ListByRide(c, r.ID)
	if err != nil {
		respondError(c, err, "failed to list ride bookings")
		return
	}
	c.JSON(http.StatusOK, toBookingResponses(bookings))
}

type rateRequest struct {
	Stars int `json:"stars"`
}

// rateHandler lets a passenger who rode along rate the ride's creator once
// the ride has finished.
func (a *API) rateHandler(c *gin.Context) {
	u, ok := a.currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "rideId")
	if !ok {
		return
	}

	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid rating body")
		return
	}

	r, err := a.rides.Get(c, id)
	if err != nil {
		respondError(c, err, "failed to get ride")
		return
	}
	if r.Status != ride.StatusFinished {
		c.JSON(http.StatusConflict, gin.H{"code": "RIDE_NOT_FINISHED", "message": "Rides can be rated once finished"})
		return
	}

	bookings, err := a.ledger.ListByRide(c, r.ID)
	if err != nil {
		respondError(c, err, "failed to list ride bookings")
		return
	}
	if !rodeAlong(bookings, u.ID) {
		forbidden(c, "Only passengers of this ride can rate it")
		return
	}

	rated, err := a.users.Rate(c, user.Rating{
		RideID:  r.ID,
		RaterID: u.ID,
		UserID:  r.CreatorID,
		Stars:   req.Stars,
	})
	if err != nil {
		respondError(c, err, "failed to rate user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": rated.ID, "rating": rated.Rating})
}

func rodeAlong(bookings []booking.Booking, passengerID uuid.UUID) bool {
	for _, b := range bookings {
		if b.PassengerID == passengerID && b.IsActive() {
			return true
		}
	}
	return false
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
