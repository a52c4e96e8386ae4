package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/semanticallynull/carpool-backend/booking"
	"github.com/semanticallynull/carpool-backend/internal/middleware"
	"github.com/semanticallynull/carpool-backend/ride"
	"github.com/semanticallynull/carpool-backend/user"
)

type apiError struct {
	status  int
	code    string
	message string
}

// knownErrors maps domain errors onto their HTTP answer. The first match in
// the chain wins.
var knownErrors = []struct {
	err error
	apiError
}{
	{ride.ErrNotFound, apiError{http.StatusNotFound, "RIDE_NOT_FOUND", "Ride not found"}},
	{ride.ErrInvalidCapacity, apiError{http.StatusBadRequest, "INVALID_CAPACITY", "maxPassengers must be positive"}},
	{ride.ErrInvalidRide, apiError{http.StatusBadRequest, "INVALID_REQUEST", "name, departure and destination are required"}},
	{ride.ErrTerminal, apiError{http.StatusConflict, "RIDE_TERMINAL", "Ride is already finished or cancelled"}},
	{ride.ErrHasBookings, apiError{http.StatusConflict, "RIDE_HAS_BOOKINGS", "Ride is referenced by bookings"}},
	{booking.ErrNotFound, apiError{http.StatusNotFound, "BOOKING_NOT_FOUND", "Booking not found"}},
	{booking.ErrRideUnavailable, apiError{http.StatusConflict, "RIDE_UNAVAILABLE", "Ride is not accepting bookings"}},
	{booking.ErrDuplicateBooking, apiError{http.StatusConflict, "DUPLICATE_BOOKING", "You already hold a booking on this ride"}},
	{user.ErrNotFound, apiError{http.StatusNotFound, "USER_NOT_FOUND", "User not found"}},
	{user.ErrEmailTaken, apiError{http.StatusConflict, "EMAIL_TAKEN", "Email is already registered"}},
	{user.ErrInvalidUser, apiError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid name, email, phone or password"}},
	{user.ErrInvalidDriver, apiError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid driver details"}},
	{user.ErrInvalidCredentials, apiError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"}},
	{user.ErrRoleMismatch, apiError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Account is registered with a different role"}},
	{user.ErrNotVerified, apiError{http.StatusForbidden, "NOT_VERIFIED", "Account is not verified"}},
	{user.ErrInvalidRating, apiError{http.StatusBadRequest, "INVALID_RATING", "Rating must be between 1 and 5"}},
	{user.ErrAlreadyRated, apiError{http.StatusConflict, "ALREADY_RATED", "You already rated this ride"}},
	{user.ErrInUse, apiError{http.StatusConflict, "USER_IN_USE", "User is referenced by rides or bookings"}},
}

// respondError writes the answer for err. Unknown errors are logged and
// hidden behind a 500.
func respondError(c *gin.Context, err error, msg string) {
	if remaining, ok := booking.RemainingFromError(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"code":      "INSUFFICIENT_CAPACITY",
			"message":   err.Error(),
			"remaining": remaining,
		})
		return
	}
	for _, known := range knownErrors {
		if errors.Is(err, known.err) {
			c.JSON(known.status, gin.H{"code": known.code, "message": known.message})
			return
		}
	}

	middleware.GetLogger(c).ErrorContext(c, msg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
}

func forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, gin.H{"code": "NOT_AUTHORIZED", "message": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": msg})
}
