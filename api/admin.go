package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) adminUsersHandler(c *gin.Context) {
	users, err := a.users.List(c)
	if err != nil {
		respondError(c, err, "failed to list users")
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) adminDeleteUserHandler(c *gin.Context) {
	id, ok := pathID(c, "userId")
	if !ok {
		return
	}
	if err := a.users.Delete(c, id); err != nil {
		respondError(c, err, "failed to delete user")
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) adminRidesHandler(c *gin.Context) {
	rides, err := a.rides.ListAll(c)
	if err != nil {
		respondError(c, err, "failed to list rides")
		return
	}
	c.JSON(http.StatusOK, toRideResponses(rides))
}

// adminDeleteRideHandler removes the ride record for good. Rides that any
// booking points at must be retired instead.
func (a *API) adminDeleteRideHandler(c *gin.Context) {
	id, ok := pathID(c, "rideId")
	if !ok {
		return
	}
	if err := a.rides.Remove(c, id); err != nil {
		respondError(c, err, "failed to remove ride")
		return
	}
	c.Status(http.StatusNoContent)
}
