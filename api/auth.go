package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/semanticallynull/carpool-backend/internal/middleware"
	"github.com/semanticallynull/carpool-backend/user"
)

type driverResponse struct {
	LicenseNumber string            `json:"licenseNumber"`
	CarModel      string            `json:"carModel"`
	CarPlate      string            `json:"carPlate"`
	Capacity      int               `json:"capacity"`
	Status        user.DriverStatus `json:"status"`
}

type userResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	Role      user.Role       `json:"role"`
	Rating    float64         `json:"rating"`
	Verified  bool            `json:"verified"`
	CreatedAt time.Time       `json:"createdAt"`
	Driver    *driverResponse `json:"driver,omitempty"`
}

func toUserResponse(u user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		Rating:    u.Rating,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}

type tokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

type driverRequest struct {
	LicenseNumber string `json:"licenseNumber"`
	CarModel      string `json:"carModel"`
	CarPlate      string `json:"carPlate"`
	Capacity      int    `json:"capacity"`
}

type registerRequest struct {
	Name     string         `json:"name" binding:"required"`
	Email    string         `json:"email" binding:"required"`
	Phone    string         `json:"phone" binding:"required"`
	Password string         `json:"password" binding:"required"`
	Role     string         `json:"role" binding:"required"`
	Driver   *driverRequest `json:"driver"`
}

func (a *API) registerHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name, email, phone, password and role are required")
		return
	}
	role, err := user.ParseRole(req.Role)
	if err != nil {
		badRequest(c, "role must be passenger or driver")
		return
	}

	params := user.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     role,
	}
	if req.Driver != nil {
		params.Driver = &user.DriverParams{
			LicenseNumber: req.Driver.LicenseNumber,
			CarModel:      req.Driver.CarModel,
			CarPlate:      req.Driver.CarPlate,
			Capacity:      req.Driver.Capacity,
		}
	}

	u, err := a.users.Register(c, params)
	if err != nil {
		respondError(c, err, "failed to register user")
		return
	}
	a.respondToken(c, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

func (a *API) loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email, password and role are required")
		return
	}
	role, err := user.ParseRole(req.Role)
	if err != nil {
		badRequest(c, "role must be passenger or driver")
		return
	}

	u, err := a.users.Authenticate(c, req.Email, req.Password, role)
	if err != nil {
		respondError(c, err, "failed to authenticate user")
		return
	}
	a.respondToken(c, http.StatusOK, u)
}

func (a *API) respondToken(c *gin.Context, status int, u user.User) {
	token, expires, err := a.issuer.Issue(u.ID, u.Role.String())
	if err != nil {
		respondError(c, err, "failed to issue token")
		return
	}
	c.JSON(status, tokenResponse{
		Token:     token,
		ExpiresAt: expires,
		User:      toUserResponse(u),
	})
}

// currentUser resolves the authenticated caller. It writes a 401 and
// returns false when the token's user no longer exists.
func (a *API) currentUser(c *gin.Context) (user.User, bool) {
	id, ok := middleware.GetUserID(c)
	if !ok {
		unauthorized(c)
		return user.User{}, false
	}
	u, err := a.users.Get(c, id)
	if errors.Is(err, user.ErrNotFound) {
		unauthorized(c)
		return user.User{}, false
	}
	if err != nil {
		respondError(c, err, "failed to load current user")
		return user.User{}, false
	}
	return u, true
}

func (a *API) meHandler(c *gin.Context) {
	u, ok := a.currentUser(c)
	if !ok {
		return
	}

	resp := toUserResponse(u)
	if u.Role == user.RoleDriver {
		p, err := a.users.DriverProfile(c, u.ID)
		if err != nil && !errors.Is(err, user.ErrNoDriverProfile) {
			respondError(c, err, "failed to load driver profile")
			return
		}
		if err == nil {
			resp.Driver = &driverResponse{
				LicenseNumber: p.LicenseNumber,
				CarModel:      p.CarModel,
				CarPlate:      p.CarPlate,
				Capacity:      p.Capacity,
				Status:        p.Status,
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}
