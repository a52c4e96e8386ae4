package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/semanticallynull/carpool-backend/booking"
	"github.com/semanticallynull/carpool-backend/internal/auth"
	"github.com/semanticallynull/carpool-backend/internal/middleware"
	"github.com/semanticallynull/carpool-backend/internal/o11y"
	"github.com/semanticallynull/carpool-backend/ride"
	"github.com/semanticallynull/carpool-backend/user"
)

type Config struct {
	// Auth authenticates the caller and stores its id under
	// middleware.UserIDKey.
	Auth gin.HandlersChain
	// Admin and metrics routes are only mounted when accounts are set.
	AdminAccounts   gin.Accounts
	MetricsAccounts gin.Accounts
	CORSOrigins     []string
}

type API struct {
	r      *gin.Engine
	rides  *ride.Registry
	ledger *booking.Ledger
	users  *user.Service
	issuer *auth.Issuer
	now    func() time.Time
}

func New(rides *ride.Registry, ledger *booking.Ledger, users *user.Service, issuer *auth.Issuer, obs *o11y.Observability, cfg Config) *API {
	a := &API{
		r:      gin.New(),
		rides:  rides,
		ledger: ledger,
		users:  users,
		issuer: issuer,
		now:    func() time.Time { return time.Now().UTC() },
	}
	// Handlers pass the gin context on; it must expose the request's span.
	a.r.ContextWithFallback = true

	a.r.Use(
		middleware.Tracing(obs.Tracer),
		middleware.Logging(obs.Logger),
		middleware.Metrics(obs.Registry),
		gin.Recovery(),
	)
	if len(cfg.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.CORSOrigins
		corsCfg.AddAllowHeaders("Authorization")
		a.r.Use(cors.New(corsCfg))
	}

	a.r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	a.r.POST("/auth/register", a.registerHandler)
	a.r.POST("/auth/login", a.loginHandler)

	if len(cfg.MetricsAccounts) > 0 {
		a.r.GET("/metrics", gin.BasicAuth(cfg.MetricsAccounts),
			gin.WrapH(promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{})))
	}

	protected := a.r.Group("/")
	protected.Use(cfg.Auth...)
	{
		protected.GET("/me", a.meHandler)

		protected.POST("/rides", a.createRideHandler)
		protected.GET("/rides/available", a.availableRidesHandler)
		protected.GET("/rides/mine", a.myRidesHandler)
		protected.GET("/rides/:rideId", a.getRideHandler)
		protected.DELETE("/rides/:rideId", a.deleteRideHandler)
		protected.POST("/rides/:rideId/finish", a.finishRideHandler)
		protected.POST("/rides/:rideId/bookings", a.reserveHandler)
		protected.GET("/rides/:rideId/bookings", a.rideBookingsHandler)
		protected.POST("/rides/:rideId/rating", a.rateHandler)

		protected.GET("/bookings", a.getBookingsHandler)
		protected.POST("/bookings/:bookingId/cancel", a.cancelBookingHandler)
	}

	if len(cfg.AdminAccounts) > 0 {
		admin := a.r.Group("/admin", gin.BasicAuth(cfg.AdminAccounts))
		{
			admin.GET("/users", a.adminUsersHandler)
			admin.DELETE("/users/:userId", a.adminDeleteUserHandler)
			admin.GET("/rides", a.adminRidesHandler)
			admin.DELETE("/rides/:rideId", a.adminDeleteRideHandler)
		}
	}

	return a
}

func (a *API) Router() *gin.Engine {
	return a.r
}
