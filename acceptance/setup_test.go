package acceptance

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/semanticallynull/carpool-backend/api"
	"github.com/semanticallynull/carpool-backend/booking"
	"github.com/semanticallynull/carpool-backend/internal/auth"
	"github.com/semanticallynull/carpool-backend/internal/memstore"
	"github.com/semanticallynull/carpool-backend/internal/middleware"
	"github.com/semanticallynull/carpool-backend/internal/o11y"
	"github.com/semanticallynull/carpool-backend/ride"
	"github.com/semanticallynull/carpool-backend/user"
)

const (
	adminUser     = "admin"
	adminPassword = "admin-secret"
)

type TestServer struct {
	Router *gin.Engine
	Store  *memstore.Store
	Rides  *ride.Registry
	Ledger *booking.Ledger
	Users  *user.Service
}

func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	gin.SetMode(gin.TestMode)

	store := memstore.New()
	rides := ride.NewRegistry(store)
	ledger := booking.NewLedger(rides, store)
	users := user.NewService(store).WithHashCost(bcrypt.MinCost)
	issuer, err := auth.NewIssuer(auth.Config{
		Secret:   "acceptance-secret",
		Issuer:   "carpool-test",
		Audience: "carpool-clients",
		TTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}

	obs := &o11y.Observability{
		Logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Tracer:   trace.NewTracerProvider(),
		Registry: prometheus.NewRegistry(),
	}

	a := api.New(rides, ledger, users, issuer, obs, api.Config{
		Auth:            gin.HandlersChain{fakeAuthMiddleware()},
		AdminAccounts:   gin.Accounts{adminUser: adminPassword},
		MetricsAccounts: gin.Accounts{"metrics": "metrics-secret"},
	})

	return &TestServer{
		Router: a.Router(),
		Store:  store,
		Rides:  rides,
		Ledger: ledger,
		Users:  users,
	}
}

// fakeAuthMiddleware extracts user ID from X-User-ID header for testing
func fakeAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
			c.Abort()
			return
		}
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func as(id uuid.UUID) map[string]string {
	return map[string]string{"X-User-ID": id.String()}
}

func (ts *TestServer) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.Router.ServeHTTP(w, req)
	return w
}

func (ts *TestServer) GET(path string, headers map[string]string) *httptest.ResponseRecorder {
	return ts.do(http.MethodGet, path, nil, headers)
}

func (ts *TestServer) POST(path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	return ts.do(http.MethodPost, path, body, headers)
}

func (ts *TestServer) DELETE(path string, headers map[string]string) *httptest.ResponseRecorder {
	return ts.do(http.MethodDelete, path, nil, headers)
}

// CreateTestUser registers a passenger directly through the service.
func (ts *TestServer) CreateTestUser(t *testing.T, email string) user.User {
	t.Helper()
	u, err := ts.Users.Register(context.Background(), user.RegisterParams{
		Name:     "Test " + email,
		Email:    email,
		Phone:    "+77010000000",
		Password: "password123",
		Role:     user.RolePassenger,
	})
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

func (ts *TestServer) CreateTestRide(t *testing.T, creator uuid.UUID, capacity int) ride.Ride {
	t.Helper()
	r, err := ts.Rides.Create(context.Background(), ride.CreateParams{
		CreatorID:     creator,
		Name:          "Test ride",
		Departure:     "Dostyk Plaza",
		Destination:   "Esentai Mall",
		ScheduledAt:   time.Now().Add(24 * time.Hour),
		MaxPassengers: capacity,
	})
	if err != nil {
		t.Fatalf("failed to create test ride: %v", err)
	}
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to unmarshal response: %v: %s", err, w.Body.String())
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Remaining *int   `json:"remaining"`
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) errorResponse {
	t.Helper()
	expectStatus(t, w, status)
	var resp errorResponse
	decode(t, w, &resp)
	if resp.Code != code {
		t.Errorf("expected code %s, got %s", code, resp.Code)
	}
	return resp
}

type rideResponse struct {
	ID                uuid.UUID `json:"id"`
	CreatorID         uuid.UUID `json:"creatorId"`
	MaxPassengers     int       `json:"maxPassengers"`
	CurrentPassengers int       `json:"currentPassengers"`
	RemainingSeats    int       `json:"remainingSeats"`
	Status            string    `json:"status"`
	ScheduledAt       time.Time `json:"scheduledAt"`
}

type bookingResponse struct {
	ID          uuid.UUID  `json:"id"`
	PassengerID uuid.UUID  `json:"passengerId"`
	RideID      uuid.UUID  `json:"rideId"`
	SeatCount   int        `json:"seatCount"`
	Status      string     `json:"status"`
	CancelledAt *time.Time `json:"cancelledAt"`
}

type userResponse struct {
	ID     uuid.UUID `json:"id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	Rating float64   `json:"rating"`
	Driver *struct {
		CarModel string `json:"carModel"`
		Capacity int    `json:"capacity"`
	} `json:"driver"`
}
