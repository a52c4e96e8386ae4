package user_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/semanticallynull/carpool-backend/internal/memstore"
	"github.com/semanticallynull/carpool-backend/ride"
	"github.com/semanticallynull/carpool-backend/user"
)

func newService(t *testing.T) (*user.Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return user.NewService(store).WithHashCost(bcrypt.MinCost), store
}

func passengerParams(email string) user.RegisterParams {
	return user.RegisterParams{
		Name:     "Alia Nurlanova",
		Email:    email,
		Phone:    "+77011234567",
		Password: "password123",
		Role:     user.RolePassenger,
	}
}

func TestRegister_Passenger(t *testing.T) {
	svc, _ := newService(t)

	u, err := svc.Register(context.Background(), passengerParams("  Alia@Demo.com "))
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	if u.Email != "alia@demo.com" {
		t.Errorf("expected lower-cased email, got %s", u.Email)
	}
	if u.Rating != user.InitialRating {
		t.Errorf("expected rating %v, got %v", user.InitialRating, u.Rating)
	}
	if !u.Verified {
		t.Error("expected new user to be verified")
	}
	if u.PasswordHash == "password123" {
		t.Error("expected password to be hashed")
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name   string
		modify func(*user.RegisterParams)
		want   error
	}{
		{"blank name", func(p *user.RegisterParams) { p.Name = " " }, user.ErrInvalidUser},
		{"bad email", func(p *user.RegisterParams) { p.Email = "alia@demo" }, user.ErrInvalidUser},
		{"short phone", func(p *user.RegisterParams) { p.Phone = "12345" }, user.ErrInvalidUser},
		{"phone with letters", func(p *user.RegisterParams) { p.Phone = "+7701abc4567" }, user.ErrInvalidUser},
		{"short password", func(p *user.RegisterParams) { p.Password = "pass" }, user.ErrInvalidUser},
		{"driver without details", func(p *user.RegisterParams) { p.Role = user.RoleDriver }, user.ErrInvalidDriver},
		{"driver with too many seats", func(p *user.RegisterParams) {
			p.Role = user.RoleDriver
			p.Driver = &user.DriverParams{LicenseNumber: "KZ123", CarModel: "Camry", CarPlate: "01ABC123", Capacity: 9}
		}, user.ErrInvalidDriver},
		{"driver without plate", func(p *user.RegisterParams) {
			p.Role = user.RoleDriver
			p.Driver = &user.DriverParams{LicenseNumber: "KZ123", CarModel: "Camry", Capacity: 4}
		}, user.ErrInvalidDriver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := passengerParams("someone@demo.com")
			tt.modify(&p)
			if _, err := svc.Register(context.Background(), p); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Register(context.Background(), passengerParams("alia@demo.com")); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	_, err := svc.Register(context.Background(), passengerParams("ALIA@demo.com"))
	if !errors.Is(err, user.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegister_DriverProfile(t *testing.T) {
	svc, _ := newService(t)
	p := passengerParams("aslan@demo.com")
	p.Role = user.RoleDriver
	p.Driver = &user.DriverParams{LicenseNumber: "KZ-1", CarModel: "Toyota Camry", CarPlate: "01abc123", Capacity: 4}

	u, err := svc.Register(context.Background(), p)
	if err != nil {
		t.Fatalf("failed to register driver: %v", err)
	}
	profile, err := svc.DriverProfile(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("failed to get profile: %v", err)
	}
	if profile.CarPlate != "01ABC123" {
		t.Errorf("expected upper-cased plate, got %s", profile.CarPlate)
	}
	if profile.Status != user.DriverOffline {
		t.Errorf("expected driver offline, got %s", profile.Status)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Register(context.Background(), passengerParams("alia@demo.com")); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		role     user.Role
		want     error
	}{
		{"ok", "Alia@demo.com", "password123", user.RolePassenger, nil},
		{"wrong password", "alia@demo.com", "password124", user.RolePassenger, user.ErrInvalidCredentials},
		{"unknown email", "nobody@demo.com", "password123", user.RolePassenger, user.ErrInvalidCredentials},
		{"wrong role", "alia@demo.com", "password123", user.RoleDriver, user.ErrRoleMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), tt.email, tt.password, tt.role)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRate(t *testing.T) {
	svc, _ := newService(t)
	u, err := svc.Register(context.Background(), passengerParams("alia@demo.com"))
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	rideID, rater := uuid.New(), uuid.New()
	rated, err := svc.Rate(context.Background(), user.Rating{RideID: rideID, RaterID: rater, UserID: u.ID, Stars: 3})
	if err != nil {
		t.Fatalf("failed to rate: %v", err)
	}
	if rated.Rating != 4.0 {
		t.Errorf("expected rating 4.0, got %v", rated.Rating)
	}

	for _, stars := range []int{0, 6} {
		r := user.Rating{RideID: uuid.New(), RaterID: rater, UserID: u.ID, Stars: stars}
		if _, err := svc.Rate(context.Background(), r); !errors.Is(err, user.ErrInvalidRating) {
			t.Errorf("stars %d: expected ErrInvalidRating, got %v", stars, err)
		}
	}
	missing := user.Rating{RideID: uuid.New(), RaterID: rater, UserID: uuid.New(), Stars: 5}
	if _, err := svc.Rate(context.Background(), missing); !errors.Is(err, user.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRate_OncePerRideAndRater(t *testing.T) {
	svc, _ := newService(t)
	u, err := svc.Register(context.Background(), passengerParams("alia@demo.com"))
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	r := user.Rating{RideID: uuid.New(), RaterID: uuid.New(), UserID: u.ID, Stars: 1}

	if _, err := svc.Rate(context.Background(), r); err != nil {
		t.Fatalf("failed to rate: %v", err)
	}
	if _, err := svc.Rate(context.Background(), r); !errors.Is(err, user.ErrAlreadyRated) {
		t.Fatalf("expected ErrAlreadyRated, got %v", err)
	}

	got, err := svc.Get(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("failed to get user: %v", err)
	}
	if got.Rating != 3.0 {
		t.Errorf("expected the second rating to be ignored and rating 3.0, got %v", got.Rating)
	}

	other := r
	other.RaterID = uuid.New()
	if _, err := svc.Rate(context.Background(), other); err != nil {
		t.Errorf("expected another passenger to rate the same ride, got %v", err)
	}
}

func TestDelete_RefusedWhileInUse(t *testing.T) {
	svc, store := newService(t)
	u, err := svc.Register(context.Background(), passengerParams("alia@demo.com"))
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	rides := ride.NewRegistry(store)
	r, err := rides.Create(context.Background(), ride.CreateParams{
		CreatorID: u.ID, Name: "a", Departure: "b", Destination: "c",
		ScheduledAt: time.Now().Add(time.Hour), MaxPassengers: 2,
	})
	if err != nil {
		t.Fatalf("failed to create ride: %v", err)
	}

	if err := svc.Delete(context.Background(), u.ID); !errors.Is(err, user.ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}

	if err := rides.Remove(context.Background(), r.ID); err != nil {
		t.Fatalf("failed to remove ride: %v", err)
	}
	if err := svc.Delete(context.Background(), u.ID); err != nil {
		t.Fatalf("failed to delete user: %v", err)
	}
	if _, err := svc.Get(context.Background(), u.ID); !errors.Is(err, user.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRole_JSON(t *testing.T) {
	b, err := user.RoleDriver.MarshalJSON()
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if string(b) != `"driver"` {
		t.Errorf("expected \"driver\", got %s", b)
	}
	var r user.Role
	if err := r.UnmarshalJSON([]byte(`"admin"`)); err == nil {
		t.Error("expected error for unknown role")
	}
}
