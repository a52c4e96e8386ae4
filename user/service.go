package user

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrNoDriverProfile    = errors.New("user has no driver profile")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidUser        = errors.New("invalid name, email, phone or password")
	ErrInvalidDriver      = errors.New("invalid driver details")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRoleMismatch       = errors.New("account is registered with a different role")
	ErrNotVerified        = errors.New("account is not verified")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrAlreadyRated       = errors.New("ride was already rated by this passenger")
	ErrInUse              = errors.New("user is referenced by rides or bookings")
)

const (
	MinPasswordLength = 8
	MaxDriverCapacity = 8
)

var (
	emailPattern = regexp.MustCompile(`^[A-Z0-9a-z._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,64}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
)

type Store interface {
	// CreateUser inserts u and, for drivers, its profile together. A taken
	// email yields ErrEmailTaken.
	CreateUser(ctx context.Context, u *User, profile *DriverProfile) error
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
	GetDriverProfile(ctx context.Context, userID uuid.UUID) (DriverProfile, error)
	// RateUser records r and folds its stars into the rated user's rating as
	// (rating + stars) / 2. A second rating for the same ride by the same
	// rater yields ErrAlreadyRated.
	RateUser(ctx context.Context, r Rating) (User, error)
	// DeleteUser fails with ErrInUse while rides or bookings reference the user.
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	store    Store
	hashCost int
	now      func() time.Time
}

func NewService(store Store) *Service {
	return &Service{
		store:    store,
		hashCost: bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithHashCost returns a copy of s hashing with cost. Tests use
// bcrypt.MinCost to stay fast.
func (s *Service) WithHashCost(cost int) *Service {
	cp := *s
	cp.hashCost = cost
	return &cp
}

type DriverParams struct {
	LicenseNumber string
	CarModel      string
	CarPlate      string
	Capacity      int
}

type RegisterParams struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     Role
	Driver   *DriverParams
}

// Register creates a verified account. Emails are stored lower-case.
func (s *Service) Register(ctx context.Context, p RegisterParams) (User, error) {
	name := strings.TrimSpace(p.Name)
	email := strings.ToLower(strings.TrimSpace(p.Email))
	phone := strings.TrimSpace(p.Phone)
	if name == "" ||
		!emailPattern.MatchString(email) ||
		!phonePattern.MatchString(phone) ||
		len(p.Password) < MinPasswordLength {
		return User{}, ErrInvalidUser
	}

	var profile *DriverProfile
	switch p.Role {
	case RolePassenger:
	case RoleDriver:
		d, err := validateDriver(p.Driver)
		if err != nil {
			return User{}, err
		}
		profile = &d
	default:
		return User{}, ErrInvalidUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
		Role:         p.Role,
		Rating:       InitialRating,
		Verified:     true,
		CreatedAt:    s.now(),
	}
	if profile != nil {
		profile.UserID = u.ID
	}
	if err := s.store.CreateUser(ctx, &u, profile); err != nil {
		return User{}, err
	}
	return u, nil
}

func validateDriver(p *DriverParams) (DriverProfile, error) {
	if p == nil {
		return DriverProfile{}, ErrInvalidDriver
	}
	d := DriverProfile{
		LicenseNumber: strings.TrimSpace(p.LicenseNumber),
		CarModel:      strings.TrimSpace(p.CarModel),
		CarPlate:      strings.ToUpper(strings.TrimSpace(p.CarPlate)),
		Capacity:      p.Capacity,
		Status:        DriverOffline,
	}
	if d.LicenseNumber == "" || d.CarModel == "" || d.CarPlate == "" ||
		d.Capacity < 1 || d.Capacity > MaxDriverCapacity {
		return DriverProfile{}, ErrInvalidDriver
	}
	return d, nil
}

// Authenticate checks credentials for the role the client logs in as.
func (s *Service) Authenticate(ctx context.Context, email, password string, role Role) (User, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if u.Role != role {
		return User{}, ErrRoleMismatch
	}
	if !u.Verified {
		return User{}, ErrNotVerified
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.CountUsers(ctx)
}

func (s *Service) DriverProfile(ctx context.Context, userID uuid.UUID) (DriverProfile, error) {
	return s.store.GetDriverProfile(ctx, userID)
}

// Rate records a rating of r.UserID given by r.RaterID for r.RideID.
func (s *Service) Rate(ctx context.Context, r Rating) (User, error) {
	if r.Stars < 1 || r.Stars > 5 {
		return User{}, ErrInvalidRating
	}
	r.CreatedAt = s.now()
	return s.store.RateUser(ctx, r)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteUser(ctx, id)
}
