// Package seed loads the demo accounts and rides into an empty store.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/semanticallynull/carpool-backend/ride"
	"github.com/semanticallynull/carpool-backend/user"
)

const DemoPassword = "password123"

var passengers = []user.RegisterParams{
	{Name: "Alia Nurlanova", Email: "alia@demo.com", Phone: "+77011234567"},
	{Name: "Arman Kassymov", Email: "arman@demo.com", Phone: "+77017654321"},
}

var drivers = []user.RegisterParams{
	{
		Name: "Aslan Bekov", Email: "aslan@demo.com", Phone: "+77021112233",
		Driver: &user.DriverParams{LicenseNumber: "KZ0012345", CarModel: "Toyota Camry", CarPlate: "01ABC123", Capacity: 4},
	},
	{
		Name: "Gulnara Sadykova", Email: "gulnara@demo.com", Phone: "+77024445566",
		Driver: &user.DriverParams{LicenseNumber: "KZ0067890", CarModel: "Hyundai Sonata", CarPlate: "01DEF456", Capacity: 4},
	},
}

// Run registers the demo users and two rides for tomorrow created by the
// first passenger. It does nothing if any user exists. It reports whether
// it seeded.
func Run(ctx context.Context, users *user.Service, rides *ride.Registry, now time.Time, logger *slog.Logger) (bool, error) {
	n, err := users.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		logger.Info("store already has users, skipping seed", slog.Int("users", n))
		return false, nil
	}

	var creator user.User
	for i, p := range passengers {
		p.Password = DemoPassword
		p.Role = user.RolePassenger
		u, err := users.Register(ctx, p)
		if err != nil {
			return false, fmt.Errorf("register %s: %w", p.Email, err)
		}
		if i == 0 {
			creator = u
		}
	}
	for _, p := range drivers {
		p.Password = DemoPassword
		p.Role = user.RoleDriver
		if _, err := users.Register(ctx, p); err != nil {
			return false, fmt.Errorf("register %s: %w", p.Email, err)
		}
	}

	tomorrow := now.AddDate(0, 0, 1)
	at := func(hour int) time.Time {
		return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), hour, 0, 0, 0, now.Location())
	}
	for _, p := range []ride.CreateParams{
		{Name: "Morning to Esentai", Departure: "Dostyk Plaza", Destination: "Esentai Mall", ScheduledAt: at(8), MaxPassengers: 3},
		{Name: "Evening to Mega", Departure: "Abai Ave 10", Destination: "Mega Alma-Ata", ScheduledAt: at(17), MaxPassengers: 2},
	} {
		p.CreatorID = creator.ID
		if _, err := rides.Create(ctx, p); err != nil {
			return false, fmt.Errorf("create ride %s: %w", p.Name, err)
		}
	}

	logger.Info("seeded demo data",
		slog.Int("users", len(passengers)+len(drivers)),
		slog.Int("rides", 2),
	)
	return true, nil
}
