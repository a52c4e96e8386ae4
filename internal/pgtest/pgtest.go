// Package pgtest connects tests to the Postgres database named by
// DATABASE_URL. Tests using it are skipped when the variable is unset.
package pgtest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/semanticallynull/carpool-backend/internal/migrate"
	"github.com/semanticallynull/carpool-backend/user"
)

// Open connects to DATABASE_URL and applies the migrations. Every test
// works on rows it created itself, so packages may share the database.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := sqlx.Connect("pgx", dbURL)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := migrate.Apply(context.Background(), db, logger); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	return db
}

// CreateUser inserts a passenger with a unique email.
func CreateUser(t *testing.T, db *sqlx.DB) user.User {
	t.Helper()
	u := user.User{
		ID:           uuid.New(),
		Name:         "Test Passenger",
		Phone:        "+77011234567",
		PasswordHash: "not-a-hash",
		Role:         user.RolePassenger,
		Rating:       user.InitialRating,
		Verified:     true,
		CreatedAt:    time.Now().UTC(),
	}
	u.Email = u.ID.String() + "@test.local"
	if err := user.NewRepository(db).CreateUser(context.Background(), &u, nil); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}
