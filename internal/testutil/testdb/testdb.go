//go:build integration

// Package testdb starts a disposable Postgres for integration tests and applies
// the embedded migrations.
package testdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/noah-isme/pawclass-api/migrations"
)

// Handle owns the container and the connection pool.
type Handle struct {
	DB   *sqlx.DB
	stop func(context.Context) error
}

// Close releases the pool and terminates the container.
func (h *Handle) Close() {
	if h.DB != nil {
		_ = h.DB.Close()
	}
	if h.stop != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.stop(ctx)
	}
}

// Start boots postgres:16-alpine and migrates it to the latest version.
func Start(ctx context.Context) (*Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("pawclass"),
		postgres.WithUsername("pawclass"),
		postgres.WithPassword("pawclass"),
	)
	if err != nil {
		return nil, err
	}

	uri, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pg.Terminate(ctx)
		return nil, err
	}

	db, err := sqlx.Open("postgres", uri)
	if err != nil {
		_ = pg.Terminate(ctx)
		return nil, err
	}
	if err := waitReady(ctx, db); err != nil {
		_ = pg.Terminate(ctx)
		return nil, err
	}
	if err := migrations.Up(db.DB); err != nil {
		_ = pg.Terminate(ctx)
		return nil, err
	}

	return &Handle{DB: db, stop: pg.Terminate}, nil
}

// New starts a database for t and registers cleanup. It skips the test when no
// container runtime is reachable.
func New(t *testing.T) *sqlx.DB {
	t.Helper()
	h, err := Start(context.Background())
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(h.Close)
	return h.DB
}

func waitReady(ctx context.Context, db *sqlx.DB) error {
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		if err := db.PingContext(ctx); err == nil {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("db not ready")
}
