package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/FleetTrack/config"
	"github.com/BearBump/FleetTrack/internal/services/journeys"
	"github.com/BearBump/FleetTrack/internal/services/maintenance"
	"github.com/BearBump/FleetTrack/internal/services/tires"
	"github.com/BearBump/FleetTrack/internal/services/users"
	"github.com/BearBump/FleetTrack/internal/services/vehicles"
	"github.com/BearBump/FleetTrack/internal/storage/memfleet"
	"github.com/BearBump/FleetTrack/internal/storage/pgfleet"
	"github.com/pkg/errors"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Storage is everything the services need from a backend. pgfleet and
// memfleet both satisfy it.
type Storage interface {
	journeys.Repository
	vehicles.Repository
	users.Repository
	maintenance.Repository
	tires.Repository

	Ping(ctx context.Context) error
	Close()
}

var (
	_ Storage = (*pgfleet.Storage)(nil)
	_ Storage = (*memfleet.Storage)(nil)
)

// Open selects the backend by driver name. Postgres is retried until wait
// elapses because it may still be starting next to us in docker compose.
func Open(ctx context.Context, driver string, db config.DatabaseConfig, wait time.Duration) (Storage, error) {
	switch driver {
	case DriverMemory:
		slog.Warn("using in-memory storage, data is lost on restart")
		return memfleet.New(), nil
	case "", DriverPostgres:
		st, err := openPostgresWithRetry(ctx, db.ConnString(), wait)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", driver)
	}
}

func openPostgresWithRetry(ctx context.Context, connString string, wait time.Duration) (*pgfleet.Storage, error) {
	deadline := time.Now().Add(wait)
	var lastErr error
	for {
		st, err := pgfleet.New(connString)
		if err == nil {
			return st, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return nil, errors.Wrapf(lastErr, "postgres is not ready after %s", wait)
		}
		slog.Info("waiting for postgres", "error", err.Error())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
