// Package bootstrap opens the collaborators shared by the journal binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"example.com/futureself/internal/config"
	"example.com/futureself/internal/domain"
	"example.com/futureself/internal/persistence/postgres"
	"example.com/futureself/internal/persistence/sqlite"
)

// Store is an opened journal store. Pool is nil unless the driver is postgres.
type Store struct {
	domain.Store
	Pool  *pgxpool.Pool
	close func()
}

// Close releases the underlying connections.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore opens the store selected by cfg.StoreDriver. Postgres schemas are
// migrated before the store is returned.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := OpenPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		applied, err := postgres.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("applied migrations", zap.Strings("versions", applied))
		}
		return &Store{Store: postgres.NewRepository(pool), Pool: pool, close: pool.Close}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("using embedded store", zap.String("path", cfg.SQLitePath))
		return &Store{Store: db, close: func() { _ = db.Close() }}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}

// OpenPostgres connects a pool and verifies the connection.
func OpenPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
