package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sundayezeilo/customlinks/internal/config"
	"github.com/sundayezeilo/customlinks/internal/links"
	"github.com/sundayezeilo/customlinks/internal/store/memory"
	"github.com/sundayezeilo/customlinks/internal/store/postgres"
	"github.com/sundayezeilo/customlinks/internal/store/sqlite"
	"github.com/sundayezeilo/customlinks/internal/store/yamlfile"
)

func noClose() error { return nil }

// openStore returns the configured links.Store and a func releasing it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (links.Store, func() error, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory link store; links are lost on restart")
		return memory.New(), noClose, nil

	case config.DriverFile:
		return yamlfile.New(cfg.Store.FilePath, logger), noClose, nil

	case config.DriverSQLite:
		s, err := sqlite.New(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.DriverPostgres:
		pool, err := connectDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s := postgres.New(pool, logger)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, func() error {
			pool.Close()
			return nil
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return pool, nil
}
