package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sundayezeilo/customlinks/internal/config"
	"github.com/sundayezeilo/customlinks/internal/idgen"
	"github.com/sundayezeilo/customlinks/internal/links"
	"github.com/sundayezeilo/customlinks/internal/server"
)

// App holds the application dependencies and configuration.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *links.Registry
	Server   *server.Server
	Handler  *links.Handler

	closeStore func() error
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(".env"); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.App.ServiceVersion,
		"store", cfg.Store.Driver,
	)

	return Build(ctx, cfg, logger)
}

// Build wires the application from an already loaded configuration.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open link store: %w", err)
	}

	registry, err := links.Open(ctx, store, &links.RegistryConfig{
		Validator: links.NewValidator(links.ValidatorConfig{
			Locations:     cfg.Links.Locations,
			DefaultActive: cfg.Links.DefaultActive,
		}),
		IDGenerator: idgen.New(idgen.Scheme(cfg.Links.IDScheme), cfg.Links.IDPrefix),
		Logger:      logger,
	})
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to open link registry: %w", err)
	}

	handler := links.NewHandler(links.HandlerConfig{
		Service: registry,
		Logger:  logger,
	})

	srv := server.New(cfg, logger, handler)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"locations", cfg.Links.Locations,
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Registry:   registry,
		Server:     srv,
		Handler:    handler,
		closeStore: closeStore,
	}, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting", "port", a.Config.Server.Port)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown releases the store resources.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.closeStore != nil {
		if err := a.closeStore(); err != nil {
			return fmt.Errorf("failed to close link store: %w", err)
		}
		a.Logger.Info("link store closed")
	}
	return nil
}

// loadEnv loads a .env file in development and test. A missing file is
// not an error.
func loadEnv(path string) error {
	env := os.Getenv("APP_ENV")
	if env != "development" && env != "test" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Println("no .env file found.")
			return nil
		}
		return err
	}
	return nil
}

// setupLogger creates a JSON logger at the given level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}
