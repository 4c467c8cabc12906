package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/taskmaster/tracker/internal/adapters/lock"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/database"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/infrastructure/server"
	"github.com/taskmaster/tracker/internal/ports"
)

// NewRootCommand builds the tracker command tree
func NewRootCommand() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "tracker",
		Short:         "Task hierarchy and timer accounting server",
		Long:          `tracker keeps project task trees, per-employee timers and timesheets, and rolls hours and progress up the hierarchy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a config file (yaml, json or toml)")

	rootCmd.AddCommand(
		NewServeCommand(&configFile),
		NewMigrateCommand(&configFile),
		NewTaskCommand(&configFile),
		NewProjectCommand(&configFile),
		NewEmployeeCommand(&configFile),
		NewAuthCommand(&configFile),
		NewVersionCommand(&configFile),
	)
	return rootCmd
}

// app is everything a command needs once configuration is loaded
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	closers  []io.Closer
	registry *prometheus.Registry
	services *server.Services
}

func bootstrap(configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	clock := ports.SystemClock{}
	a := &app{cfg: cfg, log: appLogger, registry: registry}

	var repos server.Repositories
	switch cfg.Database.Driver {
	case config.DriverMemory:
		appLogger.Warnw("Using the in-memory backend, data is lost on exit")
		repos = server.MemoryRepositories(cfg.Timer, clock)
	default:
		db, err := database.New(cfg.Database)
		if err != nil {
			_ = appLogger.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = db
		repos = server.PostgresRepositories(db.DB, cfg.Timer, clock)
	}

	a.services = server.NewServices(cfg, repos, clock, registry, appLogger)

	if cfg.Redis.Enabled() {
		locker, err := lock.Connect(context.Background(), cfg.Redis, appLogger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, locker)
		a.services.UseLocker(locker)
	}
	return a, nil
}

// openDB loads configuration and connects without building the services
func openDB(configFile string) (*database.DB, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Database.Driver == config.DriverMemory {
		return nil, fmt.Errorf("database driver %q has no migrations", cfg.Database.Driver)
	}
	return database.New(cfg.Database)
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warnw("Failed to close resource", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warnw("Failed to close database", "error", err)
		}
	}
	_ = a.log.Close()
}

// NewVersionCommand creates the version command
func NewVersionCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", cfg.App.Name, cfg.App.Version, cfg.App.Environment)
			return nil
		},
	}
}
