// Package client wires configuration, storage, the backend client and the
// application services into one App.
package client

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskmaster/taskclient/internal/adapters/api"
	"github.com/taskmaster/taskclient/internal/adapters/repository"
	"github.com/taskmaster/taskclient/internal/application/services"
	"github.com/taskmaster/taskclient/internal/infrastructure/config"
	"github.com/taskmaster/taskclient/internal/infrastructure/database"
	"github.com/taskmaster/taskclient/internal/infrastructure/logger"
	"github.com/taskmaster/taskclient/internal/ports"
)

// App holds every component a command needs.
type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	Session *services.SessionStore
	Guard   *services.Guard
	Auth    ports.AuthService
	Users   *services.UserService
	Tasks   ports.TaskService
	Board   *services.Board

	registry *prometheus.Registry
	db       *database.DB
}

// New builds an App from cfg. The caller must Close it.
func New(cfg *config.Config, appLogger *logger.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: appLogger,
	}

	storage, err := app.openStorage()
	if err != nil {
		return nil, err
	}

	var opts []api.Option
	if cfg.Metrics.Enabled {
		app.registry = prometheus.NewRegistry()
		opts = append(opts, api.WithMetrics(api.NewMetrics(app.registry)))
	}
	backend := api.NewClient(cfg.API, appLogger, opts...)
	validate := validator.New()

	app.Session = services.NewSessionStore(storage, appLogger)
	app.Guard = services.NewGuard(app.Session)
	app.Users = services.NewUserService(backend, validate, appLogger)
	app.Auth = services.NewAuthService(app.Users, app.Session, appLogger)
	app.Tasks = services.NewTaskService(backend, app.Session, validate, appLogger)
	app.Board = services.NewBoard(app.Tasks, app.Session)

	appLogger.Debugw("Client initialized",
		"environment", cfg.App.Environment,
		"api", cfg.API.BaseURL,
		"profile", cfg.Session.Profile,
		"backend", cfg.Session.Backend,
	)
	return app, nil
}

func (a *App) openStorage() (ports.SessionStorage, error) {
	cfg := a.Config.Session

	switch cfg.Backend {
	case config.BackendMemory:
		return repository.NewMemorySessionStorage(), nil
	case config.BackendSQLite:
		db, err := database.Open(cfg.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		a.db = db
		return repository.NewSQLiteSessionStorage(db.DB, cfg.Profile), nil
	case config.BackendFile:
		return repository.NewFileSessionStorage(cfg.ProfileDir()), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// Close writes metrics if configured and releases the session database.
func (a *App) Close() error {
	var firstErr error

	if a.registry != nil && a.Config.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(a.Config.Metrics.Textfile, a.registry); err != nil {
			a.Logger.Warnw("Failed to write metrics", "file", a.Config.Metrics.Textfile, "error", err)
			firstErr = fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close session database: %w", err)
		}
		a.db = nil
	}
	return firstErr
}
