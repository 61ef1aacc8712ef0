package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/sbxhub/internal/app/lifecycle"
	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/metrics"
	"github.com/slok/sbxhub/internal/model"
	"github.com/slok/sbxhub/internal/printer"
	"github.com/slok/sbxhub/internal/runtime"
	"github.com/slok/sbxhub/internal/runtime/docker"
	"github.com/slok/sbxhub/internal/runtime/local"
	"github.com/slok/sbxhub/internal/runtime/process"
	"github.com/slok/sbxhub/internal/storage"
	"github.com/slok/sbxhub/internal/storage/memory"
	"github.com/slok/sbxhub/internal/storage/postgres"
	"github.com/slok/sbxhub/internal/storage/sqlite"
	"github.com/slok/sbxhub/internal/storage/sqlite/migrations"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

const (
	storageSQLite   = "sqlite"
	storageMemory   = "memory"
	storagePostgres = "postgres"

	formatTable = "table"
	formatJSON  = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug       bool
	NoLog       bool
	NoColor     bool
	LoggerType  string
	DBPath      string
	Storage     string
	PostgresDSN string
	Timeout     time.Duration
	Backends    []string
	LocalHost   string
	DockerHost  string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDBPath := filepath.Join(homedir.HomeDir(), ".sbxhub", "sbxhub.db")
	app.Flag("db-path", "Path to the SQLite database file.").Default(defaultDBPath).StringVar(&c.DBPath)
	app.Flag("storage", "Storage for the sandbox records.").Default(storageSQLite).EnumVar(&c.Storage, storageSQLite, storageMemory, storagePostgres)
	app.Flag("postgres-dsn", "PostgreSQL connection string (postgres storage).").StringVar(&c.PostgresDSN)
	app.Flag("timeout", "Max duration of a command.").Default("2m").DurationVar(&c.Timeout)
	app.Flag("enable-backend", "Enabled backends, repeat for multiple.").Default(string(model.BackendLocal), string(model.BackendDocker), string(model.BackendProcess)).
		EnumsVar(&c.Backends, string(model.BackendLocal), string(model.BackendDocker), string(model.BackendProcess))
	app.Flag("local-host", "Host used on the URLs of local and process sandboxes.").Default("127.0.0.1").StringVar(&c.LocalHost)
	app.Flag("docker-host", "Host Docker sandbox ports are published on.").Default("127.0.0.1").StringVar(&c.DockerHost)

	return c
}

// withTimeout bounds the command context with the global timeout.
func (r *RootCommand) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.Timeout)
}

// stores are the storage instances shared by the commands.
type stores struct {
	sandboxes storage.Repository
	tasks     storage.TaskRepository
	// schemaVersion is only set for storages with versioned schemas.
	schemaVersion func(ctx context.Context) (uint, bool, error)
	close         func() error
}

func (r *RootCommand) openStores(ctx context.Context) (*stores, error) {
	switch r.Storage {
	case storageMemory:
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: r.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create memory repository: %w", err)
		}
		return &stores{sandboxes: repo, tasks: repo, close: func() error { return nil }}, nil

	case storagePostgres:
		repo, err := postgres.NewRepository(ctx, postgres.RepositoryConfig{DSN: r.PostgresDSN, Logger: r.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create postgres repository: %w", err)
		}
		return &stores{sandboxes: repo, tasks: repo, close: repo.Close}, nil

	default:
		repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: r.DBPath, Logger: r.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create sqlite repository: %w", err)
		}
		tasks, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{DB: repo.DB(), Logger: r.Logger})
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("could not create sqlite task repository: %w", err)
		}
		migrator, err := migrations.NewMigrator(repo.DB(), r.Logger)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("could not create migrator: %w", err)
		}
		return &stores{sandboxes: repo, tasks: tasks, schemaVersion: migrator.Version, close: repo.Close}, nil
	}
}

// newRegistry registers the enabled backends. Runtimes are created on first use.
func (r *RootCommand) newRegistry() (*runtime.Registry, error) {
	reg, err := runtime.NewRegistry(runtime.RegistryConfig{Logger: r.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create registry: %w", err)
	}

	for _, b := range r.Backends {
		switch backend := model.Backend(b); backend {
		case model.BackendLocal:
			reg.Register(backend, func() (runtime.Runtime, error) {
				return local.NewRuntime(local.RuntimeConfig{Host: r.LocalHost, Logger: r.Logger})
			})
		case model.BackendDocker:
			reg.Register(backend, func() (runtime.Runtime, error) {
				return docker.NewRuntime(docker.RuntimeConfig{PublishHost: r.DockerHost, Logger: r.Logger})
			})
		case model.BackendProcess:
			reg.Register(backend, func() (runtime.Runtime, error) {
				return process.NewRuntime(process.RuntimeConfig{Host: r.LocalHost, InheritEnv: true, Logger: r.Logger})
			})
		default:
			return nil, fmt.Errorf("backend %q has no runtime: %w", backend, model.ErrUnregisteredBackend)
		}
	}

	return reg, nil
}

func (r *RootCommand) newLifecycle(st *stores, reg *runtime.Registry, rec metrics.Recorder) (*lifecycle.Service, error) {
	svc, err := lifecycle.NewService(lifecycle.ServiceConfig{
		Runtimes:   reg,
		Repository: st.sandboxes,
		Metrics:    rec,
		Logger:     r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create lifecycle service: %w", err)
	}
	return svc, nil
}

// withLifecycle opens the storage, builds the lifecycle service and runs f with it.
func (r *RootCommand) withLifecycle(ctx context.Context, f func(ctx context.Context, svc *lifecycle.Service) error) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	st, err := r.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	reg, err := r.newRegistry()
	if err != nil {
		return err
	}

	svc, err := r.newLifecycle(st, reg, nil)
	if err != nil {
		return err
	}

	return f(ctx, svc)
}

func (r *RootCommand) printer(format string) printer.Printer {
	if format == formatJSON {
		return printer.NewJSONPrinter(r.Stdout)
	}
	return printer.NewTablePrinter(r.Stdout)
}
