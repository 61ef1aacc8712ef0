package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/sbxhub/internal/app/lifecycle"
	"github.com/slok/sbxhub/internal/app/task"
	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
	"github.com/slok/sbxhub/internal/runtime"
	"github.com/slok/sbxhub/internal/runtime/docker"
	"github.com/slok/sbxhub/internal/runtime/local"
	"github.com/slok/sbxhub/internal/runtime/process"
	"github.com/slok/sbxhub/internal/storage"
	"github.com/slok/sbxhub/internal/storage/memory"
	"github.com/slok/sbxhub/internal/storage/sqlite"
)

const (
	defaultDataDir = ".sbxhub"
	defaultDBFile  = "sbxhub.db"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} stores the sandboxes on
// ~/.sbxhub/sbxhub.db and registers the local, docker and process backends.
type Config struct {
	// DBPath is the SQLite database path.
	// Default: ~/.sbxhub/sbxhub.db.
	DBPath string

	// InMemory stores everything in memory instead of SQLite, nothing survives
	// the client.
	InMemory bool

	// Backends are the backends registered on creation.
	// Default: local, docker and process.
	Backends []Backend

	// LocalHost is the host used on the URLs of local and process sandboxes.
	LocalHost string

	// DockerHost is the host Docker sandbox ports are published on.
	DockerHost string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.DBPath == "" && !c.InMemory {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DBPath = filepath.Join(home, defaultDataDir, defaultDBFile)
	}

	if c.Backends == nil {
		c.Backends = []Backend{BackendLocal, BackendDocker, BackendProcess}
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point for managing sandboxes programmatically.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	registry  *runtime.Registry
	lifecycle *lifecycle.Service
	tasks     *task.Service
	closeFn   func() error
}

// New creates a new SDK client.
//
// The caller must call [Client.Close] when done to release the database
// connection. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var (
		repo     storage.Repository
		taskRepo storage.TaskRepository
		closeFn  = func() error { return nil }
	)
	if cfg.InMemory {
		mem, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		repo, taskRepo = mem, mem
	} else {
		sq, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: cfg.DBPath, Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		tr, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{DB: sq.DB(), Logger: cfg.Logger})
		if err != nil {
			_ = sq.Close()
			return nil, fmt.Errorf("could not create task repository: %w", err)
		}
		repo, taskRepo, closeFn = sq, tr, sq.Close
	}

	reg, err := runtime.NewRegistry(runtime.RegistryConfig{Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create registry: %w", err)
	}
	for _, b := range cfg.Backends {
		factory, err := defaultFactory(b, cfg)
		if err != nil {
			_ = closeFn()
			return nil, err
		}
		reg.Register(b, factory)
	}

	lc, err := lifecycle.NewService(lifecycle.ServiceConfig{
		Runtimes:   reg,
		Repository: repo,
		Logger:     cfg.Logger,
	})
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("could not create lifecycle service: %w", err)
	}

	ts, err := task.NewService(task.ServiceConfig{Repository: taskRepo, Logger: cfg.Logger})
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("could not create task service: %w", err)
	}

	return &Client{
		registry:  reg,
		lifecycle: lc,
		tasks:     ts,
		closeFn:   closeFn,
	}, nil
}

func defaultFactory(b Backend, cfg Config) (RuntimeFactory, error) {
	switch b {
	case BackendLocal:
		return func() (runtime.Runtime, error) {
			return local.NewRuntime(local.RuntimeConfig{Host: cfg.LocalHost, Logger: cfg.Logger})
		}, nil
	case BackendDocker:
		return func() (runtime.Runtime, error) {
			return docker.NewRuntime(docker.RuntimeConfig{PublishHost: cfg.DockerHost, Logger: cfg.Logger})
		}, nil
	case BackendProcess:
		return func() (runtime.Runtime, error) {
			return process.NewRuntime(process.RuntimeConfig{Host: cfg.LocalHost, InheritEnv: true, Logger: cfg.Logger})
		}, nil
	}

	return nil, fmt.Errorf("backend %q has no default runtime, use RegisterBackend: %w", b, model.ErrUnregisteredBackend)
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// RegisterBackend registers the runtime factory of a backend, replacing the
// registered one if any.
func (c *Client) RegisterBackend(backend Backend, factory RuntimeFactory) {
	c.registry.Register(backend, factory)
}

// Backends returns the registered backends.
func (c *Client) Backends() []Backend {
	return c.registry.Backends()
}

// Doctor runs the preflight checks of the registered backends.
func (c *Client) Doctor(ctx context.Context) []CheckResult {
	return c.registry.Check(ctx)
}
