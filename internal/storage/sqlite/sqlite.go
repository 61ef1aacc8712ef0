package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
	"github.com/slok/sbxhub/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.Repository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// DB returns the underlying database, used to share it with the task repository.
func (r *Repository) DB() *sql.DB { return r.db }

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

const sandboxColumns = `
	id, name, backend, status,
	spec, exposed_urls, metadata, error,
	created_at, updated_at, started_at, stopped_at
`

// CreateSandbox creates a new sandbox in the repository.
func (r *Repository) CreateSandbox(ctx context.Context, s model.Sandbox) error {
	row, err := newSandboxRow(s)
	if err != nil {
		return err
	}

	query := `INSERT INTO sandboxes (` + sandboxColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		row.id, row.name, row.backend, row.status,
		row.spec, row.exposedURLs, row.metadata, row.err,
		row.createdAt, row.updatedAt, row.startedAt, row.stoppedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: sandboxes.") {
			return fmt.Errorf("sandbox already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert sandbox: %w", err)
	}

	r.logger.Debugf("Created sandbox in repository: %s", s.ID)
	return nil
}

// GetSandbox retrieves a sandbox by ID.
func (r *Repository) GetSandbox(ctx context.Context, id string) (*model.Sandbox, error) {
	query := `SELECT ` + sandboxColumns + ` FROM sandboxes WHERE id = ?`

	sandbox, err := scanSandbox(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query sandbox: %w", err)
	}

	return &sandbox, nil
}

// GetSandboxByName retrieves a sandbox by name.
func (r *Repository) GetSandboxByName(ctx context.Context, name string) (*model.Sandbox, error) {
	query := `SELECT ` + sandboxColumns + ` FROM sandboxes WHERE name = ?`

	sandbox, err := scanSandbox(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sandbox with name %s: %w", name, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query sandbox: %w", err)
	}

	return &sandbox, nil
}

// ListSandboxes returns a page of the sandboxes matching the filter using keyset pagination.
func (r *Repository) ListSandboxes(ctx context.Context, filter model.SandboxFilter, page model.PageRequest) (*model.Page, error) {
	page = page.Normalize()
	cursor, err := model.DecodePageToken(page.Token)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.Backend != nil {
		where = append(where, "backend = ?")
		args = append(args, string(*filter.Backend))
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if cursor != nil {
		nanos := cursor.CreatedAt.UnixNano()
		where = append(where, "(created_at > ? OR (created_at = ? AND id > ?))")
		args = append(args, nanos, nanos, cursor.ID)
	}

	query := `SELECT ` + sandboxColumns + ` FROM sandboxes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	// One more to know if there is a next page.
	args = append(args, page.Size+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query sandboxes: %w", err)
	}
	defer rows.Close()

	sandboxes := []model.Sandbox{}
	for rows.Next() {
		sandbox, err := scanSandbox(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		sandboxes = append(sandboxes, sandbox)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	result := &model.Page{Items: sandboxes}
	if len(sandboxes) > page.Size {
		result.Items = sandboxes[:page.Size]
		result.NextToken = model.CursorFor(result.Items[page.Size-1]).Encode()
	}

	return result, nil
}

// UpdateSandbox updates an existing sandbox.
func (r *Repository) UpdateSandbox(ctx context.Context, s model.Sandbox) error {
	row, err := newSandboxRow(s)
	if err != nil {
		return err
	}

	query := `
		UPDATE sandboxes
		SET
			name = ?,
			backend = ?,
			status = ?,
			spec = ?,
			exposed_urls = ?,
			metadata = ?,
			error = ?,
			created_at = ?,
			updated_at = ?,
			started_at = ?,
			stopped_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		row.name, row.backend, row.status,
		row.spec, row.exposedURLs, row.metadata, row.err,
		row.createdAt, row.updatedAt, row.startedAt, row.stoppedAt,
		row.id,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: sandboxes.") {
			return fmt.Errorf("sandbox name already used: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not update sandbox: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sandbox %s: %w", s.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated sandbox in repository: %s", s.ID)
	return nil
}

// DeleteSandbox deletes a sandbox.
func (r *Repository) DeleteSandbox(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sandboxes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete sandbox: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted sandbox from repository: %s", id)
	return nil
}

// sandboxRow is the sandbox as stored in the sandboxes table.
type sandboxRow struct {
	id, name, backend, status string
	spec, exposedURLs         string
	metadata                  []byte
	err                       string
	createdAt, updatedAt      int64
	startedAt, stoppedAt      *int64
}

func newSandboxRow(s model.Sandbox) (*sandboxRow, error) {
	spec, err := json.Marshal(s.Spec)
	if err != nil {
		return nil, fmt.Errorf("could not marshal spec: %w", err)
	}

	urls := s.ExposedURLs
	if urls == nil {
		urls = []model.ExposedURL{}
	}
	exposedURLs, err := json.Marshal(urls)
	if err != nil {
		return nil, fmt.Errorf("could not marshal exposed urls: %w", err)
	}

	return &sandboxRow{
		id:          s.ID,
		name:        s.Name,
		backend:     string(s.Backend),
		status:      string(s.Status),
		spec:        string(spec),
		exposedURLs: string(exposedURLs),
		metadata:    s.Metadata,
		err:         s.Error,
		createdAt:   s.CreatedAt.UnixNano(),
		updatedAt:   s.UpdatedAt.UnixNano(),
		startedAt:   unixNanoPtr(s.StartedAt),
		stoppedAt:   unixNanoPtr(s.StoppedAt),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSandbox(s scanner) (model.Sandbox, error) {
	var (
		sandbox              model.Sandbox
		backend, status      string
		spec, exposedURLs    string
		createdAt, updatedAt int64
		startedAt, stoppedAt sql.NullInt64
	)

	err := s.Scan(
		&sandbox.ID,
		&sandbox.Name,
		&backend,
		&status,
		&spec,
		&exposedURLs,
		&sandbox.Metadata,
		&sandbox.Error,
		&createdAt,
		&updatedAt,
		&startedAt,
		&stoppedAt,
	)
	if err != nil {
		return model.Sandbox{}, err
	}

	sandbox.Backend = model.Backend(backend)
	sandbox.Status = model.SandboxStatus(status)

	if err := json.Unmarshal([]byte(spec), &sandbox.Spec); err != nil {
		return model.Sandbox{}, fmt.Errorf("could not unmarshal spec: %w", err)
	}
	if err := json.Unmarshal([]byte(exposedURLs), &sandbox.ExposedURLs); err != nil {
		return model.Sandbox{}, fmt.Errorf("could not unmarshal exposed urls: %w", err)
	}
	if len(sandbox.ExposedURLs) == 0 {
		sandbox.ExposedURLs = nil
	}
	if len(sandbox.Metadata) == 0 {
		sandbox.Metadata = nil
	}

	sandbox.CreatedAt = timeFromUnixNano(createdAt)
	sandbox.UpdatedAt = timeFromUnixNano(updatedAt)
	if startedAt.Valid {
		t := timeFromUnixNano(startedAt.Int64)
		sandbox.StartedAt = &t
	}
	if stoppedAt.Valid {
		t := timeFromUnixNano(stoppedAt.Int64)
		sandbox.StoppedAt = &t
	}

	return sandbox, nil
}

func unixNanoPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	n := t.UnixNano()
	return &n
}

func timeFromUnixNano(n int64) time.Time { return time.Unix(0, n).UTC() }
