package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var schemaMigrations = []struct {
	version  int
	filename string
}{
	{1, "migrations/001_sandboxes.up.sql"},
	{2, "migrations/002_tasks.up.sql"},
}

const uniqueViolation = "23505"

// RepositoryConfig is the configuration for the PostgreSQL repository.
type RepositoryConfig struct {
	DSN    string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Postgres"})
	return nil
}

// Repository is a PostgreSQL implementation of storage.Repository and storage.TaskRepository.
type Repository struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewRepository connects to the database and migrates the schema.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not ping database: %w", err)
	}

	r := &Repository{pool: pool, logger: cfg.Logger}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("PostgreSQL repository initialized")
	return r, nil
}

// Close closes the connection pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sbxhub_schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("could not create migrations table: %w", err)
	}

	var current int
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM sbxhub_schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("could not get current migration version: %w", err)
	}

	for _, m := range schemaMigrations {
		if current >= m.version {
			continue
		}
		if err := r.applyMigration(ctx, m.version, m.filename); err != nil {
			return err
		}
		r.logger.Infof("Applied schema migration %03d", m.version)
	}

	return nil
}

func (r *Repository) applyMigration(ctx context.Context, version int, filename string) error {
	sql, err := migrationsFS.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("could not read migration file %s: %w", filename, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("could not begin transaction for migration %03d: %w", version, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("could not apply migration %03d: %w", version, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO sbxhub_schema_migrations (version) VALUES ($1)`, version); err != nil {
		return fmt.Errorf("could not record migration %03d: %w", version, err)
	}

	return tx.Commit(ctx)
}

const sandboxColumns = `id, name, backend, status, spec, exposed_urls, metadata, error,
	created_at, updated_at, started_at, stopped_at`

// CreateSandbox creates a new sandbox in the repository.
func (r *Repository) CreateSandbox(ctx context.Context, s model.Sandbox) error {
	spec, urls, err := marshalSandbox(s)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO sandboxes (`+sandboxColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.Name, string(s.Backend), string(s.Status), spec, urls, s.Metadata, s.Error,
		s.CreatedAt.UnixNano(), s.UpdatedAt.UnixNano(), unixNanoPtr(s.StartedAt), unixNanoPtr(s.StoppedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sandbox already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert sandbox: %w", err)
	}

	r.logger.Debugf("Created sandbox in repository: %s", s.ID)
	return nil
}

// GetSandbox retrieves a sandbox by ID.
func (r *Repository) GetSandbox(ctx context.Context, id string) (*model.Sandbox, error) {
	s, err := scanSandbox(r.pool.QueryRow(ctx, `SELECT `+sandboxColumns+` FROM sandboxes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query sandbox: %w", err)
	}
	return s, nil
}

// GetSandboxByName retrieves a sandbox by name.
func (r *Repository) GetSandboxByName(ctx context.Context, name string) (*model.Sandbox, error) {
	s, err := scanSandbox(r.pool.QueryRow(ctx, `SELECT `+sandboxColumns+` FROM sandboxes WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sandbox with name %s: %w", name, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query sandbox: %w", err)
	}
	return s, nil
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
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Backend != nil {
		where = append(where, "backend = "+arg(string(*filter.Backend)))
	}
	if filter.Status != nil {
		where = append(where, "status = "+arg(string(*filter.Status)))
	}
	if cursor != nil {
		nanos := arg(cursor.CreatedAt.UnixNano())
		where = append(where, fmt.Sprintf("(created_at > %s OR (created_at = %s AND id COLLATE \"C\" > %s))", nanos, nanos, arg(cursor.ID)))
	}

	query := `SELECT ` + sandboxColumns + ` FROM sandboxes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	// One more to know if there is a next page.
	query += ` ORDER BY created_at ASC, id COLLATE "C" ASC LIMIT ` + arg(page.Size+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query sandboxes: %w", err)
	}
	defer rows.Close()

	sandboxes := []model.Sandbox{}
	for rows.Next() {
		s, err := scanSandbox(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		sandboxes = append(sandboxes, *s)
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
	spec, urls, err := marshalSandbox(s)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE sandboxes SET
			name = $1, backend = $2, status = $3, spec = $4, exposed_urls = $5, metadata = $6, error = $7,
			created_at = $8, updated_at = $9, started_at = $10, stopped_at = $11
		WHERE id = $12`,
		s.Name, string(s.Backend), string(s.Status), spec, urls, s.Metadata, s.Error,
		s.CreatedAt.UnixNano(), s.UpdatedAt.UnixNano(), unixNanoPtr(s.StartedAt), unixNanoPtr(s.StoppedAt),
		s.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sandbox name already used: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not update sandbox: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sandbox %s: %w", s.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated sandbox in repository: %s", s.ID)
	return nil
}

// DeleteSandbox deletes a sandbox.
func (r *Repository) DeleteSandbox(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sandboxes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("could not delete sandbox: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted sandbox from repository: %s", id)
	return nil
}

func marshalSandbox(s model.Sandbox) (spec, urls []byte, err error) {
	spec, err = json.Marshal(s.Spec)
	if err != nil {
		return nil, nil, fmt.Errorf("could not marshal spec: %w", err)
	}

	exposed := s.ExposedURLs
	if exposed == nil {
		exposed = []model.ExposedURL{}
	}
	urls, err = json.Marshal(exposed)
	if err != nil {
		return nil, nil, fmt.Errorf("could not marshal exposed urls: %w", err)
	}

	return spec, urls, nil
}

func scanSandbox(row pgx.Row) (*model.Sandbox, error) {
	var (
		s                    model.Sandbox
		backend, status      string
		spec, urls           []byte
		createdAt, updatedAt int64
		startedAt, stoppedAt *int64
	)
	err := row.Scan(
		&s.ID, &s.Name, &backend, &status, &spec, &urls, &s.Metadata, &s.Error,
		&createdAt, &updatedAt, &startedAt, &stoppedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Backend = model.Backend(backend)
	s.Status = model.SandboxStatus(status)
	if err := json.Unmarshal(spec, &s.Spec); err != nil {
		return nil, fmt.Errorf("could not unmarshal spec: %w", err)
	}
	if err := json.Unmarshal(urls, &s.ExposedURLs); err != nil {
		return nil, fmt.Errorf("could not unmarshal exposed urls: %w", err)
	}
	if len(s.ExposedURLs) == 0 {
		s.ExposedURLs = nil
	}
	if len(s.Metadata) == 0 {
		s.Metadata = nil
	}

	s.CreatedAt = timeFromUnixNano(createdAt)
	s.UpdatedAt = timeFromUnixNano(updatedAt)
	s.StartedAt = timePtrFromUnixNano(startedAt)
	s.StoppedAt = timePtrFromUnixNano(stoppedAt)

	return &s, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func unixNanoPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	n := t.UnixNano()
	return &n
}

func timeFromUnixNano(n int64) time.Time { return time.Unix(0, n).UTC() }

func timePtrFromUnixNano(n *int64) *time.Time {
	if n == nil {
		return nil
	}
	t := timeFromUnixNano(*n)
	return &t
}
