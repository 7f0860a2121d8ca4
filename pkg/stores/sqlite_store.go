package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a cook does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: is a separate database.
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime = 1, 1, 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	if s.cfg.Path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// RecordCookStarted inserts a cook. An empty Result is stored as working.
func (s *SQLiteStore) RecordCookStarted(ctx context.Context, cook *Cook) error {
	if cook.ID == "" {
		return fmt.Errorf("cook id is required")
	}
	if cook.Result == "" {
		cook.Result = ResultWorking
	}
	if cook.StartedAt.IsZero() {
		cook.StartedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO cooks (id, asset_name, node_id, started_at, state, result, cook_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		cook.ID,
		cook.AssetName,
		cook.NodeID,
		cook.StartedAt.UTC(),
		cook.State,
		cook.Result,
		cook.CookCount,
	)
	if err != nil {
		return fmt.Errorf("failed to record cook start: %w", err)
	}
	return nil
}

// RecordCookCompleted closes a cook and stores its duration.
func (s *SQLiteStore) RecordCookCompleted(ctx context.Context, id string, c CookCompletion) error {
	var started time.Time
	err := s.db.QueryRowContext(ctx, `SELECT started_at FROM cooks WHERE id = ?`, id).Scan(&started)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("cook %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get cook: %w", err)
	}

	now := time.Now().UTC()
	query := `
		UPDATE cooks
		SET completed_at = ?, state = ?, result = ?, duration_ms = ?, cook_count = ?, cook_log = ?, error = ?
		WHERE id = ?
	`
	_, err = s.db.ExecContext(ctx, query,
		now,
		c.State,
		c.Result,
		now.Sub(started).Milliseconds(),
		c.CookCount,
		c.CookLog,
		c.Error,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to record cook completion: %w", err)
	}
	return nil
}

const cookColumns = `id, asset_name, node_id, started_at, completed_at, state, result, duration_ms, cook_count, cook_log, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanCook(row scanner) (*Cook, error) {
	c := &Cook{}
	err := row.Scan(
		&c.ID,
		&c.AssetName,
		&c.NodeID,
		&c.StartedAt,
		&c.CompletedAt,
		&c.State,
		&c.Result,
		&c.DurationMS,
		&c.CookCount,
		&c.CookLog,
		&c.Error,
	)
	return c, err
}

// GetCook retrieves a cook by ID
func (s *SQLiteStore) GetCook(ctx context.Context, id string) (*Cook, error) {
	c, err := scanCook(s.db.QueryRowContext(ctx, `SELECT `+cookColumns+` FROM cooks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cook %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cook: %w", err)
	}
	return c, nil
}

// ListCooks lists cooks, newest first.
func (s *SQLiteStore) ListCooks(ctx context.Context, filter CookFilter) ([]*Cook, error) {
	var (
		where []string
		args  []any
	)
	if filter.AssetName != nil {
		where = append(where, "asset_name = ?")
		args = append(args, *filter.AssetName)
	}
	if filter.Result != nil {
		where = append(where, "result = ?")
		args = append(args, *filter.Result)
	}
	if filter.Since != nil {
		where = append(where, "started_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := `SELECT ` + cookColumns + ` FROM cooks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id LIMIT ? OFFSET ?"
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cooks: %w", err)
	}
	defer rows.Close()

	cooks := []*Cook{}
	for rows.Next() {
		c, err := scanCook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cook: %w", err)
		}
		cooks = append(cooks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cooks: %w", err)
	}
	return cooks, nil
}

// PruneCooks deletes cooks started before olderThan and returns how many were removed.
func (s *SQLiteStore) PruneCooks(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cooks WHERE started_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cooks: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// RecordTransition appends a state transition and sets its ID.
func (s *SQLiteStore) RecordTransition(ctx context.Context, t *Transition) error {
	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}
	query := `
		INSERT INTO state_transitions (asset_name, from_state, to_state, result, at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, t.AssetName, t.FromState, t.ToState, t.Result, t.At.UTC())
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get transition id: %w", err)
	}
	t.ID = id
	return nil
}

// ListTransitions returns an asset's transitions in the order they happened. A
// positive limit keeps only the most recent ones.
func (s *SQLiteStore) ListTransitions(ctx context.Context, assetName string, limit int) ([]*Transition, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, asset_name, from_state, to_state, result, at FROM (
			SELECT id, asset_name, from_state, to_state, result, at
			FROM state_transitions
			WHERE asset_name = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, assetName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	out := []*Transition{}
	for rows.Next() {
		t := &Transition{}
		if err := rows.Scan(&t.ID, &t.AssetName, &t.FromState, &t.ToState, &t.Result, &t.At); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}
	return out, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
