// Package sqlite implements the SQLite record store behind the unit of
// work. Entities are stored as JSON documents keyed by kind and key; field
// lookups use SQLite's json_extract.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/unhitch/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// DBFileName is the database file created inside Config.DataDir.
const DBFileName = "unhitch.db"

// Backend is a SQLite-backed record store. It satisfies tracker.Store.
type Backend struct {
	mu     sync.RWMutex
	open   bool
	config types.Config
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBackend creates a new SQLite backend instance.
// The backend is not open; call Open with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open validates config, creates DataDir if needed, opens the database, and
// applies the schema. Existing records are kept.
// Returns ErrAlreadyOpen if already open.
func (b *Backend) Open(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		return types.ErrAlreadyOpen
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("apply schema: %w", err)
	}

	b.db = db
	b.config = config
	b.open = true
	b.logger.Debug("store opened", "path", dbPath)
	return nil
}

// Close releases the database. Idempotent: multiple calls succeed.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	b.open = false
	db := b.db
	b.db = nil
	if err := db.Close(); err != nil {
		return err
	}
	b.logger.Debug("store closed")
	return nil
}

// Path returns the database file path, or "" when not open.
func (b *Backend) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return ""
	}
	dataDir := b.config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	return filepath.Join(dataDir, DBFileName)
}

// Apply writes a changeset in one transaction. Puts insert or replace
// records; deletes of missing records are ignored.
// Returns ErrStoreClosed if the backend is not open and ErrInvalidKey if a
// record has an empty kind or key.
func (b *Backend) Apply(ctx context.Context, changes types.Changeset) error {
	for _, rec := range changes.Puts {
		if rec.Kind == "" || rec.Key == "" {
			return types.ErrInvalidKey
		}
	}
	for _, ref := range changes.Deletes {
		if ref.Kind == "" || ref.Key == "" {
			return types.ErrInvalidKey
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return types.ErrStoreClosed
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range changes.Puts {
		updated := rec.UpdatedAt
		if updated.IsZero() {
			updated = time.Now()
		}
		if _, err := tx.ExecContext(ctx, upsertRecordSQL,
			rec.Kind, rec.Key, string(rec.Data), updated.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("put %s %s: %w", rec.Kind, rec.Key, err)
		}
	}
	for _, ref := range changes.Deletes {
		if _, err := tx.ExecContext(ctx, deleteRecordSQL, ref.Kind, ref.Key); err != nil {
			return fmt.Errorf("delete %s %s: %w", ref.Kind, ref.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	b.logger.Debug("changeset applied", "puts", len(changes.Puts), "deletes", len(changes.Deletes))
	return nil
}

// Get returns the record for kind and key.
// Returns ErrInvalidKey for empty arguments and ErrNotFound if absent.
func (b *Backend) Get(ctx context.Context, kind, key string) (types.Record, error) {
	if kind == "" || key == "" {
		return types.Record{}, types.ErrInvalidKey
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return types.Record{}, types.ErrStoreClosed
	}
	rec, err := scanRecord(b.db.QueryRowContext(ctx, selectRecordSQL, kind, key))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Record{}, fmt.Errorf("%w: %s %s", types.ErrNotFound, kind, key)
	}
	return rec, err
}

// List returns every record of kind ordered by key.
func (b *Backend) List(ctx context.Context, kind string) ([]types.Record, error) {
	return b.query(ctx, listRecordsSQL, kind)
}

// Find returns the records of kind whose top-level JSON field equals
// value, ordered by key.
// Returns ErrInvalidKey if field is not a plain identifier.
func (b *Backend) Find(ctx context.Context, kind, field string, value any) ([]types.Record, error) {
	if !validField.MatchString(field) {
		return nil, fmt.Errorf("%w: field %q", types.ErrInvalidKey, field)
	}
	return b.query(ctx, findRecordsSQL, kind, "$."+field, value)
}

// Count returns the number of records of kind.
func (b *Backend) Count(ctx context.Context, kind string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return 0, types.ErrStoreClosed
	}
	var n int
	if err := b.db.QueryRowContext(ctx, countRecordsSQL, kind).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (b *Backend) query(ctx context.Context, query string, args ...any) ([]types.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return nil, types.ErrStoreClosed
	}
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []types.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
