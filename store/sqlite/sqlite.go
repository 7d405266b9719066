/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.Store, leave.EmployeeStore and leave.TxRepository on one
  SQLite database, plus the settings table the HTTP layer keeps the roster in.

INTERFACES IMPLEMENTED:
  ledger.Store:        Ledger entries (append, keyed upsert, query, count)
  leave.EmployeeStore: Employee leave config, legacy fields, cached balance
  leave.TxRepository:  WithTx over all of the above

APPEND-ONLY ENFORCEMENT:
  - No DELETE statements on ledger_entries
  - The only UPDATE is the ON CONFLICT branch of the keyed upsert, which
    replaces the amount of an OPENING, ACCRUAL or CARRYOVER entry

KEY TABLES:
  ledger_entries: Signed-minute entries, insertion order by seq
  employees:      Leave config, legacy balance fields, cached balance
  settings:       Key/value JSON documents (workshop roster)

INDEXES:
  - idx_ledger_entries_key: UNIQUE (employee_id, entry_type, period_key) for
    the idempotent types only. TAKEN and ADJUSTMENT may repeat.
  - idx_ledger_entries_employee: per-employee scans (hot path)
  - idx_ledger_entries_request: leave request lookups

CONCURRENCY:
  sync.RWMutex around the *sql.DB, and one open connection so that
  ":memory:" databases are shared by every call. WithTx holds the write lock
  for the duration of the unit of work.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := leave.NewService(store, ledger.SystemClock{}, logger)

MIGRATION:
  Schema is auto-migrated on New().
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/leave-ledger/leave"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
	q  queries

	// now stamps employee and settings rows. Entries carry their own times.
	now func() time.Time
}

var (
	_ leave.TxRepository = (*Store)(nil)
	_ leave.Repository   = queries{}
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	now := func() time.Time { return time.Now().UTC() }
	store := &Store{db: db, q: queries{q: db, now: now}, now: now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Ledger entries (append-only, keyed upsert for idempotent types)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		amount_minutes INTEGER NOT NULL,
		period_key TEXT NOT NULL DEFAULT '',
		leave_request_id TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		updated_at TEXT
	);

	-- CRITICAL: one OPENING per employee, one ACCRUAL per month, one
	-- CARRYOVER per year
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_key
		ON ledger_entries(employee_id, entry_type, period_key)
		WHERE entry_type IN ('OPENING', 'ACCRUAL', 'CARRYOVER');

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_employee
		ON ledger_entries(employee_id, seq);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_request
		ON ledger_entries(employee_id, leave_request_id) WHERE leave_request_id <> '';

	-- Employees (leave config + cached balance projection)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		hours_per_day TEXT NOT NULL DEFAULT '0',
		annual_entitlement_minutes INTEGER,
		annual_entitlement_days TEXT,
		employment_start TEXT,
		employment_end TEXT,
		ledger_start TEXT,
		unit TEXT NOT NULL DEFAULT 'HOURS',
		legacy_vacation_minutes INTEGER NOT NULL DEFAULT 0,
		legacy_carryover_minutes INTEGER NOT NULL DEFAULT 0,
		cached_legal_minutes INTEGER NOT NULL DEFAULT 0,
		cached_extra_minutes INTEGER NOT NULL DEFAULT 0,
		cached_carryover_minutes INTEGER NOT NULL DEFAULT 0,
		cached_unit TEXT NOT NULL DEFAULT 'HOURS',
		cached_legal TEXT NOT NULL DEFAULT '0',
		cached_extra TEXT NOT NULL DEFAULT '0',
		cached_carryover TEXT NOT NULL DEFAULT '0',
		cached_synced_at TEXT,
		created_at TEXT NOT NULL
	);

	-- Settings (JSON documents by key)
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxRepository interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(repo leave.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{q: sqlTx, now: s.now}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// querier is the subset of *sql.DB and *sql.Tx the queries need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries runs every statement against either the database or one
// transaction. The transactional view handed to WithTx callbacks is a
// queries over the *sql.Tx and takes no locks.
type queries struct {
	q   querier
	now func() time.Time
}

// =============================================================================
// HELPERS
// =============================================================================

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
