package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/warp/leave-ledger/ledger"
)

// =============================================================================
// LEDGER ENTRY STORE (ledger.Store interface)
// =============================================================================

const entryColumns = `id, employee_id, entry_type, amount_minutes, period_key,
	leave_request_id, created_by, created_at, notes, updated_at`

// Append adds an entry to the ledger.
func (s *Store) Append(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Append(ctx, e)
}

// Upsert inserts a keyed entry or replaces the stored amount.
func (s *Store) Upsert(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Upsert(ctx, e)
}

// Query returns the employee's entries in insertion order.
func (s *Store) Query(ctx context.Context, employeeID ledger.EmployeeID, f ledger.Filter) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.Query(ctx, employeeID, f)
}

// Count returns the number of entries for the employee.
func (s *Store) Count(ctx context.Context, employeeID ledger.EmployeeID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.Count(ctx, employeeID)
}

func (q queries) Append(ctx context.Context, e ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.q.ExecContext(ctx, query, entryArgs(e)...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &ledger.DuplicateKeyError{Key: e.Key()}
		}
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

func (q queries) Upsert(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	if !e.Type.Idempotent() {
		return ledger.Entry{}, fmt.Errorf("upsert %s: %w", e.Type, ledger.ErrNotKeyed)
	}

	// The conflict target names the partial unique index, so the WHERE
	// clause must repeat its predicate.
	query := `
		INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, entry_type, period_key)
			WHERE entry_type IN ('OPENING', 'ACCRUAL', 'CARRYOVER')
		DO UPDATE SET
			amount_minutes = excluded.amount_minutes,
			notes = excluded.notes,
			created_by = excluded.created_by,
			leave_request_id = excluded.leave_request_id,
			updated_at = excluded.created_at
	`
	if _, err := q.q.ExecContext(ctx, query, entryArgs(e)...); err != nil {
		return ledger.Entry{}, fmt.Errorf("failed to upsert entry: %w", err)
	}

	row := q.q.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE employee_id = ? AND entry_type = ? AND period_key = ?
	`, e.EmployeeID, e.Type, e.PeriodKey)
	stored, err := scanEntry(row)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("failed to read upserted entry: %w", err)
	}
	return stored, nil
}

func (q queries) Query(ctx context.Context, employeeID ledger.EmployeeID, f ledger.Filter) ([]ledger.Entry, error) {
	where := []string{"employee_id = ?"}
	args := []any{employeeID}

	if len(f.Types) > 0 {
		placeholders := make([]string, len(f.Types))
		for i, t := range f.Types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		where = append(where, "entry_type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if f.PeriodPrefix != "" {
		where = append(where, "substr(period_key, 1, length(?)) = ?")
		args = append(args, f.PeriodPrefix, f.PeriodPrefix)
	}
	if f.LeaveRequestID != "" {
		where = append(where, "leave_request_id = ?")
		args = append(args, f.LeaveRequestID)
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq ASC`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q queries) Count(ctx context.Context, employeeID ledger.EmployeeID) (int, error) {
	var count int
	err := q.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE employee_id = ?",
		employeeID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func entryArgs(e ledger.Entry) []any {
	return []any{
		e.ID,
		e.EmployeeID,
		e.Type,
		e.AmountMinutes,
		e.PeriodKey,
		e.LeaveRequestID,
		e.CreatedBy,
		formatTime(e.CreatedAt),
		e.Notes,
		nullTime(&e.UpdatedAt),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (ledger.Entry, error) {
	var (
		e         ledger.Entry
		createdAt string
		updatedAt sql.NullString
	)
	err := row.Scan(
		&e.ID, &e.EmployeeID, &e.Type, &e.AmountMinutes, &e.PeriodKey,
		&e.LeaveRequestID, &e.CreatedBy, &createdAt, &e.Notes, &updatedAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return e, err
	}
	if t, err := parseNullTime(updatedAt); err != nil {
		return e, err
	} else if t != nil {
		e.UpdatedAt = *t
	}
	return e, nil
}
