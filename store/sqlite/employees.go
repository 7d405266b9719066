package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/ledger"
)

// =============================================================================
// EMPLOYEE STORE (leave.EmployeeStore interface)
// =============================================================================

const employeeColumns = `id, name, hours_per_day, annual_entitlement_minutes,
	annual_entitlement_days, employment_start, employment_end, ledger_start, unit,
	legacy_vacation_minutes, legacy_carryover_minutes,
	cached_legal_minutes, cached_extra_minutes, cached_carryover_minutes,
	cached_unit, cached_legal, cached_extra, cached_carryover, cached_synced_at,
	created_at`

// CreateEmployee inserts a new employee.
func (s *Store) CreateEmployee(ctx context.Context, emp leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.CreateEmployee(ctx, emp)
}

// UpdateEmployee replaces the config and legacy fields of an existing
// employee. The cached balance is never touched here.
func (s *Store) UpdateEmployee(ctx context.Context, emp leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.UpdateEmployee(ctx, emp)
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id ledger.EmployeeID) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetEmployee(ctx, id)
}

// ListEmployees returns all employees ordered by id.
func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListEmployees(ctx)
}

// SaveCachedBalance overwrites the cached balance columns.
func (s *Store) SaveCachedBalance(ctx context.Context, id ledger.EmployeeID, c leave.CachedBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.SaveCachedBalance(ctx, id, c)
}

func (q queries) CreateEmployee(ctx context.Context, emp leave.Employee) error {
	query := `
		INSERT INTO employees (id, name, hours_per_day, annual_entitlement_minutes,
			annual_entitlement_days, employment_start, employment_end, ledger_start, unit,
			legacy_vacation_minutes, legacy_carryover_minutes, cached_unit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.q.ExecContext(ctx, query, q.employeeArgs(emp)...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("employee %s: %w", emp.ID, ledger.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

func (q queries) UpdateEmployee(ctx context.Context, emp leave.Employee) error {
	query := `
		UPDATE employees SET
			name = ?,
			hours_per_day = ?,
			annual_entitlement_minutes = ?,
			annual_entitlement_days = ?,
			employment_start = ?,
			employment_end = ?,
			ledger_start = ?,
			unit = ?,
			legacy_vacation_minutes = ?,
			legacy_carryover_minutes = ?
		WHERE id = ?
	`
	// employeeArgs order: id, the ten updatable columns, cached_unit, created_at
	args := append(q.employeeArgs(emp)[1:11:11], emp.ID)
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update employee: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &ledger.NotFoundError{EmployeeID: emp.ID}
	}
	return nil
}

func (q queries) employeeArgs(emp leave.Employee) []any {
	cfg := emp.Config

	var minutes sql.NullInt64
	if cfg.AnnualEntitlementMinutes != nil {
		minutes = sql.NullInt64{Int64: *cfg.AnnualEntitlementMinutes, Valid: true}
	}
	var days sql.NullString
	if cfg.AnnualEntitlementDays != nil {
		days = sql.NullString{String: cfg.AnnualEntitlementDays.String(), Valid: true}
	}
	unit := cfg.Unit
	if unit == "" {
		unit = leave.UnitHours
	}
	createdAt := emp.CreatedAt
	if createdAt.IsZero() {
		createdAt = q.now()
	}

	return []any{
		emp.ID,
		emp.Name,
		cfg.HoursPerDay.String(),
		minutes,
		days,
		nullTime(cfg.EmploymentStart),
		nullTime(cfg.EmploymentEnd),
		nullTime(cfg.LedgerStart),
		string(unit),
		emp.LegacyVacationMinutes,
		emp.LegacyCarryoverMinutes,
		string(unit),
		formatTime(createdAt),
	}
}

func (q queries) GetEmployee(ctx context.Context, id ledger.EmployeeID) (*leave.Employee, error) {
	row := q.q.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledger.NotFoundError{EmployeeID: id}
	}
	if err != nil {
		return nil, err
	}
	return emp, nil
}

func (q queries) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT "+employeeColumns+" FROM employees ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []leave.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *emp)
	}
	return employees, rows.Err()
}

func (q queries) SaveCachedBalance(ctx context.Context, id ledger.EmployeeID, c leave.CachedBalance) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE employees SET
			cached_legal_minutes = ?,
			cached_extra_minutes = ?,
			cached_carryover_minutes = ?,
			cached_unit = ?,
			cached_legal = ?,
			cached_extra = ?,
			cached_carryover = ?,
			cached_synced_at = ?
		WHERE id = ?
	`,
		c.LegalMinutes, c.ExtraMinutes, c.CarryoverMinutes,
		string(c.Unit), c.Legal.String(), c.Extra.String(), c.Carryover.String(),
		nullTime(&c.SyncedAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to save cached balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &ledger.NotFoundError{EmployeeID: id}
	}
	return nil
}

func scanEmployee(row scanner) (*leave.Employee, error) {
	var (
		emp                                  leave.Employee
		hoursPerDay                          string
		minutes                              sql.NullInt64
		days                                 sql.NullString
		start, end, ledgerStart              sql.NullString
		unit, cachedUnit                     string
		cachedLegal, cachedExtra, cachedCarr string
		syncedAt                             sql.NullString
		createdAt                            string
	)
	err := row.Scan(
		&emp.ID, &emp.Name, &hoursPerDay, &minutes,
		&days, &start, &end, &ledgerStart, &unit,
		&emp.LegacyVacationMinutes, &emp.LegacyCarryoverMinutes,
		&emp.Cached.LegalMinutes, &emp.Cached.ExtraMinutes, &emp.Cached.CarryoverMinutes,
		&cachedUnit, &cachedLegal, &cachedExtra, &cachedCarr, &syncedAt,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan employee: %w", err)
	}

	cfg := &emp.Config
	cfg.Unit = leave.Unit(unit)
	if cfg.HoursPerDay, err = decimal.NewFromString(hoursPerDay); err != nil {
		return nil, fmt.Errorf("employee %s hours_per_day: %w", emp.ID, err)
	}
	if minutes.Valid {
		m := minutes.Int64
		cfg.AnnualEntitlementMinutes = &m
	}
	if days.Valid {
		d, err := decimal.NewFromString(days.String)
		if err != nil {
			return nil, fmt.Errorf("employee %s annual_entitlement_days: %w", emp.ID, err)
		}
		cfg.AnnualEntitlementDays = &d
	}
	if cfg.EmploymentStart, err = parseNullTime(start); err != nil {
		return nil, err
	}
	if cfg.EmploymentEnd, err = parseNullTime(end); err != nil {
		return nil, err
	}
	if cfg.LedgerStart, err = parseNullTime(ledgerStart); err != nil {
		return nil, err
	}

	c := &emp.Cached
	c.Unit = leave.Unit(cachedUnit)
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&c.Legal, cachedLegal}, {&c.Extra, cachedExtra}, {&c.Carryover, cachedCarr}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return nil, fmt.Errorf("employee %s cached balance: %w", emp.ID, err)
		}
	}
	if t, err := parseNullTime(syncedAt); err != nil {
		return nil, err
	} else if t != nil {
		c.SyncedAt = *t
	}
	if emp.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &emp, nil
}
