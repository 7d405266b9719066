// Package leave implements the leave workflows on top of the ledger: opening
// balance seeding, monthly accrual, carryover, cached balance sync, and the
// approval / adjustment entry points that run them inside one transaction.
package leave

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/roster"
)

// =============================================================================
// DISPLAY UNIT
// =============================================================================

// Unit is the employee's display unit. Ledger storage is always minutes.
type Unit string

const (
	UnitDays  Unit = "DAYS"
	UnitHours Unit = "HOURS"
)

func (u Unit) Valid() bool { return u == UnitDays || u == UnitHours }

// =============================================================================
// EMPLOYEE LEAVE CONFIG (read-only to this package)
// =============================================================================

// Config is the per-employee leave configuration.
type Config struct {
	HoursPerDay decimal.Decimal

	// Entitlement in minutes, or in days converted through HoursPerDay.
	// Minutes wins when both are set.
	AnnualEntitlementMinutes *int64
	AnnualEntitlementDays    *decimal.Decimal

	EmploymentStart *time.Time
	EmploymentEnd   *time.Time

	// LedgerStart overrides the engine-wide ledger start for this employee.
	LedgerStart *time.Time

	Unit Unit
}

// EntitlementMinutes resolves the annual entitlement in minutes.
func (c Config) EntitlementMinutes(employeeID ledger.EmployeeID) (int64, error) {
	if c.AnnualEntitlementMinutes != nil {
		if *c.AnnualEntitlementMinutes <= 0 {
			return 0, &ledger.MissingLeaveConfigError{EmployeeID: employeeID, Field: "annual_entitlement_minutes"}
		}
		return *c.AnnualEntitlementMinutes, nil
	}
	if c.AnnualEntitlementDays != nil && c.AnnualEntitlementDays.IsPositive() {
		if !c.HoursPerDay.IsPositive() {
			return 0, &ledger.MissingLeaveConfigError{EmployeeID: employeeID, Field: "hours_per_day"}
		}
		return DaysToMinutes(*c.AnnualEntitlementDays, c.HoursPerDay), nil
	}
	return 0, &ledger.MissingLeaveConfigError{EmployeeID: employeeID, Field: "annual_entitlement"}
}

// =============================================================================
// EMPLOYEE RECORD
// =============================================================================

// Employee is the slice of the employee record the leave core reads and the
// cache it writes.
type Employee struct {
	ID     ledger.EmployeeID
	Name   string
	Config Config

	// Flat balance fields from before the ledger. Read once by the seeder.
	LegacyVacationMinutes  int64
	LegacyCarryoverMinutes int64

	Cached    CachedBalance
	CreatedAt time.Time
}

// CachedBalance is the denormalized projection on the employee record.
// Legal + Extra + Carryover always equals the ledger balance at SyncedAt.
type CachedBalance struct {
	LegalMinutes     int64
	ExtraMinutes     int64
	CarryoverMinutes int64

	Unit      Unit
	Legal     decimal.Decimal
	Extra     decimal.Decimal
	Carryover decimal.Decimal

	SyncedAt time.Time
}

// TotalMinutes is the cached balance.
func (c CachedBalance) TotalMinutes() int64 {
	return c.LegalMinutes + c.ExtraMinutes + c.CarryoverMinutes
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// LeaveRequest is the approved span to charge against the ledger.
type LeaveRequest struct {
	ID         string
	EmployeeID ledger.EmployeeID
	StartDate  time.Time
	EndDate    time.Time
	StartTime  *roster.Clock // nil: roster start on the first day
	EndTime    *roster.Clock // nil: roster end on the last day
	Notes      string
}

// Approval is the outcome of ApproveLeave.
type Approval struct {
	RequestID       string
	Minutes         int
	Entry           *ledger.Entry // nil when the span covers no working time
	Summary         ledger.Summary
	Negative        bool // balance below zero after approval; needs a manager override elsewhere
	AlreadyApproved bool
}

// Preview is the projected effect of a request, without writing it.
type Preview struct {
	Minutes         int
	BalanceBefore   int64
	BalanceAfter    int64
	WouldBeNegative bool
}

// BalanceView is what a balance inquiry returns.
type BalanceView struct {
	EmployeeID ledger.EmployeeID
	Summary    *ledger.Summary // set for fresh reads
	Cached     CachedBalance
	Fresh      bool
	FromLegacy bool // never synced; Cached is projected from the legacy fields
}
