package leave

import (
	"context"
	"fmt"

	"github.com/warp/leave-ledger/ledger"
)

// Synchronizer is the single writer of the cached balance on the employee
// record. Every workflow that changes the ledger calls it before commit.
//
// The cache splits the balance three ways:
//
//	Carryover = sum of CARRYOVER entries
//	Extra     = ADJUSTMENT entries not tied to a leave request (manual grants)
//	Legal     = everything else (opening, accrual, taken, cancellations)
type Synchronizer struct {
	Ledger    *ledger.Ledger
	Employees EmployeeStore
}

func NewSynchronizer(l *ledger.Ledger, employees EmployeeStore) *Synchronizer {
	return &Synchronizer{Ledger: l, Employees: employees}
}

// SyncCachedBalance recomputes the balance from the ledger and overwrites the
// cached fields. Returns the summary it wrote.
func (s *Synchronizer) SyncCachedBalance(ctx context.Context, employeeID ledger.EmployeeID) (ledger.Summary, error) {
	emp, err := s.Employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return ledger.Summary{}, err
	}

	entries, err := s.Ledger.QueryByEmployee(ctx, employeeID, ledger.Filter{})
	if err != nil {
		return ledger.Summary{}, fmt.Errorf("load entries: %w", err)
	}
	summary := ledger.Summarize(employeeID, entries)

	cached, err := Project(employeeID, summary, manualAdjustments(entries), emp.Config)
	if err != nil {
		return summary, err
	}
	cached.SyncedAt = s.Ledger.Clock.Now()

	if err := s.Employees.SaveCachedBalance(ctx, employeeID, cached); err != nil {
		return summary, fmt.Errorf("save cached balance: %w", err)
	}
	return summary, nil
}

// Project builds the cached balance from a summary. extraMinutes is the part
// of the balance that came from manual adjustments.
func Project(employeeID ledger.EmployeeID, summary ledger.Summary, extraMinutes int64, cfg Config) (CachedBalance, error) {
	unit := cfg.Unit
	if unit == "" {
		unit = UnitHours
	}
	c := CachedBalance{
		CarryoverMinutes: summary.CarryoverMinutes,
		ExtraMinutes:     extraMinutes,
		LegalMinutes:     summary.BalanceMinutes - summary.CarryoverMinutes - extraMinutes,
		Unit:             unit,
	}

	var err error
	if c.Legal, err = ToDisplay(employeeID, c.LegalMinutes, unit, cfg.HoursPerDay); err != nil {
		return CachedBalance{}, err
	}
	if c.Extra, err = ToDisplay(employeeID, c.ExtraMinutes, unit, cfg.HoursPerDay); err != nil {
		return CachedBalance{}, err
	}
	if c.Carryover, err = ToDisplay(employeeID, c.CarryoverMinutes, unit, cfg.HoursPerDay); err != nil {
		return CachedBalance{}, err
	}
	return c, nil
}

func manualAdjustments(entries []ledger.Entry) int64 {
	var sum int64
	for _, e := range entries {
		if e.Type == ledger.TypeAdjustment && e.LeaveRequestID == "" {
			sum += e.AmountMinutes
		}
	}
	return sum
}
