package leave

import (
	"context"
	"fmt"

	"github.com/warp/leave-ledger/ledger"
)

// CarryoverUpserter keeps one CARRYOVER entry per (employee, year).
// HR may edit the figure several times before finalizing it; every call
// replaces the amount.
type CarryoverUpserter struct {
	Ledger *ledger.Ledger
}

func NewCarryoverUpserter(l *ledger.Ledger) *CarryoverUpserter {
	return &CarryoverUpserter{Ledger: l}
}

// SetCarryover sets the carryover for the year to amountMinutes.
func (c *CarryoverUpserter) SetCarryover(ctx context.Context, employeeID ledger.EmployeeID, year int, amountMinutes int64, md ledger.Metadata) (ledger.Entry, error) {
	if year < 1900 || year > 9999 {
		return ledger.Entry{}, fmt.Errorf("%w: carryover year %d", ledger.ErrInvalidRange, year)
	}
	return c.Ledger.UpsertByKey(ctx, employeeID, ledger.TypeCarryover, ledger.YearKey(year), amountMinutes, md)
}
