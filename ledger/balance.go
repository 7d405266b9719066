/*
balance.go - Balance aggregation

PURPOSE:
  Derives the Summary for an employee from the full set of entries. This is
  the only place totals are computed; the cached balance on the employee
  record is a projection of this value (see leave/sync.go).

INVARIANT:
  BalanceMinutes == sum of every entry's AmountMinutes. It holds because the
  fold below adds every entry to the balance unconditionally, whatever its
  type. The per-type totals are views on the same pass.

TAKEN:
  TakenMinutes reports the magnitude of the negative TAKEN entries, so a
  4-hour leave appears as 240, not -240.
*/
package ledger

import "context"

// Summary is the derived balance for one employee.
type Summary struct {
	EmployeeID       EmployeeID
	BalanceMinutes   int64
	CarryoverMinutes int64
	AccruedMinutes   int64
	TakenMinutes     int64
	OpeningMinutes   int64
	AdjustedMinutes  int64
	EntryCount       int
}

// Summarize folds entries into a Summary.
func Summarize(employeeID EmployeeID, entries []Entry) Summary {
	s := Summary{EmployeeID: employeeID, EntryCount: len(entries)}
	for _, e := range entries {
		s.BalanceMinutes += e.AmountMinutes

		switch e.Type {
		case TypeCarryover:
			s.CarryoverMinutes += e.AmountMinutes
		case TypeAccrual:
			s.AccruedMinutes += e.AmountMinutes
		case TypeTaken:
			if e.AmountMinutes < 0 {
				s.TakenMinutes += -e.AmountMinutes
			}
		case TypeOpening:
			s.OpeningMinutes += e.AmountMinutes
		case TypeAdjustment:
			s.AdjustedMinutes += e.AmountMinutes
		}
	}
	return s
}

// Aggregator computes fresh summaries from the store. It does not cache.
type Aggregator struct {
	Store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{Store: store}
}

// Summarize returns the balance summary over every entry of the employee.
func (a *Aggregator) Summarize(ctx context.Context, employeeID EmployeeID) (Summary, error) {
	entries, err := a.Store.Query(ctx, employeeID, Filter{})
	if err != nil {
		return Summary{}, err
	}
	return Summarize(employeeID, entries), nil
}

// WouldGoNegative reports whether taking minutes would leave a negative balance.
func (s Summary) WouldGoNegative(minutes int64) bool {
	return s.BalanceMinutes-minutes < 0
}
