/*
Package ledger provides the leave ledger core.

PURPOSE:
  Employee paid-time-off balances are kept as an append-only list of
  signed-minute entries. Every accrual, opening balance, carryover, approved
  leave and manual correction is one Entry. The balance is never stored as a
  source of truth; it is always the sum of the entries.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry:     One fact about a balance change, in minutes
  - EntryType: OPENING, ACCRUAL, TAKEN, ADJUSTMENT, CARRYOVER
  - PeriodKey: Correlation key scoping an entry to a period or request
  - Summary:   Derived totals for an employee (see balance.go)

UNITS:
  Minutes are the only internal unit. Days and hours exist only at the
  display boundary (leave/display.go).

IDEMPOTENCY:
  OPENING, ACCRUAL and CARRYOVER are unique per (employee, type, period key).
  Writes for those types go through UpsertByKey, which replaces the amount
  instead of adding to it. TAKEN and ADJUSTMENT may repeat.

SEE ALSO:
  - store.go:   Persistence interface
  - ledger.go:  Append / UpsertByKey / query operations
  - balance.go: Summary fold
*/
package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type EntryID string

// =============================================================================
// ENTRY TYPE
// =============================================================================

type EntryType string

const (
	TypeOpening    EntryType = "OPENING"    // One-time conversion of legacy balance fields
	TypeAccrual    EntryType = "ACCRUAL"    // Monthly accrual, keyed "YYYY-MM"
	TypeTaken      EntryType = "TAKEN"      // Approved leave, keyed by request id
	TypeAdjustment EntryType = "ADJUSTMENT" // Manual correction, may repeat
	TypeCarryover  EntryType = "CARRYOVER"  // Balance brought forward, keyed "<year>"
)

// EntryTypes lists every known type, in display order.
var EntryTypes = []EntryType{TypeOpening, TypeAccrual, TypeTaken, TypeAdjustment, TypeCarryover}

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case TypeOpening, TypeAccrual, TypeTaken, TypeAdjustment, TypeCarryover:
		return true
	}
	return false
}

// Idempotent reports whether at most one entry per (employee, type, period key)
// may exist for this type.
func (t EntryType) Idempotent() bool {
	return t == TypeOpening || t == TypeAccrual || t == TypeCarryover
}

// ParseEntryType converts a string into an EntryType.
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntryType, s)
	}
	return t, nil
}

// OpeningPeriodKey is the period key of the single OPENING entry.
const OpeningPeriodKey = "opening"

// =============================================================================
// ENTRY - Immutable balance change
// =============================================================================

type Entry struct {
	ID             EntryID
	EmployeeID     EmployeeID
	Type           EntryType
	AmountMinutes  int64 // positive adds to balance, negative subtracts
	PeriodKey      string
	LeaveRequestID string

	// Provenance
	CreatedBy string
	CreatedAt time.Time
	Notes     string

	// UpdatedAt is set only when UpsertByKey replaced the amount of an
	// existing idempotent-key entry.
	UpdatedAt time.Time
}

// Key returns the idempotency key triple for the entry.
func (e Entry) Key() Key {
	return Key{EmployeeID: e.EmployeeID, Type: e.Type, PeriodKey: e.PeriodKey}
}

// Key identifies an entry for the idempotent types.
type Key struct {
	EmployeeID EmployeeID
	Type       EntryType
	PeriodKey  string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.EmployeeID, k.Type, k.PeriodKey)
}

// Metadata carries the provenance fields for UpsertByKey and Append helpers.
type Metadata struct {
	LeaveRequestID string
	CreatedBy      string
	Notes          string
}

// =============================================================================
// FILTER - Query options
// =============================================================================

// Filter narrows QueryByEmployee. Zero value matches every entry.
type Filter struct {
	Types          []EntryType
	PeriodPrefix   string // e.g. "2026" for every accrual of 2026
	LeaveRequestID string
}

// Matches reports whether the entry passes the filter.
func (f Filter) Matches(e Entry) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.PeriodPrefix != "" {
		if len(e.PeriodKey) < len(f.PeriodPrefix) || e.PeriodKey[:len(f.PeriodPrefix)] != f.PeriodPrefix {
			return false
		}
	}
	if f.LeaveRequestID != "" && e.LeaveRequestID != f.LeaveRequestID {
		return false
	}
	return true
}
