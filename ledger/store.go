/*
store.go - Persistence interface for ledger entries

APPEND-ONLY CONTRACT:
  - Append(): insert a new entry
  - Upsert(): insert-or-replace for the idempotent types only
  - NO Delete() method exists

UNIQUENESS:
  The (employee, type, period key) invariant for OPENING, ACCRUAL and
  CARRYOVER is enforced by the store itself (unique index in SQLite, key map
  in memory), never by an application-level existence check. Two concurrent
  "ensure accrual" calls racing past a check must still converge on one row.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:  Production SQLite
  - ledger/store/memory.go:  In-memory for tests and development
*/
package ledger

import "context"

// Store handles persistence of ledger entries.
type Store interface {
	// Append persists a new entry. Returns *DuplicateKeyError when an
	// idempotent-type entry with the same key already exists.
	Append(ctx context.Context, e Entry) error

	// Upsert inserts e if its key is absent, otherwise replaces the amount,
	// notes and created-by of the stored entry. Returns the stored entry.
	// Only valid for idempotent types.
	Upsert(ctx context.Context, e Entry) (Entry, error)

	// Query returns the employee's entries in insertion order.
	Query(ctx context.Context, employeeID EmployeeID, f Filter) ([]Entry, error)

	// Count returns the number of entries for the employee.
	Count(ctx context.Context, employeeID EmployeeID) (int, error)
}
