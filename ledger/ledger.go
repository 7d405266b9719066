/*
ledger.go - Ledger entry operations

PURPOSE:
  The Ledger is the write and query front of the Store. It assigns ids and
  timestamps, validates entry types and period keys, and turns the racing
  duplicate on the upsert path into success.

OPERATIONS:
  Append:          New immutable entry (TAKEN, ADJUSTMENT, or any keyed type
                   that must not exist yet)
  UpsertByKey:     Insert-or-replace for OPENING, ACCRUAL, CARRYOVER
  QueryByEmployee: Ordered entries, filterable by type / period prefix
  CountByEmployee: Distinguishes legacy employees from ledger-managed ones

REPLACING, NOT ADDING:
  UpsertByKey(e, CARRYOVER, "2026", 480) then UpsertByKey(..., 600) leaves one
  entry of 600. Re-running any keyed write converges on the same state.

SEE ALSO:
  - store.go:   Store interface
  - balance.go: Summary fold over QueryByEmployee
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Ledger validates and persists entries through a Store.
type Ledger struct {
	Store Store
	Clock Clock

	// NewID generates entry ids. Defaults to random UUIDs.
	NewID func() EntryID
}

func NewLedger(store Store, clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Ledger{
		Store: store,
		Clock: clock,
		NewID: func() EntryID { return EntryID(uuid.NewString()) },
	}
}

// Append persists a new entry. ID and CreatedAt are filled in when empty.
// For the keyed types an existing key fails with *DuplicateKeyError; callers
// that want replacement must use UpsertByKey.
func (l *Ledger) Append(ctx context.Context, e Entry) (Entry, error) {
	if err := validate(e); err != nil {
		return Entry{}, err
	}
	l.stamp(&e)
	if err := l.Store.Append(ctx, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// UpsertByKey inserts the keyed entry if absent, otherwise replaces its amount.
func (l *Ledger) UpsertByKey(ctx context.Context, employeeID EmployeeID, t EntryType, periodKey string, amountMinutes int64, md Metadata) (Entry, error) {
	if !t.Idempotent() {
		return Entry{}, fmt.Errorf("upsert %s: %w", t, ErrNotKeyed)
	}
	e := Entry{
		EmployeeID:     employeeID,
		Type:           t,
		AmountMinutes:  amountMinutes,
		PeriodKey:      periodKey,
		LeaveRequestID: md.LeaveRequestID,
		CreatedBy:      md.CreatedBy,
		Notes:          md.Notes,
	}
	if err := validate(e); err != nil {
		return Entry{}, err
	}
	l.stamp(&e)

	stored, err := l.Store.Upsert(ctx, e)
	if errors.Is(err, ErrDuplicateKey) {
		// Lost an insert race; the winner's row is the state we converge on.
		existing, findErr := l.Find(ctx, e.Key())
		if findErr != nil {
			return Entry{}, findErr
		}
		if existing != nil {
			return *existing, nil
		}
	}
	if err != nil {
		return Entry{}, err
	}
	return stored, nil
}

// QueryByEmployee returns the employee's entries in insertion order.
func (l *Ledger) QueryByEmployee(ctx context.Context, employeeID EmployeeID, f Filter) ([]Entry, error) {
	return l.Store.Query(ctx, employeeID, f)
}

// CountByEmployee returns how many entries the employee has.
func (l *Ledger) CountByEmployee(ctx context.Context, employeeID EmployeeID) (int, error) {
	return l.Store.Count(ctx, employeeID)
}

// Find returns the entry stored under an exact key, or nil.
func (l *Ledger) Find(ctx context.Context, k Key) (*Entry, error) {
	entries, err := l.Store.Query(ctx, k.EmployeeID, Filter{Types: []EntryType{k.Type}, PeriodPrefix: k.PeriodKey})
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].PeriodKey == k.PeriodKey {
			return &entries[i], nil
		}
	}
	return nil, nil
}

func (l *Ledger) stamp(e *Entry) {
	if e.ID == "" {
		e.ID = l.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.Clock.Now().UTC()
	}
}

func validate(e Entry) error {
	if e.EmployeeID == "" {
		return &NotFoundError{EmployeeID: e.EmployeeID}
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEntryType, e.Type)
	}
	if e.Type.Idempotent() && e.PeriodKey == "" {
		return fmt.Errorf("%s entry: %w", e.Type, ErrPeriodKeyRequired)
	}
	return nil
}
