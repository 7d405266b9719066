/*
errors.go - Centralized error types for the leave ledger

ERROR CATEGORIES:
  1. Client errors   - InvalidRange, MissingLeaveConfig (user-facing correction)
  2. Conflict errors - DuplicateKey (non-idempotent insert on a unique key)
  3. Lookup errors   - NotFound (unknown employee)

DUPLICATE KEYS:
  ErrDuplicateKey is only surfaced by Append. On the UpsertByKey path a
  duplicate is the expected outcome of a race and is treated as success.

USAGE:
  if errors.Is(err, ledger.ErrMissingLeaveConfig) {
      // ask an administrator to configure hours-per-day / entitlement
  }
*/
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned for a malformed or inverted date/time span.
	ErrInvalidRange = errors.New("invalid range")

	// ErrMissingLeaveConfig is returned when an employee lacks the entitlement or
	// employment start date needed for accrual.
	ErrMissingLeaveConfig = errors.New("missing leave config")

	// ErrDuplicateKey is returned when an insert violates the
	// (employee, type, period key) uniqueness invariant.
	ErrDuplicateKey = errors.New("duplicate ledger key")

	// ErrNotFound is returned for an unknown employee.
	ErrNotFound = errors.New("not found")

	// ErrUnknownEntryType is returned for an entry type outside the taxonomy.
	ErrUnknownEntryType = errors.New("unknown entry type")

	// ErrPeriodKeyRequired is returned when an idempotent entry has no period key.
	ErrPeriodKeyRequired = errors.New("period key required")

	// ErrNotKeyed is returned when UpsertByKey is called for TAKEN or ADJUSTMENT.
	ErrNotKeyed = errors.New("entry type is not keyed")

	// ErrInvalidInput is returned for request fields the caller must correct,
	// such as a zero adjustment or an unknown display unit.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateKeyError names the key that already exists.
type DuplicateKeyError struct {
	Key Key
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate ledger key: %s", e.Key)
}

func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateKey
}

// MissingLeaveConfigError names the missing or invalid configuration field.
type MissingLeaveConfigError struct {
	EmployeeID EmployeeID
	Field      string
}

func (e *MissingLeaveConfigError) Error() string {
	return fmt.Sprintf("missing leave config for employee %s: %s", e.EmployeeID, e.Field)
}

func (e *MissingLeaveConfigError) Unwrap() error {
	return ErrMissingLeaveConfig
}

// InvalidRangeError describes a rejected span.
type InvalidRangeError struct {
	Start  time.Time
	End    time.Time
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range %s..%s: %s",
		e.Start.Format("2006-01-02 15:04"), e.End.Format("2006-01-02 15:04"), e.Reason)
}

func (e *InvalidRangeError) Unwrap() error {
	return ErrInvalidRange
}

// NotFoundError names the missing employee.
type NotFoundError struct {
	EmployeeID EmployeeID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("employee %s not found", e.EmployeeID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the caller can fix the error by correcting input
// or configuration.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrMissingLeaveConfig) ||
		errors.Is(err, ErrUnknownEntryType) ||
		errors.Is(err, ErrPeriodKeyRequired) ||
		errors.Is(err, ErrInvalidInput)
}

// IsConflict returns true for uniqueness violations.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsNotFound returns true if the error indicates a missing employee.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
