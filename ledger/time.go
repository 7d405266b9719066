package ledger

import (
	"strconv"
	"time"
)

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies the current time. Components take a Clock instead of calling
// time.Now so recomputation and tests are reproducible.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{T: t.UTC()} }

func (c *FixedClock) Now() time.Time { return c.T }

// Advance moves the fixed clock forward.
func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// =============================================================================
// CALENDAR HELPERS
// =============================================================================

// Date truncates t to midnight UTC of the same calendar day.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func StartOfMonth(year int, month time.Month) time.Time { return NewDate(year, month, 1) }

func EndOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

func DaysInMonth(year int, month time.Month) int { return EndOfMonth(year, month).Day() }

// MonthKey formats the ACCRUAL period key "YYYY-MM".
func MonthKey(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// ParseMonthKey parses a "YYYY-MM" period key.
func ParseMonthKey(key string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}

// YearKey formats the CARRYOVER period key "<year>".
func YearKey(year int) string { return strconv.Itoa(year) }

// ParseDate parses "2006-01-02".
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
