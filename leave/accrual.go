/*
accrual.go - Monthly accrual engine

PURPOSE:
  Writes the missing monthly ACCRUAL entries for an employee up to a date.
  Called lazily at the top of every balance-sensitive request, so it must be
  cheap when nothing is missing and safe to run any number of times.

PERIODS:
  From the month of max(employment start, ledger start) through the month of
  asOf, inclusive. Never a month after asOf. If employment has ended, the
  last period is the month of the employment end date.

AMOUNT:
  annual / 12, pro-rated by the fraction of the calendar month employed:

    minutes = round(annual × employedDays / (12 × daysInMonth))

  e.g. 9600 min/year (20 days × 8h), start on Jun 16 (30-day month):
    9600 × 15 / 360 = 400 minutes, half the 800 of a full month.

  Only the employment start and end months are pro-rated. The ledger start
  month and the current month accrue in full.

IDEMPOTENCE:
  Months that already have an entry are skipped; the rest go through
  UpsertByKey. Two concurrent calls write the same amounts under the same
  keys, so the final state is the same as one call.
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/ledger"
)

var twelve = decimal.NewFromInt(12)

// AccrualPeriod is one planned monthly accrual.
type AccrualPeriod struct {
	Year         int
	Month        time.Month
	EmployedDays int
	DaysInMonth  int
	Minutes      int64
}

func (p AccrualPeriod) Key() string { return ledger.MonthKey(p.Year, p.Month) }

// AccrualEngine computes and writes missing ACCRUAL entries.
type AccrualEngine struct {
	Ledger *ledger.Ledger

	// LedgerStart is the first month the ledger accrues for anyone. Zero means
	// accrual starts at employment start. Config.LedgerStart overrides it.
	LedgerStart time.Time
}

func NewAccrualEngine(l *ledger.Ledger, ledgerStart time.Time) *AccrualEngine {
	return &AccrualEngine{Ledger: l, LedgerStart: ledgerStart}
}

// Plan returns every accrual period due up to asOf, whether written or not.
func (a *AccrualEngine) Plan(employeeID ledger.EmployeeID, cfg Config, asOf time.Time) ([]AccrualPeriod, error) {
	annual, err := cfg.EntitlementMinutes(employeeID)
	if err != nil {
		return nil, err
	}
	if cfg.EmploymentStart == nil || cfg.EmploymentStart.IsZero() {
		return nil, &ledger.MissingLeaveConfigError{EmployeeID: employeeID, Field: "employment_start_date"}
	}

	start := ledger.Date(*cfg.EmploymentStart)
	if ledger.Date(asOf).Before(start) {
		return nil, nil
	}
	var end time.Time
	if cfg.EmploymentEnd != nil && !cfg.EmploymentEnd.IsZero() {
		end = ledger.Date(*cfg.EmploymentEnd)
		if end.Before(start) {
			return nil, &ledger.InvalidRangeError{Start: start, End: end, Reason: "employment ends before it starts"}
		}
	}

	first := ledger.StartOfMonth(start.Year(), start.Month())
	ledgerStart := a.LedgerStart
	if cfg.LedgerStart != nil {
		ledgerStart = *cfg.LedgerStart
	}
	if !ledgerStart.IsZero() {
		if ls := ledger.StartOfMonth(ledgerStart.Year(), ledgerStart.Month()); ls.After(first) {
			first = ls
		}
	}

	last := ledger.StartOfMonth(asOf.Year(), asOf.Month())
	if !end.IsZero() {
		if em := ledger.StartOfMonth(end.Year(), end.Month()); em.Before(last) {
			last = em
		}
	}

	var periods []AccrualPeriod
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		days := ledger.DaysInMonth(m.Year(), m.Month())
		firstDay, lastDay := 1, days
		if m.Year() == start.Year() && m.Month() == start.Month() {
			firstDay = start.Day()
		}
		if !end.IsZero() && m.Year() == end.Year() && m.Month() == end.Month() {
			lastDay = end.Day()
		}
		employed := lastDay - firstDay + 1
		if employed <= 0 {
			continue
		}

		periods = append(periods, AccrualPeriod{
			Year:         m.Year(),
			Month:        m.Month(),
			EmployedDays: employed,
			DaysInMonth:  days,
			Minutes:      MonthlyAccrual(annual, employed, days),
		})
	}
	return periods, nil
}

// MonthlyAccrual is annual/12 scaled by employedDays/daysInMonth, rounded to
// whole minutes.
func MonthlyAccrual(annualMinutes int64, employedDays, daysInMonth int) int64 {
	if employedDays >= daysInMonth {
		return decimal.NewFromInt(annualMinutes).Div(twelve).Round(0).IntPart()
	}
	return decimal.NewFromInt(annualMinutes).
		Mul(decimal.NewFromInt(int64(employedDays))).
		Div(twelve.Mul(decimal.NewFromInt(int64(daysInMonth)))).
		Round(0).
		IntPart()
}

// EnsureAccrualUpToDate writes every missing ACCRUAL entry up to asOf and
// returns the entries it wrote.
func (a *AccrualEngine) EnsureAccrualUpToDate(ctx context.Context, employeeID ledger.EmployeeID, cfg Config, asOf time.Time) ([]ledger.Entry, error) {
	periods, err := a.Plan(employeeID, cfg, asOf)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return nil, nil
	}

	existing, err := a.Ledger.QueryByEmployee(ctx, employeeID, ledger.Filter{Types: []ledger.EntryType{ledger.TypeAccrual}})
	if err != nil {
		return nil, fmt.Errorf("load accruals: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, e := range existing {
		have[e.PeriodKey] = true
	}

	var written []ledger.Entry
	for _, p := range periods {
		if have[p.Key()] || p.Minutes == 0 {
			continue
		}
		md := ledger.Metadata{
			CreatedBy: SystemActor,
			Notes:     fmt.Sprintf("monthly accrual %d/%d days", p.EmployedDays, p.DaysInMonth),
		}
		e, err := a.Ledger.UpsertByKey(ctx, employeeID, ledger.TypeAccrual, p.Key(), p.Minutes, md)
		if err != nil {
			return written, fmt.Errorf("accrue %s: %w", p.Key(), err)
		}
		written = append(written, e)
	}
	return written, nil
}
