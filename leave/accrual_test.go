package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) *time.Time {
	t := ledger.NewDate(y, m, d)
	return &t
}

func minutes(n int64) *int64 { return &n }

// config9600 is 20 days × 8h a year, i.e. 800 minutes a month.
func config9600(start *time.Time) leave.Config {
	return leave.Config{
		HoursPerDay:              decimal.NewFromInt(8),
		AnnualEntitlementMinutes: minutes(9600),
		EmploymentStart:          start,
		Unit:                     leave.UnitHours,
	}
}

func newMemoryLedger() *ledger.Ledger {
	return ledger.NewLedger(store.NewMemory(), ledger.NewFixedClock(testNow))
}

func keys(entries []ledger.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.PeriodKey
	}
	return out
}

// =============================================================================
// ACCRUAL
// =============================================================================

func TestAccrual_ProRatesStartMonth(t *testing.T) {
	// GIVEN: employment starting on the 16th of a 30-day month
	l := newMemoryLedger()
	engine := leave.NewAccrualEngine(l, time.Time{})
	cfg := config9600(date(2025, time.September, 16))

	// WHEN: accrual runs up to mid March
	written, err := engine.EnsureAccrualUpToDate(context.Background(), "emp-1", cfg, testNow)
	require.NoError(t, err)

	// THEN: September accrues half of 800, every later month in full
	require.Len(t, written, 7)
	assert.Equal(t, "2025-09", written[0].PeriodKey)
	assert.Equal(t, int64(400), written[0].AmountMinutes)
	for _, e := range written[1:] {
		assert.Equal(t, int64(800), e.AmountMinutes, e.PeriodKey)
	}
	assert.Equal(t, leave.SystemActor, written[0].CreatedBy)
}

func TestAccrual_NeverAccruesFutureMonths(t *testing.T) {
	l := newMemoryLedger()
	engine := leave.NewAccrualEngine(l, time.Time{})

	written, err := engine.EnsureAccrualUpToDate(context.Background(), "emp-1", config9600(date(2026, time.January, 1)), testNow)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-01", "2026-02", "2026-03"}, keys(written))
	found, err := l.Find(context.Background(), ledger.Key{EmployeeID: "emp-1", Type: ledger.TypeAccrual, PeriodKey: "2026-04"})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestAccrual_Idempotent(t *testing.T) {
	ctx := context.Background()
	l := newMemoryLedger()
	engine := leave.NewAccrualEngine(l, time.Time{})
	cfg := config9600(date(2025, time.November, 1))

	first, err := engine.EnsureAccrualUpToDate(ctx, "emp-1", cfg, testNow)
	require.NoError(t, err)
	require.Len(t, first, 5)

	// WHEN: called again with the same date
	second, err := engine.EnsureAccrualUpToDate(ctx, "emp-1", cfg, testNow)
	require.NoError(t, err)

	// THEN: nothing new is written
	assert.Empty(t, second)
	n, err := l.CountByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestAccrual_FillsOnlyMissingMonths(t *testing.T) {
	ctx := context.Background()
	l := newMemoryLedger()
	engine := leave.NewAccrualEngine(l, time.Time{})
	cfg := config9600(date(2026, time.January, 1))

	// GIVEN: February was already posted by hand with another amount
	_, err := l.UpsertByKey(ctx, "emp-1", ledger.TypeAccrual, "2026-02", 700, ledger.Metadata{})
	require.NoError(t, err)

	written, err := engine.EnsureAccrualUpToDate(ctx, "emp-1", cfg, testNow)
	require.NoError(t, err)

	// THEN: January and March are added, February is left alone
	assert.Equal(t, []string{"2026-01", "2026-03"}, keys(written))
	feb, err := l.Find(ctx, ledger.Key{EmployeeID: "emp-1", Type: ledger.TypeAccrual, PeriodKey: "2026-02"})
	require.NoError(t, err)
	assert.Equal(t, int64(700), feb.AmountMinutes)
}

func TestAccrual_LedgerStartLimitsBackfill(t *testing.T) {
	l := newMemoryLedger()
	engine := leave.NewAccrualEngine(l, ledger.NewDate(2026, time.February, 10))

	// GIVEN: an employee hired years before the ledger went live
	written, err := engine.EnsureAccrualUpToDate(context.Background(), "emp-1", config9600(date(2019, time.May, 20)), testNow)
	require.NoError(t, err)

	// THEN: accrual starts at the ledger start month, in full
	assert.Equal(t, []string{"2026-02", "2026-03"}, keys(written))
	assert.Equal(t, int64(800), written[0].AmountMinutes)
}

func TestAccrual_PerEmployeeLedgerStartOverride(t *testing.T) {
	engine := leave.NewAccrualEngine(newMemoryLedger(), ledger.NewDate(2026, time.February, 1))
	cfg := config9600(date(2019, time.May, 20))
	cfg.LedgerStart = date(2026, time.March, 1)

	periods, err := engine.Plan("emp-1", cfg, testNow)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "2026-03", periods[0].Key())
}

func TestAccrual_EmploymentEndProRatesAndStops(t *testing.T) {
	engine := leave.NewAccrualEngine(newMemoryLedger(), time.Time{})
	cfg := config9600(date(2026, time.January, 1))
	cfg.EmploymentEnd = date(2026, time.February, 14)

	periods, err := engine.Plan("emp-1", cfg, testNow)
	require.NoError(t, err)

	// THEN: January full, February 14/28 days, nothing in March
	require.Len(t, periods, 2)
	assert.Equal(t, int64(800), periods[0].Minutes)
	assert.Equal(t, 14, periods[1].EmployedDays)
	assert.Equal(t, int64(400), periods[1].Minutes)
}

func TestAccrual_StartAfterAsOfWritesNothing(t *testing.T) {
	engine := leave.NewAccrualEngine(newMemoryLedger(), time.Time{})

	written, err := engine.EnsureAccrualUpToDate(context.Background(), "emp-1", config9600(date(2026, time.May, 1)), testNow)
	require.NoError(t, err)
	assert.Empty(t, written)
}

func TestAccrual_StartLaterInSameMonthWritesNothing(t *testing.T) {
	engine := leave.NewAccrualEngine(newMemoryLedger(), time.Time{})

	// GIVEN: employment starts on the 20th, today is the 15th
	written, err := engine.EnsureAccrualUpToDate(context.Background(), "emp-1", config9600(date(2026, time.March, 20)), testNow)

	// THEN: nothing accrues for a job that has not begun
	require.NoError(t, err)
	assert.Empty(t, written)

	// AND: on the start day the pro-rated month is written
	written, err = engine.EnsureAccrualUpToDate(context.Background(), "emp-1", config9600(date(2026, time.March, 20)),
		time.Date(2026, time.March, 20, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, "2026-03", written[0].PeriodKey)
	assert.Equal(t, int64(310), written[0].AmountMinutes)
}

func TestAccrual_MissingConfig(t *testing.T) {
	engine := leave.NewAccrualEngine(newMemoryLedger(), time.Time{})
	ctx := context.Background()

	tests := []struct {
		name  string
		cfg   leave.Config
		field string
	}{
		{"no entitlement", leave.Config{EmploymentStart: date(2026, time.January, 1)}, "annual_entitlement"},
		{"zero entitlement", leave.Config{AnnualEntitlementMinutes: minutes(0), EmploymentStart: date(2026, time.January, 1)}, "annual_entitlement_minutes"},
		{"days without hours per day", func() leave.Config {
			d := decimal.NewFromInt(20)
			return leave.Config{AnnualEntitlementDays: &d, EmploymentStart: date(2026, time.January, 1)}
		}(), "hours_per_day"},
		{"no start date", leave.Config{AnnualEntitlementMinutes: minutes(9600)}, "employment_start_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.EnsureAccrualUpToDate(ctx, "emp-1", tt.cfg, testNow)
			require.ErrorIs(t, err, ledger.ErrMissingLeaveConfig)

			var mc *ledger.MissingLeaveConfigError
			require.ErrorAs(t, err, &mc)
			assert.Equal(t, tt.field, mc.Field)
		})
	}
}

func TestAccrual_EntitlementInDays(t *testing.T) {
	engine := leave.NewAccrualEngine(newMemoryLedger(), time.Time{})
	d := decimal.NewFromInt(25)
	cfg := leave.Config{
		HoursPerDay:           decimal.RequireFromString("7.6"),
		AnnualEntitlementDays: &d,
		EmploymentStart:       date(2026, time.March, 1),
	}

	periods, err := engine.Plan("emp-1", cfg, testNow)
	require.NoError(t, err)

	// 25 × 7.6h × 60 = 11400 a year, 950 a month
	require.Len(t, periods, 1)
	assert.Equal(t, int64(950), periods[0].Minutes)
}

func TestAccrual_EmploymentEndBeforeStart(t *testing.T) {
	engine := leave.NewAccrualEngine(newMemoryLedger(), time.Time{})
	cfg := config9600(date(2026, time.March, 1))
	cfg.EmploymentEnd = date(2026, time.February, 1)

	_, err := engine.Plan("emp-1", cfg, testNow)
	assert.ErrorIs(t, err, ledger.ErrInvalidRange)
}

func TestMonthlyAccrual_Rounding(t *testing.T) {
	tests := []struct {
		annual        int64
		employed, dim int
		want          int64
	}{
		{9600, 30, 30, 800},
		{9600, 15, 30, 400},
		{10000, 31, 31, 833}, // 833.33
		{10000, 1, 31, 27},   // 26.88
		{9000, 15, 31, 363},  // 362.90
		{6, 1, 1, 1},         // 0.5 rounds away from zero
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, leave.MonthlyAccrual(tt.annual, tt.employed, tt.dim),
			"annual=%d employed=%d/%d", tt.annual, tt.employed, tt.dim)
	}
}

// =============================================================================
// SEEDING & CARRYOVER
// =============================================================================

func TestSeeder_SeedsOnce(t *testing.T) {
	ctx := context.Background()
	l := newMemoryLedger()
	seeder := leave.NewSeeder(l)

	seeded, err := seeder.SeedIfMissing(ctx, "emp-1", 2400, 480)
	require.NoError(t, err)
	assert.True(t, seeded)

	// WHEN: seeding again, even with other legacy numbers
	seeded, err = seeder.SeedIfMissing(ctx, "emp-1", 9999, 9999)
	require.NoError(t, err)
	assert.False(t, seeded)

	// THEN: the first opening balance stands
	sum, err := ledger.NewAggregator(l.Store).Summarize(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2880), sum.BalanceMinutes)
	assert.Equal(t, int64(480), sum.CarryoverMinutes)
	assert.Equal(t, 2, sum.EntryCount)
}

func TestSeeder_ZeroLegacyStillMarksManaged(t *testing.T) {
	ctx := context.Background()
	l := newMemoryLedger()
	seeder := leave.NewSeeder(l)

	seeded, err := seeder.SeedIfMissing(ctx, "emp-1", 0, 0)
	require.NoError(t, err)
	assert.True(t, seeded)

	n, err := l.CountByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	carry, err := l.Find(ctx, ledger.Key{EmployeeID: "emp-1", Type: ledger.TypeCarryover, PeriodKey: "2026"})
	require.NoError(t, err)
	require.NotNil(t, carry)
}

func TestSeeder_SkipsEmployeeWithAnyEntry(t *testing.T) {
	ctx := context.Background()
	l := newMemoryLedger()

	_, err := l.Append(ctx, ledger.Entry{EmployeeID: "emp-1", Type: ledger.TypeAdjustment, AmountMinutes: 60})
	require.NoError(t, err)

	seeded, err := leave.NewSeeder(l).SeedIfMissing(ctx, "emp-1", 2400, 480)
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestCarryover_ReplacesNotAccumulates(t *testing.T) {
	ctx := context.Background()
	l := newMemoryLedger()
	c := leave.NewCarryoverUpserter(l)

	_, err := c.SetCarryover(ctx, "emp-1", 2026, 480, ledger.Metadata{CreatedBy: "hr"})
	require.NoError(t, err)
	e, err := c.SetCarryover(ctx, "emp-1", 2026, 600, ledger.Metadata{CreatedBy: "hr"})
	require.NoError(t, err)
	assert.Equal(t, int64(600), e.AmountMinutes)

	entries, err := l.QueryByEmployee(ctx, "emp-1", ledger.Filter{Types: []ledger.EntryType{ledger.TypeCarryover}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(600), entries[0].AmountMinutes)
	assert.Equal(t, "2026", entries[0].PeriodKey)
}

func TestCarryover_YearOutOfRange(t *testing.T) {
	c := leave.NewCarryoverUpserter(newMemoryLedger())
	for _, year := range []int{-1, 0, 10000} {
		_, err := c.SetCarryover(context.Background(), "emp-1", year, 60, ledger.Metadata{})
		assert.ErrorIs(t, err, ledger.ErrInvalidRange, "year %d", year)
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

func TestToDisplay(t *testing.T) {
	eight := decimal.NewFromInt(8)

	v, err := leave.ToDisplay("emp-1", 4320, leave.UnitDays, eight)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.NewFromInt(9)), v.String())

	v, err = leave.ToDisplay("emp-1", 100, leave.UnitHours, eight)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("1.67")), v.String())

	_, err = leave.ToDisplay("emp-1", 480, leave.UnitDays, decimal.Zero)
	assert.ErrorIs(t, err, ledger.ErrMissingLeaveConfig)

	m, err := leave.FromDisplay("emp-1", decimal.RequireFromString("1.5"), leave.UnitDays, eight)
	require.NoError(t, err)
	assert.Equal(t, int64(720), m)
}

func TestProject_SplitsBalance(t *testing.T) {
	sum := ledger.Summary{BalanceMinutes: 5340, CarryoverMinutes: 480}
	cfg := leave.Config{HoursPerDay: decimal.NewFromInt(8), Unit: leave.UnitDays}

	c, err := leave.Project("emp-1", sum, 60, cfg)
	require.NoError(t, err)

	assert.Equal(t, int64(4800), c.LegalMinutes)
	assert.Equal(t, int64(60), c.ExtraMinutes)
	assert.Equal(t, int64(480), c.CarryoverMinutes)
	assert.Equal(t, sum.BalanceMinutes, c.TotalMinutes())
	assert.True(t, c.Legal.Equal(decimal.NewFromInt(10)))
	assert.True(t, c.Extra.Equal(decimal.RequireFromString("0.13")))
	assert.True(t, c.Carryover.Equal(decimal.NewFromInt(1)))
}
