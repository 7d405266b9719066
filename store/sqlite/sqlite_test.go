package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/store/sqlite"
)

var testNow = time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(emp ledger.EmployeeID, typ ledger.EntryType, key string, minutes int64) ledger.Entry {
	return ledger.Entry{
		ID:            ledger.EntryID(string(emp) + "-" + string(typ) + "-" + key),
		EmployeeID:    emp,
		Type:          typ,
		AmountMinutes: minutes,
		PeriodKey:     key,
		CreatedBy:     "test",
		CreatedAt:     testNow,
	}
}

func TestStore_AppendAndQueryInInsertionOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// GIVEN: three entries written out of period order
	require.NoError(t, s.Append(ctx, entry("emp-1", ledger.TypeAccrual, "2026-02", 800)))
	require.NoError(t, s.Append(ctx, entry("emp-1", ledger.TypeOpening, "opening", 4800)))
	require.NoError(t, s.Append(ctx, entry("emp-1", ledger.TypeAccrual, "2026-01", 800)))
	require.NoError(t, s.Append(ctx, entry("emp-2", ledger.TypeAccrual, "2026-01", 800)))

	// WHEN: querying everything for emp-1
	got, err := s.Query(ctx, "emp-1", ledger.Filter{})
	require.NoError(t, err)

	// THEN: entries come back in insertion order, only for that employee
	require.Len(t, got, 3)
	assert.Equal(t, "2026-02", got[0].PeriodKey)
	assert.Equal(t, "opening", got[1].PeriodKey)
	assert.Equal(t, "2026-01", got[2].PeriodKey)
	assert.True(t, got[0].CreatedAt.Equal(testNow))
	assert.True(t, got[0].UpdatedAt.IsZero())
}

func TestStore_AppendDuplicateKeyedEntry(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, entry("emp-1", ledger.TypeAccrual, "2026-01", 800)))

	e := entry("emp-1", ledger.TypeAccrual, "2026-01", 800)
	e.ID = "other-id"
	err := s.Append(ctx, e)

	var dup *ledger.DuplicateKeyError
	require.True(t, errors.As(err, &dup))
	assert.ErrorIs(t, err, ledger.ErrDuplicateKey)
	assert.Equal(t, ledger.Key{EmployeeID: "emp-1", Type: ledger.TypeAccrual, PeriodKey: "2026-01"}, dup.Key)
}

func TestStore_TakenAndAdjustmentMayRepeat(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for i, id := range []ledger.EntryID{"a", "b"} {
		e := entry("emp-1", ledger.TypeAdjustment, "", int64(60*(i+1)))
		e.ID = id
		require.NoError(t, s.Append(ctx, e))
	}
	for _, id := range []ledger.EntryID{"c", "d"} {
		e := entry("emp-1", ledger.TypeTaken, "req-1", -240)
		e.ID = id
		require.NoError(t, s.Append(ctx, e))
	}

	n, err := s.Count(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestStore_UpsertReplacesAmount(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// GIVEN: a carryover of 480 for 2026
	first, err := s.Upsert(ctx, entry("emp-1", ledger.TypeCarryover, "2026", 480))
	require.NoError(t, err)
	assert.True(t, first.UpdatedAt.IsZero())

	// WHEN: HR corrects it to 600
	later := entry("emp-1", ledger.TypeCarryover, "2026", 600)
	later.ID = "ignored-new-id"
	later.CreatedBy = "hr"
	later.CreatedAt = testNow.Add(time.Hour)
	second, err := s.Upsert(ctx, later)
	require.NoError(t, err)

	// THEN: one entry of 600 with the original id and creation time
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(600), second.AmountMinutes)
	assert.Equal(t, "hr", second.CreatedBy)
	assert.True(t, second.CreatedAt.Equal(testNow))
	assert.True(t, second.UpdatedAt.Equal(testNow.Add(time.Hour)))

	got, err := s.Query(ctx, "emp-1", ledger.Filter{Types: []ledger.EntryType{ledger.TypeCarryover}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(600), got[0].AmountMinutes)
}

func TestStore_UpsertRejectsUnkeyedType(t *testing.T) {
	s := newStore(t)
	_, err := s.Upsert(context.Background(), entry("emp-1", ledger.TypeTaken, "req-1", -60))
	assert.ErrorIs(t, err, ledger.ErrNotKeyed)
}

func TestStore_QueryFilters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, entry("emp-1", ledger.TypeAccrual, "2025-12", 800)))
	require.NoError(t, s.Append(ctx, entry("emp-1", ledger.TypeAccrual, "2026-01", 800)))
	require.NoError(t, s.Append(ctx, entry("emp-1", ledger.TypeCarryover, "2026", 300)))
	taken := entry("emp-1", ledger.TypeTaken, "req-9", -120)
	taken.LeaveRequestID = "req-9"
	require.NoError(t, s.Append(ctx, taken))

	tests := []struct {
		name   string
		filter ledger.Filter
		want   int
	}{
		{"all", ledger.Filter{}, 4},
		{"by type", ledger.Filter{Types: []ledger.EntryType{ledger.TypeAccrual}}, 2},
		{"several types", ledger.Filter{Types: []ledger.EntryType{ledger.TypeAccrual, ledger.TypeTaken}}, 3},
		{"period prefix", ledger.Filter{PeriodPrefix: "2026"}, 2},
		{"type and prefix", ledger.Filter{Types: []ledger.EntryType{ledger.TypeAccrual}, PeriodPrefix: "2026"}, 1},
		{"leave request", ledger.Filter{LeaveRequestID: "req-9"}, 1},
		{"no match", ledger.Filter{PeriodPrefix: "2030"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, "emp-1", tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestStore_ConcurrentUpsertsLeaveOneRow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	l := ledger.NewLedger(s, ledger.NewFixedClock(testNow))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.UpsertByKey(ctx, "emp-1", ledger.TypeAccrual, "2026-03", 800, ledger.Metadata{CreatedBy: "system"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := s.Count(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Employees(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	start := time.Date(2024, time.June, 16, 0, 0, 0, 0, time.UTC)
	minutes := int64(9600)
	emp := leave.Employee{
		ID:   "emp-1",
		Name: "Jo Mechanic",
		Config: leave.Config{
			HoursPerDay:              decimal.NewFromInt(8),
			AnnualEntitlementMinutes: &minutes,
			EmploymentStart:          &start,
			Unit:                     leave.UnitDays,
		},
		LegacyVacationMinutes:  2400,
		LegacyCarryoverMinutes: 480,
		CreatedAt:              testNow,
	}
	require.NoError(t, s.CreateEmployee(ctx, emp))

	t.Run("duplicate create is a conflict", func(t *testing.T) {
		err := s.CreateEmployee(ctx, emp)
		assert.ErrorIs(t, err, ledger.ErrDuplicateKey)
	})

	t.Run("round trip", func(t *testing.T) {
		got, err := s.GetEmployee(ctx, "emp-1")
		require.NoError(t, err)
		assert.Equal(t, "Jo Mechanic", got.Name)
		assert.True(t, got.Config.HoursPerDay.Equal(decimal.NewFromInt(8)))
		require.NotNil(t, got.Config.AnnualEntitlementMinutes)
		assert.Equal(t, int64(9600), *got.Config.AnnualEntitlementMinutes)
		assert.Nil(t, got.Config.AnnualEntitlementDays)
		require.NotNil(t, got.Config.EmploymentStart)
		assert.True(t, got.Config.EmploymentStart.Equal(start))
		assert.Nil(t, got.Config.EmploymentEnd)
		assert.Equal(t, leave.UnitDays, got.Config.Unit)
		assert.Equal(t, int64(2400), got.LegacyVacationMinutes)
		assert.Equal(t, int64(480), got.LegacyCarryoverMinutes)
		assert.True(t, got.CreatedAt.Equal(testNow))
	})

	t.Run("unknown employee", func(t *testing.T) {
		_, err := s.GetEmployee(ctx, "nobody")
		var nf *ledger.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, ledger.EmployeeID("nobody"), nf.EmployeeID)
	})

	t.Run("cached balance", func(t *testing.T) {
		c := leave.CachedBalance{
			LegalMinutes:     3000,
			ExtraMinutes:     60,
			CarryoverMinutes: 480,
			Unit:             leave.UnitDays,
			Legal:            decimal.RequireFromString("6.25"),
			Extra:            decimal.RequireFromString("0.13"),
			Carryover:        decimal.NewFromInt(1),
			SyncedAt:         testNow,
		}
		require.NoError(t, s.SaveCachedBalance(ctx, "emp-1", c))

		got, err := s.GetEmployee(ctx, "emp-1")
		require.NoError(t, err)
		assert.Equal(t, int64(3540), got.Cached.TotalMinutes())
		assert.True(t, got.Cached.Legal.Equal(decimal.RequireFromString("6.25")))
		assert.True(t, got.Cached.SyncedAt.Equal(testNow))

		assert.ErrorIs(t, s.SaveCachedBalance(ctx, "nobody", c), ledger.ErrNotFound)
	})

	t.Run("update keeps cache", func(t *testing.T) {
		emp.Name = "Jo Senior Mechanic"
		emp.Config.HoursPerDay = decimal.RequireFromString("7.5")
		require.NoError(t, s.UpdateEmployee(ctx, emp))

		got, err := s.GetEmployee(ctx, "emp-1")
		require.NoError(t, err)
		assert.Equal(t, "Jo Senior Mechanic", got.Name)
		assert.True(t, got.Config.HoursPerDay.Equal(decimal.RequireFromString("7.5")))
		assert.Equal(t, int64(3000), got.Cached.LegalMinutes)

		assert.ErrorIs(t, s.UpdateEmployee(ctx, leave.Employee{ID: "nobody"}), ledger.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		require.NoError(t, s.CreateEmployee(ctx, leave.Employee{ID: "emp-0", Name: "Apprentice"}))
		list, err := s.ListEmployees(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, ledger.EmployeeID("emp-0"), list[0].ID)
		assert.Equal(t, leave.UnitHours, list[0].Config.Unit)
	})
}

func TestStore_WithTxRollsBack(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	// WHEN: a unit of work writes an entry then fails
	err := s.WithTx(ctx, func(repo leave.Repository) error {
		if err := repo.Append(ctx, entry("emp-1", ledger.TypeOpening, "opening", 100)); err != nil {
			return err
		}
		n, err := repo.Count(ctx, "emp-1")
		require.NoError(t, err)
		assert.Equal(t, 1, n, "the transaction sees its own write")
		return boom
	})
	require.ErrorIs(t, err, boom)

	// THEN: nothing was committed
	n, err := s.Count(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_WithTxCommits(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(repo leave.Repository) error {
		_, err := repo.Upsert(ctx, entry("emp-1", ledger.TypeCarryover, "2026", 480))
		return err
	})
	require.NoError(t, err)

	n, err := s.Count(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Settings(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, ok, err := s.GetSetting(ctx, "roster")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveSetting(ctx, "roster", `{"v":1}`))
	require.NoError(t, s.SaveSetting(ctx, "roster", `{"v":2}`))

	v, ok, err := s.GetSetting(ctx, "roster")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"v":2}`, v)
}
