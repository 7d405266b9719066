package factory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/roster"
)

func TestParseRoster_Default(t *testing.T) {
	r, err := factory.NewRosterFactory().ParseRoster(factory.DefaultRosterJSON)
	require.NoError(t, err)

	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, factory.WorkingDays(r))
	assert.Equal(t, 480, r.DailyMinutes(time.Wednesday))
	assert.Equal(t, 0, r.DailyMinutes(time.Saturday))
}

func TestParseRoster_Overrides(t *testing.T) {
	jsonStr := `{
		"days": ["mon", "tue", "wed", "thu", "fri"],
		"start": "08:30", "end": "17:00",
		"breaks": [{"start": "12:00", "end": "12:30"}],
		"overrides": {
			"friday": {"start": "08:30", "end": "14:00"},
			"Saturday": {"start": "09:00", "end": "12:00"}
		}
	}`
	r, err := factory.NewRosterFactory().ParseRoster(jsonStr)
	require.NoError(t, err)

	assert.Equal(t, 330, r.DailyMinutes(time.Friday))
	assert.Equal(t, 180, r.DailyMinutes(time.Saturday))
	assert.Equal(t, 480, r.DailyMinutes(time.Monday))
}

func TestParseRoster_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"days": [`},
		{"no days", `{"start": "08:00", "end": "16:00"}`},
		{"unknown weekday", `{"days": ["funday"], "start": "08:00", "end": "16:00"}`},
		{"bad clock", `{"days": ["monday"], "start": "8am", "end": "16:00"}`},
		{"inverted shift", `{"days": ["monday"], "start": "16:00", "end": "08:00"}`},
		{"empty break", `{"days": ["monday"], "start": "08:00", "end": "16:00", "breaks": [{"start": "12:00", "end": "12:00"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.NewRosterFactory().ParseRoster(tt.json)
			assert.ErrorIs(t, err, ledger.ErrInvalidInput)
			assert.True(t, ledger.IsClientError(err))
		})
	}
}

func TestRosterJSON_RoundTrip(t *testing.T) {
	f := factory.NewRosterFactory()
	r := roster.Weekly(roster.MondayToFriday, roster.MustClock("07:00"), roster.MustClock("15:30"),
		roster.Interval{Start: roster.MustClock("11:30"), End: roster.MustClock("12:00")})
	r.Days[time.Saturday] = roster.Shift{Start: roster.MustClock("09:00"), End: roster.MustClock("12:00")}

	back, err := f.FromJSON(f.ToJSON(r))
	require.NoError(t, err)
	assert.Equal(t, r, back)
}

func TestParseEmployee(t *testing.T) {
	emp, err := factory.NewEmployeeFactory().ParseEmployee(`{
		"id": "emp-17",
		"name": "Sam",
		"hours_per_day": "7.5",
		"annual_entitlement_days": 20,
		"employment_start": "2024-06-16",
		"unit": "days",
		"legacy_vacation_minutes": 2400
	}`)
	require.NoError(t, err)

	assert.Equal(t, ledger.EmployeeID("emp-17"), emp.ID)
	assert.Equal(t, leave.UnitDays, emp.Config.Unit)
	assert.True(t, emp.Config.HoursPerDay.Equal(decimal.RequireFromString("7.5")))
	require.NotNil(t, emp.Config.AnnualEntitlementDays)
	assert.Nil(t, emp.Config.AnnualEntitlementMinutes)
	require.NotNil(t, emp.Config.EmploymentStart)
	assert.True(t, emp.Config.EmploymentStart.Equal(ledger.NewDate(2024, time.June, 16)))
	assert.Nil(t, emp.Config.EmploymentEnd)
	assert.Equal(t, int64(2400), emp.LegacyVacationMinutes)

	annual, err := emp.Config.EntitlementMinutes(emp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), annual)
}

func TestParseEmployee_Invalid(t *testing.T) {
	f := factory.NewEmployeeFactory()
	for _, js := range []string{
		`{"id": "e", "employment_start": "16/06/2024"}`,
		`{"id": "e", "hours_per_day": -1}`,
		`not json`,
	} {
		_, err := f.ParseEmployee(js)
		assert.ErrorIs(t, err, ledger.ErrInvalidInput, js)
	}
}

func TestEmployeeJSON_RoundTrip(t *testing.T) {
	f := factory.NewEmployeeFactory()
	emp, err := f.ParseEmployee(`{"id": "e", "hours_per_day": 8, "annual_entitlement_minutes": 9600,
		"employment_start": "2025-01-01", "employment_end": "2026-06-30", "ledger_start": "2025-07-01", "unit": "HOURS"}`)
	require.NoError(t, err)

	ej := f.ToJSON(emp)
	assert.Equal(t, "2025-01-01", ej.EmploymentStart)
	assert.Equal(t, "2026-06-30", ej.EmploymentEnd)
	assert.Equal(t, "2025-07-01", ej.LedgerStart)

	back, err := f.FromJSON(ej)
	require.NoError(t, err)
	assert.Equal(t, emp.Config.EmploymentEnd, back.Config.EmploymentEnd)
	assert.Equal(t, *emp.Config.AnnualEntitlementMinutes, *back.Config.AnnualEntitlementMinutes)
}
