package leave

import (
	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/ledger"
)

var (
	sixty = decimal.NewFromInt(60)
)

// displayPlaces is the rounding applied to days/hours shown to users.
const displayPlaces = 2

// ToDisplay converts minutes into the given unit. Days need HoursPerDay.
func ToDisplay(employeeID ledger.EmployeeID, minutes int64, unit Unit, hoursPerDay decimal.Decimal) (decimal.Decimal, error) {
	hours := decimal.NewFromInt(minutes).Div(sixty)
	switch unit {
	case UnitDays:
		if !hoursPerDay.IsPositive() {
			return decimal.Zero, &ledger.MissingLeaveConfigError{EmployeeID: employeeID, Field: "hours_per_day"}
		}
		return hours.Div(hoursPerDay).Round(displayPlaces), nil
	default:
		return hours.Round(displayPlaces), nil
	}
}

// DaysToMinutes converts a day count to whole minutes.
func DaysToMinutes(days, hoursPerDay decimal.Decimal) int64 {
	return days.Mul(hoursPerDay).Mul(sixty).Round(0).IntPart()
}

// HoursToMinutes converts an hour count to whole minutes.
func HoursToMinutes(hours decimal.Decimal) int64 {
	return hours.Mul(sixty).Round(0).IntPart()
}

// FromDisplay converts a value in the employee's unit back to minutes.
func FromDisplay(employeeID ledger.EmployeeID, value decimal.Decimal, unit Unit, hoursPerDay decimal.Decimal) (int64, error) {
	if unit == UnitDays {
		if !hoursPerDay.IsPositive() {
			return 0, &ledger.MissingLeaveConfigError{EmployeeID: employeeID, Field: "hours_per_day"}
		}
		return DaysToMinutes(value, hoursPerDay), nil
	}
	return HoursToMinutes(value), nil
}
