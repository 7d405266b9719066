package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/ledger"
)

// EmployeeJSON is the JSON representation of an employee's leave setup.
//
//	{
//	  "id": "emp-17",
//	  "name": "Sam",
//	  "hours_per_day": "8",
//	  "annual_entitlement_days": "20",
//	  "employment_start": "2024-06-16",
//	  "unit": "DAYS",
//	  "legacy_vacation_minutes": 2400,
//	  "legacy_carryover_minutes": 480
//	}
//
// Dates are YYYY-MM-DD. Decimals accept JSON strings or numbers.
type EmployeeJSON struct {
	ID                       string           `json:"id"`
	Name                     string           `json:"name"`
	HoursPerDay              decimal.Decimal  `json:"hours_per_day"`
	AnnualEntitlementMinutes *int64           `json:"annual_entitlement_minutes,omitempty"`
	AnnualEntitlementDays    *decimal.Decimal `json:"annual_entitlement_days,omitempty"`
	EmploymentStart          string           `json:"employment_start,omitempty"`
	EmploymentEnd            string           `json:"employment_end,omitempty"`
	LedgerStart              string           `json:"ledger_start,omitempty"`
	Unit                     string           `json:"unit,omitempty"`
	LegacyVacationMinutes    int64            `json:"legacy_vacation_minutes,omitempty"`
	LegacyCarryoverMinutes   int64            `json:"legacy_carryover_minutes,omitempty"`
}

// EmployeeFactory converts employee JSON to leave.Employee.
type EmployeeFactory struct{}

// NewEmployeeFactory creates a new employee factory.
func NewEmployeeFactory() *EmployeeFactory {
	return &EmployeeFactory{}
}

// ParseEmployee parses a JSON string into an Employee.
func (f *EmployeeFactory) ParseEmployee(jsonStr string) (leave.Employee, error) {
	var ej EmployeeJSON
	if err := json.Unmarshal([]byte(jsonStr), &ej); err != nil {
		return leave.Employee{}, fmt.Errorf("%w: failed to parse employee JSON: %v", ledger.ErrInvalidInput, err)
	}
	return f.FromJSON(ej)
}

// FromJSON converts EmployeeJSON to an Employee. Errors wrap
// ledger.ErrInvalidInput.
func (f *EmployeeFactory) FromJSON(ej EmployeeJSON) (leave.Employee, error) {
	emp := leave.Employee{
		ID:                     ledger.EmployeeID(strings.TrimSpace(ej.ID)),
		Name:                   ej.Name,
		LegacyVacationMinutes:  ej.LegacyVacationMinutes,
		LegacyCarryoverMinutes: ej.LegacyCarryoverMinutes,
		Config: leave.Config{
			HoursPerDay:              ej.HoursPerDay,
			AnnualEntitlementMinutes: ej.AnnualEntitlementMinutes,
			AnnualEntitlementDays:    ej.AnnualEntitlementDays,
			Unit:                     leave.Unit(strings.ToUpper(ej.Unit)),
		},
	}
	if emp.Config.HoursPerDay.IsNegative() {
		return leave.Employee{}, fmt.Errorf("%w: hours_per_day must not be negative", ledger.ErrInvalidInput)
	}

	dates := []struct {
		field string
		value string
		dst   **time.Time
	}{
		{"employment_start", ej.EmploymentStart, &emp.Config.EmploymentStart},
		{"employment_end", ej.EmploymentEnd, &emp.Config.EmploymentEnd},
		{"ledger_start", ej.LedgerStart, &emp.Config.LedgerStart},
	}
	for _, d := range dates {
		if d.value == "" {
			continue
		}
		t, err := ledger.ParseDate(d.value)
		if err != nil {
			return leave.Employee{}, fmt.Errorf("%w: %s: %v", ledger.ErrInvalidInput, d.field, err)
		}
		*d.dst = &t
	}
	return emp, nil
}

// ToJSON converts an Employee to EmployeeJSON.
func (f *EmployeeFactory) ToJSON(emp leave.Employee) EmployeeJSON {
	cfg := emp.Config
	return EmployeeJSON{
		ID:                       string(emp.ID),
		Name:                     emp.Name,
		HoursPerDay:              cfg.HoursPerDay,
		AnnualEntitlementMinutes: cfg.AnnualEntitlementMinutes,
		AnnualEntitlementDays:    cfg.AnnualEntitlementDays,
		EmploymentStart:          formatDate(cfg.EmploymentStart),
		EmploymentEnd:            formatDate(cfg.EmploymentEnd),
		LedgerStart:              formatDate(cfg.LedgerStart),
		Unit:                     string(cfg.Unit),
		LegacyVacationMinutes:    emp.LegacyVacationMinutes,
		LegacyCarryoverMinutes:   emp.LegacyCarryoverMinutes,
	}
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
