package leave

import (
	"context"
	"fmt"

	"github.com/warp/leave-ledger/ledger"
)

// SystemActor is the CreatedBy of entries the engine writes on its own.
const SystemActor = "system"

// Seeder converts the legacy flat balance fields into ledger entries, once.
//
// The guard is the entry count: an employee with any entry at all is
// ledger-managed, and re-injecting the legacy balance would double it. The
// writes themselves are keyed upserts, so two seeders racing past the guard
// still leave one OPENING and one CARRYOVER entry.
type Seeder struct {
	Ledger *ledger.Ledger
}

func NewSeeder(l *ledger.Ledger) *Seeder {
	return &Seeder{Ledger: l}
}

// SeedIfMissing writes the OPENING and current-year CARRYOVER entries when the
// employee has no entries yet. Returns true when it seeded.
func (s *Seeder) SeedIfMissing(ctx context.Context, employeeID ledger.EmployeeID, legacyVacationMinutes, legacyCarryoverMinutes int64) (bool, error) {
	count, err := s.Ledger.CountByEmployee(ctx, employeeID)
	if err != nil {
		return false, fmt.Errorf("count entries: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	md := ledger.Metadata{CreatedBy: SystemActor, Notes: "opening balance from legacy fields"}
	if _, err := s.Ledger.UpsertByKey(ctx, employeeID, ledger.TypeOpening, ledger.OpeningPeriodKey, legacyVacationMinutes, md); err != nil {
		return false, fmt.Errorf("seed opening: %w", err)
	}

	year := s.Ledger.Clock.Now().Year()
	md.Notes = "carryover from legacy fields"
	if _, err := s.Ledger.UpsertByKey(ctx, employeeID, ledger.TypeCarryover, ledger.YearKey(year), legacyCarryoverMinutes, md); err != nil {
		return false, fmt.Errorf("seed carryover: %w", err)
	}
	return true, nil
}
