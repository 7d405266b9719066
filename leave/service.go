/*
service.go - Leave workflows and their transaction boundaries

PURPOSE:
  The entry points the HTTP layer calls. Each one runs inside one store
  transaction: either every entry it writes and the refreshed cached balance
  commit together, or nothing does.

ORDER INSIDE A BALANCE-CHANGING WORKFLOW:
  1. Seed the opening balance from the legacy fields (no-op once managed)
  2. Bring monthly accrual up to date
  3. Write the workflow's own entry
  4. Sync the cached balance

  Seeding comes first because any entry makes the employee ledger-managed;
  writing an accrual before the seed would lose the legacy balance for good.

MISSING CONFIG:
  Inside a workflow, an employee without entitlement or start date is logged
  and accrual is skipped; the workflow itself still runs. The explicit
  EnsureAccrualUpToDate entry point returns the error.

NEGATIVE BALANCES:
  ApproveLeave reports a negative result and never blocks it. The override
  decision belongs to the caller.
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/roster"
	"go.uber.org/zap"
)

// Service runs the leave workflows against a transactional repository.
type Service struct {
	Repo     TxRepository
	Clock    ledger.Clock
	Logger   *zap.Logger
	Notifier Notifier // optional

	// LedgerStart is the engine-wide first accrual month.
	LedgerStart time.Time

	// NewID overrides entry id generation. Nil uses the ledger default.
	NewID func() ledger.EntryID
}

func NewService(repo TxRepository, clock ledger.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Repo: repo, Clock: clock, Logger: logger}
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

// work binds the components to one transaction's repository.
type work struct {
	repo      Repository
	ledger    *ledger.Ledger
	seeder    *Seeder
	accrual   *AccrualEngine
	carryover *CarryoverUpserter
	sync      *Synchronizer
	log       *zap.Logger

	// changed collects the summaries to notify after commit.
	changed []ledger.Summary
}

func (s *Service) newWork(repo Repository) *work {
	l := ledger.NewLedger(repo, s.Clock)
	if s.NewID != nil {
		l.NewID = s.NewID
	}
	return &work{
		repo:      repo,
		ledger:    l,
		seeder:    NewSeeder(l),
		accrual:   NewAccrualEngine(l, s.LedgerStart),
		carryover: NewCarryoverUpserter(l),
		sync:      NewSynchronizer(l, repo),
		log:       s.Logger,
	}
}

// inTx runs fn in one transaction and notifies after a successful commit.
func (s *Service) inTx(ctx context.Context, fn func(w *work) error) error {
	var changed []ledger.Summary
	err := s.Repo.WithTx(ctx, func(repo Repository) error {
		w := s.newWork(repo)
		if err := fn(w); err != nil {
			return err
		}
		changed = w.changed
		return nil
	})
	if err != nil {
		return err
	}
	if s.Notifier != nil {
		for _, sum := range changed {
			s.Notifier.BalanceChanged(ctx, sum.EmployeeID, sum)
		}
	}
	return nil
}

// prepare seeds from the legacy fields and refreshes accrual up to now.
// Missing leave config is logged, not returned.
func (w *work) prepare(ctx context.Context, emp *Employee) error {
	if _, err := w.seedFromLegacy(ctx, emp); err != nil {
		return err
	}
	written, err := w.accrual.EnsureAccrualUpToDate(ctx, emp.ID, emp.Config, w.ledger.Clock.Now())
	if errors.Is(err, ledger.ErrMissingLeaveConfig) {
		w.log.Warn("accrual skipped",
			zap.String("employee_id", string(emp.ID)),
			zap.Error(err),
		)
		return nil
	}
	if err != nil {
		return err
	}
	w.logAccruals(emp.ID, written)
	return nil
}

func (w *work) seedFromLegacy(ctx context.Context, emp *Employee) (bool, error) {
	seeded, err := w.seeder.SeedIfMissing(ctx, emp.ID, emp.LegacyVacationMinutes, emp.LegacyCarryoverMinutes)
	if err != nil {
		return false, err
	}
	if seeded {
		w.log.Info("opening balance seeded",
			zap.String("employee_id", string(emp.ID)),
			zap.Int64("vacation_minutes", emp.LegacyVacationMinutes),
			zap.Int64("carryover_minutes", emp.LegacyCarryoverMinutes),
		)
	}
	return seeded, nil
}

func (w *work) syncBalance(ctx context.Context, id ledger.EmployeeID) (ledger.Summary, error) {
	sum, err := w.sync.SyncCachedBalance(ctx, id)
	if err != nil {
		return sum, err
	}
	w.changed = append(w.changed, sum)
	return sum, nil
}

func (w *work) logAccruals(id ledger.EmployeeID, written []ledger.Entry) {
	for _, e := range written {
		w.log.Info("accrual posted",
			zap.String("employee_id", string(id)),
			zap.String("entry_type", string(e.Type)),
			zap.String("period", e.PeriodKey),
			zap.Int64("minutes", e.AmountMinutes),
		)
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// validateEmployee defaults the unit and rejects records the engine cannot
// display or accrue for.
func validateEmployee(emp *Employee) error {
	if emp.ID == "" {
		return fmt.Errorf("%w: employee id is required", ledger.ErrInvalidInput)
	}
	if emp.Config.Unit == "" {
		emp.Config.Unit = UnitHours
	}
	if !emp.Config.Unit.Valid() {
		return fmt.Errorf("%w: unit %q", ledger.ErrInvalidInput, emp.Config.Unit)
	}
	if emp.Config.Unit == UnitDays && !emp.Config.HoursPerDay.IsPositive() {
		return &ledger.MissingLeaveConfigError{EmployeeID: emp.ID, Field: "hours_per_day"}
	}
	return nil
}

// RegisterEmployee validates and stores a new employee.
func (s *Service) RegisterEmployee(ctx context.Context, emp Employee) (*Employee, error) {
	if err := validateEmployee(&emp); err != nil {
		return nil, err
	}
	emp.CreatedAt = s.Clock.Now()
	emp.Cached = CachedBalance{Unit: emp.Config.Unit}

	if err := s.Repo.CreateEmployee(ctx, emp); err != nil {
		return nil, err
	}
	s.Logger.Info("employee registered", zap.String("employee_id", string(emp.ID)))
	return &emp, nil
}

// UpdateEmployee replaces an employee's leave config and legacy fields,
// for example to supply the hours-per-day a missing-config error asked for.
// A ledger-managed employee has the cache re-synced in the new unit. Legacy
// fields no longer matter once the opening balance is seeded.
func (s *Service) UpdateEmployee(ctx context.Context, emp Employee, actor string) (*Employee, error) {
	if err := validateEmployee(&emp); err != nil {
		return nil, err
	}

	var updated *Employee
	err := s.inTx(ctx, func(w *work) error {
		if _, err := w.repo.GetEmployee(ctx, emp.ID); err != nil {
			return err
		}
		if err := w.repo.UpdateEmployee(ctx, emp); err != nil {
			return err
		}
		n, err := w.ledger.CountByEmployee(ctx, emp.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			if _, err := w.syncBalance(ctx, emp.ID); err != nil {
				return err
			}
		}
		updated, err = w.repo.GetEmployee(ctx, emp.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("employee updated",
		zap.String("employee_id", string(emp.ID)),
		zap.String("unit", string(emp.Config.Unit)),
		zap.String("actor", actor),
	)
	return updated, nil
}

func (s *Service) GetEmployee(ctx context.Context, id ledger.EmployeeID) (*Employee, error) {
	return s.Repo.GetEmployee(ctx, id)
}

func (s *Service) ListEmployees(ctx context.Context) ([]Employee, error) {
	return s.Repo.ListEmployees(ctx)
}

// Entries returns the employee's ledger entries, oldest first.
func (s *Service) Entries(ctx context.Context, id ledger.EmployeeID, f ledger.Filter) ([]ledger.Entry, error) {
	if _, err := s.Repo.GetEmployee(ctx, id); err != nil {
		return nil, err
	}
	return ledger.NewLedger(s.Repo, s.Clock).QueryByEmployee(ctx, id, f)
}

// =============================================================================
// SEEDING AND ACCRUAL
// =============================================================================

// SeedIfMissing seeds the given legacy amounts and syncs the cache.
func (s *Service) SeedIfMissing(ctx context.Context, id ledger.EmployeeID, legacyVacationMinutes, legacyCarryoverMinutes int64) (bool, error) {
	var seeded bool
	err := s.inTx(ctx, func(w *work) error {
		emp, err := w.repo.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		emp.LegacyVacationMinutes = legacyVacationMinutes
		emp.LegacyCarryoverMinutes = legacyCarryoverMinutes
		if seeded, err = w.seedFromLegacy(ctx, emp); err != nil || !seeded {
			return err
		}
		_, err = w.syncBalance(ctx, id)
		return err
	})
	return seeded, err
}

// SeedFromLegacy seeds from the legacy fields stored on the employee record.
func (s *Service) SeedFromLegacy(ctx context.Context, id ledger.EmployeeID) (bool, error) {
	var seeded bool
	err := s.inTx(ctx, func(w *work) error {
		emp, err := w.repo.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		if seeded, err = w.seedFromLegacy(ctx, emp); err != nil || !seeded {
			return err
		}
		_, err = w.syncBalance(ctx, id)
		return err
	})
	return seeded, err
}

// EnsureAccrualUpToDate posts the missing monthly accruals up to asOf.
// Unlike the workflows, missing leave config is returned to the caller.
func (s *Service) EnsureAccrualUpToDate(ctx context.Context, id ledger.EmployeeID, asOf time.Time) ([]ledger.Entry, error) {
	var written []ledger.Entry
	err := s.inTx(ctx, func(w *work) error {
		emp, err := w.repo.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		if _, err := w.seedFromLegacy(ctx, emp); err != nil {
			return err
		}
		if written, err = w.accrual.EnsureAccrualUpToDate(ctx, id, emp.Config, asOf); err != nil {
			return err
		}
		w.logAccruals(id, written)
		_, err = w.syncBalance(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

// RefreshReport is the outcome of RefreshAll.
type RefreshReport struct {
	AsOf      time.Time
	Employees int
	Posted    int
	Skipped   []ledger.EmployeeID // missing leave config
	Failed    map[ledger.EmployeeID]string
}

// RefreshAll runs EnsureAccrualUpToDate for every employee, one transaction
// each. A failing employee does not stop the others.
func (s *Service) RefreshAll(ctx context.Context, asOf time.Time) (RefreshReport, error) {
	emps, err := s.Repo.ListEmployees(ctx)
	if err != nil {
		return RefreshReport{}, fmt.Errorf("list employees: %w", err)
	}

	report := RefreshReport{AsOf: asOf, Employees: len(emps), Failed: map[ledger.EmployeeID]string{}}
	for _, emp := range emps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		written, err := s.EnsureAccrualUpToDate(ctx, emp.ID, asOf)
		switch {
		case errors.Is(err, ledger.ErrMissingLeaveConfig):
			report.Skipped = append(report.Skipped, emp.ID)
		case err != nil:
			report.Failed[emp.ID] = err.Error()
			s.Logger.Error("accrual refresh failed", zap.String("employee_id", string(emp.ID)), zap.Error(err))
		default:
			report.Posted += len(written)
		}
	}

	s.Logger.Info("accrual refresh done",
		zap.Time("as_of", asOf),
		zap.Int("employees", report.Employees),
		zap.Int("posted", report.Posted),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// =============================================================================
// CARRYOVER AND ADJUSTMENTS
// =============================================================================

// SetCarryover replaces the year's carryover and syncs the cache.
func (s *Service) SetCarryover(ctx context.Context, id ledger.EmployeeID, year int, minutes int64, actor string) (ledger.Entry, error) {
	var entry ledger.Entry
	err := s.inTx(ctx, func(w *work) error {
		emp, err := w.repo.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		if err := w.prepare(ctx, emp); err != nil {
			return err
		}
		md := ledger.Metadata{CreatedBy: actor, Notes: fmt.Sprintf("carryover %d", year)}
		if entry, err = w.carryover.SetCarryover(ctx, id, year, minutes, md); err != nil {
			return err
		}
		w.log.Info("carryover set",
			zap.String("employee_id", string(id)),
			zap.String("entry_type", string(ledger.TypeCarryover)),
			zap.Int("year", year),
			zap.Int64("minutes", minutes),
			zap.String("actor", actor),
		)
		_, err = w.syncBalance(ctx, id)
		return err
	})
	return entry, err
}

// Adjust posts a manual ADJUSTMENT and syncs the cache.
func (s *Service) Adjust(ctx context.Context, id ledger.EmployeeID, minutes int64, notes, actor string) (ledger.Entry, error) {
	if minutes == 0 {
		return ledger.Entry{}, fmt.Errorf("%w: adjustment of zero minutes", ledger.ErrInvalidInput)
	}
	var entry ledger.Entry
	err := s.inTx(ctx, func(w *work) error {
		emp, err := w.repo.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		if err := w.prepare(ctx, emp); err != nil {
			return err
		}
		entry, err = w.ledger.Append(ctx, ledger.Entry{
			EmployeeID:    id,
			Type:          ledger.TypeAdjustment,
			AmountMinutes: minutes,
			CreatedBy:     actor,
			Notes:         notes,
		})
		if err != nil {
			return err
		}
		w.log.Info("adjustment posted",
			zap.String("employee_id", string(id)),
			zap.String("entry_type", string(ledger.TypeAdjustment)),
			zap.Int64("minutes", minutes),
			zap.String("actor", actor),
		)
		_, err = w.syncBalance(ctx, id)
		return err
	})
	return entry, err
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// ApproveLeave charges the request against the ledger. Approving the same
// request twice returns the first TAKEN entry.
func (s *Service) ApproveLeave(ctx context.Context, req LeaveRequest, r roster.Roster, actor string) (Approval, error) {
	if req.ID == "" {
		return Approval{}, fmt.Errorf("leave request id: %w", ledger.ErrPeriodKeyRequired)
	}
	minutes, err := roster.ComputeMinutes(req.StartDate, req.EndDate, req.StartTime, req.EndTime, r)
	if err != nil {
		return Approval{}, err
	}

	out := Approval{RequestID: req.ID, Minutes: minutes}
	err = s.inTx(ctx, func(w *work) error {
		emp, err := w.repo.GetEmployee(ctx, req.EmployeeID)
		if err != nil {
			return err
		}
		if err := w.prepare(ctx, emp); err != nil {
			return err
		}

		prior, err := w.takenFor(ctx, req.EmployeeID, req.ID)
		if err != nil {
			return err
		}
		if prior != nil {
			out.AlreadyApproved = true
			out.Entry = prior
			out.Minutes = int(-prior.AmountMinutes)
			out.Summary, err = ledger.NewAggregator(w.repo).Summarize(ctx, req.EmployeeID)
			out.Negative = out.Summary.WouldGoNegative(0)
			return err
		}

		if minutes > 0 {
			e, err := w.ledger.Append(ctx, ledger.Entry{
				EmployeeID:     req.EmployeeID,
				Type:           ledger.TypeTaken,
				AmountMinutes:  -int64(minutes),
				PeriodKey:      req.ID,
				LeaveRequestID: req.ID,
				CreatedBy:      actor,
				Notes:          req.Notes,
			})
			if err != nil {
				return err
			}
			out.Entry = &e
		}

		if out.Summary, err = w.syncBalance(ctx, req.EmployeeID); err != nil {
			return err
		}
		out.Negative = out.Summary.WouldGoNegative(0)

		w.log.Info("leave approved",
			zap.String("employee_id", string(req.EmployeeID)),
			zap.String("entry_type", string(ledger.TypeTaken)),
			zap.String("request_id", req.ID),
			zap.Int("minutes", minutes),
			zap.Int64("balance_minutes", out.Summary.BalanceMinutes),
			zap.Bool("negative", out.Negative),
			zap.String("actor", actor),
		)
		return nil
	})
	if err != nil {
		return Approval{}, err
	}
	return out, nil
}

// CancelLeave reverses an approved request with a compensating ADJUSTMENT.
// Cancelling twice returns the first compensation.
func (s *Service) CancelLeave(ctx context.Context, id ledger.EmployeeID, requestID, actor string) (ledger.Entry, error) {
	if requestID == "" {
		return ledger.Entry{}, fmt.Errorf("leave request id: %w", ledger.ErrPeriodKeyRequired)
	}
	var entry ledger.Entry
	err := s.inTx(ctx, func(w *work) error {
		if _, err := w.repo.GetEmployee(ctx, id); err != nil {
			return err
		}
		entries, err := w.ledger.QueryByEmployee(ctx, id, ledger.Filter{LeaveRequestID: requestID})
		if err != nil {
			return err
		}

		var taken int64
		found := false
		for _, e := range entries {
			switch e.Type {
			case ledger.TypeAdjustment:
				entry = e
				return nil
			case ledger.TypeTaken:
				taken += e.AmountMinutes
				found = true
			}
		}
		if !found {
			return fmt.Errorf("leave request %s: %w", requestID, ledger.ErrNotFound)
		}

		entry, err = w.ledger.Append(ctx, ledger.Entry{
			EmployeeID:     id,
			Type:           ledger.TypeAdjustment,
			AmountMinutes:  -taken,
			LeaveRequestID: requestID,
			CreatedBy:      actor,
			Notes:          "leave cancelled",
		})
		if err != nil {
			return err
		}
		w.log.Info("leave cancelled",
			zap.String("employee_id", string(id)),
			zap.String("entry_type", string(ledger.TypeAdjustment)),
			zap.String("request_id", requestID),
			zap.Int64("minutes", -taken),
			zap.String("actor", actor),
		)
		_, err = w.syncBalance(ctx, id)
		return err
	})
	return entry, err
}

// PreviewLeave computes what approving the request would do. Nothing is
// written: pending accruals and an unseeded legacy balance are projected.
func (s *Service) PreviewLeave(ctx context.Context, req LeaveRequest, r roster.Roster) (Preview, error) {
	minutes, err := roster.ComputeMinutes(req.StartDate, req.EndDate, req.StartTime, req.EndTime, r)
	if err != nil {
		return Preview{}, err
	}
	emp, err := s.Repo.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return Preview{}, err
	}

	w := s.newWork(s.Repo)
	projected, err := w.projectedBalance(ctx, emp)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		Minutes:         minutes,
		BalanceBefore:   projected.BalanceMinutes,
		BalanceAfter:    projected.BalanceMinutes - int64(minutes),
		WouldBeNegative: projected.WouldGoNegative(int64(minutes)),
	}, nil
}

func (w *work) takenFor(ctx context.Context, id ledger.EmployeeID, requestID string) (*ledger.Entry, error) {
	entries, err := w.ledger.QueryByEmployee(ctx, id, ledger.Filter{
		Types:          []ledger.EntryType{ledger.TypeTaken},
		LeaveRequestID: requestID,
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// projectedBalance is the balance the employee would have after seeding and
// accrual, computed without writing.
func (w *work) projectedBalance(ctx context.Context, emp *Employee) (ledger.Summary, error) {
	entries, err := w.ledger.QueryByEmployee(ctx, emp.ID, ledger.Filter{})
	if err != nil {
		return ledger.Summary{}, err
	}
	sum := ledger.Summarize(emp.ID, entries)
	if len(entries) == 0 {
		sum.BalanceMinutes = emp.LegacyVacationMinutes + emp.LegacyCarryoverMinutes
	}

	periods, err := w.accrual.Plan(emp.ID, emp.Config, w.ledger.Clock.Now())
	if errors.Is(err, ledger.ErrMissingLeaveConfig) {
		return sum, nil
	}
	if err != nil {
		return ledger.Summary{}, err
	}
	have := map[string]bool{}
	for _, e := range entries {
		if e.Type == ledger.TypeAccrual {
			have[e.PeriodKey] = true
		}
	}
	for _, p := range periods {
		if !have[p.Key()] {
			sum.BalanceMinutes += p.Minutes
		}
	}
	return sum, nil
}

// =============================================================================
// BALANCE
// =============================================================================

// Balance returns the cached projection, or with fresh set, refreshes the
// ledger (seed, accrual, sync) and returns the aggregate too.
func (s *Service) Balance(ctx context.Context, id ledger.EmployeeID, fresh bool) (BalanceView, error) {
	if !fresh {
		emp, err := s.Repo.GetEmployee(ctx, id)
		if err != nil {
			return BalanceView{}, err
		}
		if !emp.Cached.SyncedAt.IsZero() {
			return BalanceView{EmployeeID: id, Cached: emp.Cached}, nil
		}
		// Never synced: the legacy fields are still the balance of record.
		c, err := legacyBalance(emp)
		if err != nil {
			return BalanceView{}, err
		}
		return BalanceView{EmployeeID: id, Cached: c, FromLegacy: true}, nil
	}

	var view BalanceView
	err := s.inTx(ctx, func(w *work) error {
		emp, err := w.repo.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		if err := w.prepare(ctx, emp); err != nil {
			return err
		}
		sum, err := w.syncBalance(ctx, id)
		if err != nil {
			return err
		}
		emp, err = w.repo.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		view = BalanceView{EmployeeID: id, Summary: &sum, Cached: emp.Cached, Fresh: true}
		return nil
	})
	return view, err
}

// legacyBalance projects the pre-ledger balance fields. SyncedAt stays zero.
func legacyBalance(emp *Employee) (CachedBalance, error) {
	sum := ledger.Summary{
		EmployeeID:       emp.ID,
		BalanceMinutes:   emp.LegacyVacationMinutes + emp.LegacyCarryoverMinutes,
		CarryoverMinutes: emp.LegacyCarryoverMinutes,
	}
	return Project(emp.ID, sum, 0, emp.Config)
}

// SyncCachedBalance rebuilds the cached balance from the ledger.
func (s *Service) SyncCachedBalance(ctx context.Context, id ledger.EmployeeID) (ledger.Summary, error) {
	var sum ledger.Summary
	err := s.inTx(ctx, func(w *work) error {
		var err error
		sum, err = w.syncBalance(ctx, id)
		return err
	})
	return sum, err
}
