/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Ledger amounts are
  always integer minutes on the wire; display values come with the unit
  they are expressed in.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Employee:
    EmployeeDTO (wraps factory.EmployeeJSON), CachedBalanceDTO

  Balance:
    BalanceDTO, SummaryDTO

  Ledger:
    EntryDTO, AccrualRequest, CarryoverRequest, AdjustmentRequest

  Leave:
    LeaveRequestDTO, PreviewDTO, ApprovalDTO

  Admin:
    RefreshRequest, RefreshReportDTO

VALIDATION:
  Validation is done in handlers and the leave service, not in DTOs.

SEE ALSO:
  - handlers.go:        Uses these types
  - factory/employee.go: EmployeeJSON type
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/roster"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	factory.EmployeeJSON
	Cached    CachedBalanceDTO `json:"cached_balance"`
	CreatedAt string           `json:"created_at,omitempty"`
}

// CachedBalanceDTO is the denormalized balance stored on the employee.
type CachedBalanceDTO struct {
	Unit             string          `json:"unit"`
	Legal            decimal.Decimal `json:"legal"`
	Extra            decimal.Decimal `json:"extra"`
	Carryover        decimal.Decimal `json:"carryover"`
	LegalMinutes     int64           `json:"legal_minutes"`
	ExtraMinutes     int64           `json:"extra_minutes"`
	CarryoverMinutes int64           `json:"carryover_minutes"`
	TotalMinutes     int64           `json:"total_minutes"`
	SyncedAt         string          `json:"synced_at,omitempty"`
}

func toEmployeeDTO(f *factory.EmployeeFactory, emp leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		EmployeeJSON: f.ToJSON(emp),
		Cached:       toCachedDTO(emp.Cached),
		CreatedAt:    formatTimestamp(emp.CreatedAt),
	}
}

func toCachedDTO(c leave.CachedBalance) CachedBalanceDTO {
	return CachedBalanceDTO{
		Unit:             string(c.Unit),
		Legal:            c.Legal,
		Extra:            c.Extra,
		Carryover:        c.Carryover,
		LegalMinutes:     c.LegalMinutes,
		ExtraMinutes:     c.ExtraMinutes,
		CarryoverMinutes: c.CarryoverMinutes,
		TotalMinutes:     c.TotalMinutes(),
		SyncedAt:         formatTimestamp(c.SyncedAt),
	}
}

// =============================================================================
// BALANCE
// =============================================================================

// BalanceDTO is the response of GET /api/employees/{id}/balance.
type BalanceDTO struct {
	EmployeeID string           `json:"employee_id"`
	Fresh      bool             `json:"fresh"`
	FromLegacy bool             `json:"from_legacy,omitempty"`
	Cached     CachedBalanceDTO `json:"cached"`
	Summary    *SummaryDTO      `json:"summary,omitempty"`
}

// SummaryDTO is the ledger aggregate.
type SummaryDTO struct {
	BalanceMinutes   int64 `json:"balance_minutes"`
	CarryoverMinutes int64 `json:"carryover_minutes"`
	AccruedMinutes   int64 `json:"accrued_minutes"`
	TakenMinutes     int64 `json:"taken_minutes"`
	OpeningMinutes   int64 `json:"opening_minutes"`
	AdjustedMinutes  int64 `json:"adjusted_minutes"`
	EntryCount       int   `json:"entry_count"`
}

func toSummaryDTO(s ledger.Summary) SummaryDTO {
	return SummaryDTO{
		BalanceMinutes:   s.BalanceMinutes,
		CarryoverMinutes: s.CarryoverMinutes,
		AccruedMinutes:   s.AccruedMinutes,
		TakenMinutes:     s.TakenMinutes,
		OpeningMinutes:   s.OpeningMinutes,
		AdjustedMinutes:  s.AdjustedMinutes,
		EntryCount:       s.EntryCount,
	}
}

func toBalanceDTO(v leave.BalanceView) BalanceDTO {
	dto := BalanceDTO{
		EmployeeID: string(v.EmployeeID),
		Fresh:      v.Fresh,
		FromLegacy: v.FromLegacy,
		Cached:     toCachedDTO(v.Cached),
	}
	if v.Summary != nil {
		s := toSummaryDTO(*v.Summary)
		dto.Summary = &s
	}
	return dto
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

// EntryDTO represents one ledger entry.
type EntryDTO struct {
	ID             string `json:"id"`
	EmployeeID     string `json:"employee_id"`
	Type           string `json:"type"`
	AmountMinutes  int64  `json:"amount_minutes"`
	PeriodKey      string `json:"period_key,omitempty"`
	LeaveRequestID string `json:"leave_request_id,omitempty"`
	CreatedBy      string `json:"created_by"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:             string(e.ID),
		EmployeeID:     string(e.EmployeeID),
		Type:           string(e.Type),
		AmountMinutes:  e.AmountMinutes,
		PeriodKey:      e.PeriodKey,
		LeaveRequestID: e.LeaveRequestID,
		CreatedBy:      e.CreatedBy,
		CreatedAt:      formatTimestamp(e.CreatedAt),
		UpdatedAt:      formatTimestamp(e.UpdatedAt),
		Notes:          e.Notes,
	}
}

func toEntryDTOs(entries []ledger.Entry) []EntryDTO {
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	return dtos
}

// AccrualRequest is the body of POST /api/employees/{id}/accruals.
type AccrualRequest struct {
	AsOf string `json:"as_of,omitempty"` // YYYY-MM-DD, defaults to today
}

// CarryoverRequest is the body of PUT /api/employees/{id}/carryover/{year}.
type CarryoverRequest struct {
	Minutes int64 `json:"minutes"`
}

// AdjustmentRequest is the body of POST /api/employees/{id}/adjustments.
// Amount is in the employee's display unit and is used instead of Minutes.
type AdjustmentRequest struct {
	Minutes int64            `json:"minutes"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Notes   string           `json:"notes"`
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// LeaveRequestDTO is the body of the preview and approve endpoints. Times
// are optional "HH:MM"; without them the roster bounds of the first and last
// day apply.
type LeaveRequestDTO struct {
	RequestID string `json:"request_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

func (d LeaveRequestDTO) toLeaveRequest(id ledger.EmployeeID) (leave.LeaveRequest, error) {
	req := leave.LeaveRequest{ID: d.RequestID, EmployeeID: id, Notes: d.Notes}

	var err error
	if req.StartDate, err = ledger.ParseDate(d.StartDate); err != nil {
		return req, fmt.Errorf("%w: start_date: %v", ledger.ErrInvalidInput, err)
	}
	if d.EndDate == "" {
		req.EndDate = req.StartDate
	} else if req.EndDate, err = ledger.ParseDate(d.EndDate); err != nil {
		return req, fmt.Errorf("%w: end_date: %v", ledger.ErrInvalidInput, err)
	}
	if req.StartTime, err = parseOptionalClock("start_time", d.StartTime); err != nil {
		return req, err
	}
	if req.EndTime, err = parseOptionalClock("end_time", d.EndTime); err != nil {
		return req, err
	}
	return req, nil
}

func parseOptionalClock(field, s string) (*roster.Clock, error) {
	if s == "" {
		return nil, nil
	}
	c, err := roster.ParseClock(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ledger.ErrInvalidInput, field, err)
	}
	return &c, nil
}

// PreviewDTO is the projected effect of a leave request.
type PreviewDTO struct {
	Minutes         int   `json:"minutes"`
	BalanceBefore   int64 `json:"balance_before_minutes"`
	BalanceAfter    int64 `json:"balance_after_minutes"`
	WouldBeNegative bool  `json:"would_be_negative"`
}

// ApprovalDTO is the outcome of approving a leave request.
type ApprovalDTO struct {
	RequestID       string     `json:"request_id"`
	Minutes         int        `json:"minutes"`
	Entry           *EntryDTO  `json:"entry,omitempty"`
	Summary         SummaryDTO `json:"summary"`
	Negative        bool       `json:"negative"`
	AlreadyApproved bool       `json:"already_approved"`
}

func toApprovalDTO(a leave.Approval) ApprovalDTO {
	dto := ApprovalDTO{
		RequestID:       a.RequestID,
		Minutes:         a.Minutes,
		Summary:         toSummaryDTO(a.Summary),
		Negative:        a.Negative,
		AlreadyApproved: a.AlreadyApproved,
	}
	if a.Entry != nil {
		e := toEntryDTO(*a.Entry)
		dto.Entry = &e
	}
	return dto
}

// =============================================================================
// ADMIN
// =============================================================================

// RefreshRequest is the optional body of POST /api/admin/accruals/refresh.
type RefreshRequest struct {
	AsOf string `json:"as_of,omitempty"`
}

// RefreshReportDTO summarizes an all-employee accrual refresh.
type RefreshReportDTO struct {
	AsOf      string            `json:"as_of"`
	Employees int               `json:"employees"`
	Posted    int               `json:"posted"`
	Skipped   []string          `json:"skipped"`
	Failed    map[string]string `json:"failed"`
}

func toRefreshReportDTO(r leave.RefreshReport) RefreshReportDTO {
	dto := RefreshReportDTO{
		AsOf:      r.AsOf.Format("2006-01-02"),
		Employees: r.Employees,
		Posted:    r.Posted,
		Skipped:   make([]string, 0, len(r.Skipped)),
		Failed:    make(map[string]string, len(r.Failed)),
	}
	for _, id := range r.Skipped {
		dto.Skipped = append(dto.Skipped, string(id))
	}
	for id, msg := range r.Failed {
		dto.Failed[string(id)] = msg
	}
	return dto
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
