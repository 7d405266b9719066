/*
handlers.go - HTTP API handlers for the leave ledger

PURPOSE:
  Exposes the leave service via REST API. Handles HTTP request/response and
  JSON serialization, and delegates every balance change to leave.Service.

ENDPOINTS:
  Employees:
    GET    /api/employees                          List all employees
    POST   /api/employees                          Register employee
    GET    /api/employees/{id}                     Get employee details
    PUT    /api/employees/{id}                     Replace leave config and legacy fields
    GET    /api/employees/{id}/balance?fresh=true  Cached or fresh balance
    GET    /api/employees/{id}/entries             Ledger entries (type, period, request filters)

  Ledger:
    POST   /api/employees/{id}/seed                Seed opening balance from legacy fields
    POST   /api/employees/{id}/accruals            Post missing monthly accruals
    PUT    /api/employees/{id}/carryover/{year}    Set the year's carryover
    POST   /api/employees/{id}/adjustments         Manual correction

  Leave:
    POST   /api/employees/{id}/leave/preview       Minutes and projected balance, no writes
    POST   /api/employees/{id}/leave/approve       Charge an approved request
    POST   /api/employees/{id}/leave/{requestID}/cancel  Compensate a charged request

  Settings:
    GET    /api/settings/roster                    Workshop roster
    PUT    /api/settings/roster                    Replace the roster

  Admin:
    POST   /api/admin/accruals/refresh             Accrual refresh for all employees

ACTOR:
  The X-Actor header is recorded as CreatedBy on entries written by the
  request. Authorization happens upstream.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid range, missing leave config
  - 404: Unknown employee or leave request
  - 409: Duplicate employee or ledger key
  - 500: Internal errors
  - 503: Health check could not reach the database

SEE ALSO:
  - dto.go:    Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/roster"
	"go.uber.org/zap"
)

// ActorHeader carries the user the request acts for.
const ActorHeader = "X-Actor"

// defaultActor is recorded when no X-Actor header is sent.
const defaultActor = "api"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// SettingsStore persists workshop-wide settings such as the roster.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SaveSetting(ctx context.Context, key, value string) error
}

// Pinger checks the database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service         *leave.Service
	Settings        SettingsStore
	DB              Pinger
	EmployeeFactory *factory.EmployeeFactory
	RosterFactory   *factory.RosterFactory
	Logger          *zap.Logger
}

// NewHandler creates a new handler over the leave service.
func NewHandler(svc *leave.Service, settings SettingsStore, db Pinger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:         svc,
		Settings:        settings,
		DB:              db,
		EmployeeFactory: factory.NewEmployeeFactory(),
		RosterFactory:   factory.NewRosterFactory(),
		Logger:          logger,
	}
}

// roster loads the configured roster, or the default Mon-Fri roster when
// none was saved.
func (h *Handler) roster(ctx context.Context) (roster.Roster, error) {
	raw, ok, err := h.Settings.GetSetting(ctx, factory.RosterSettingKey)
	if err != nil {
		return roster.Roster{}, err
	}
	if !ok {
		raw = factory.DefaultRosterJSON
	}
	return h.RosterFactory.ParseRoster(raw)
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	emps, err := h.Service.ListEmployees(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, 0, len(emps))
	for _, emp := range emps {
		dtos = append(dtos, toEmployeeDTO(h.EmployeeFactory, emp))
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees": dtos})
}

// CreateEmployee registers an employee and their leave configuration.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req factory.EmployeeJSON
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	emp, err := h.EmployeeFactory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid employee", err)
		return
	}

	created, err := h.Service.RegisterEmployee(r.Context(), emp)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(h.EmployeeFactory, *created))
}

// GetEmployee returns a single employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Service.GetEmployee(r.Context(), employeeID(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(h.EmployeeFactory, *emp))
}

// UpdateEmployee replaces an employee's leave config and legacy fields. The
// body has the same shape as CreateEmployee; an id in the body must match
// the path.
// PUT /api/employees/{id}
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var req factory.EmployeeJSON
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	id := employeeID(r)
	if req.ID == "" {
		req.ID = string(id)
	}
	if req.ID != string(id) {
		writeError(w, http.StatusBadRequest, "Invalid employee",
			fmt.Errorf("body id %q does not match path id %q", req.ID, id))
		return
	}
	emp, err := h.EmployeeFactory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid employee", err)
		return
	}

	updated, err := h.Service.UpdateEmployee(r.Context(), emp, actor(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to update employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(h.EmployeeFactory, *updated))
}

// GetBalance returns the cached balance. With ?fresh=true the ledger is
// brought up to date and the aggregate is returned alongside.
// GET /api/employees/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	fresh, _ := strconv.ParseBool(r.URL.Query().Get("fresh"))

	view, err := h.Service.Balance(r.Context(), employeeID(r), fresh)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(view))
}

// GetEntries returns the employee's ledger entries in insertion order.
// GET /api/employees/{id}/entries?type=ACCRUAL,TAKEN&period=2026&request=req-1
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.Filter{
		PeriodPrefix:   q.Get("period"),
		LeaveRequestID: q.Get("request"),
	}
	if types := q.Get("type"); types != "" {
		for _, s := range strings.Split(types, ",") {
			t, err := ledger.ParseEntryType(strings.ToUpper(strings.TrimSpace(s)))
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid entry type", err)
				return
			}
			filter.Types = append(filter.Types, t)
		}
	}

	entries, err := h.Service.Entries(r.Context(), employeeID(r), filter)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get entries", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": toEntryDTOs(entries)})
}

// =============================================================================
// LEDGER WRITES
// =============================================================================

// SeedOpening converts the legacy balance fields into the OPENING entry. A
// seeded employee is left alone.
// POST /api/employees/{id}/seed
func (h *Handler) SeedOpening(w http.ResponseWriter, r *http.Request) {
	seeded, err := h.Service.SeedFromLegacy(r.Context(), employeeID(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to seed opening balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seeded": seeded})
}

// PostAccruals posts every missing monthly accrual up to as_of.
// POST /api/employees/{id}/accruals
func (h *Handler) PostAccruals(w http.ResponseWriter, r *http.Request) {
	var req AccrualRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	asOf, err := h.asOf(req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}

	written, err := h.Service.EnsureAccrualUpToDate(r.Context(), employeeID(r), asOf)
	if err != nil {
		h.writeServiceError(w, r, "Failed to post accruals", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"as_of":   asOf.Format("2006-01-02"),
		"entries": toEntryDTOs(written),
	})
}

// SetCarryover replaces the carryover for a year.
// PUT /api/employees/{id}/carryover/{year}
func (h *Handler) SetCarryover(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	var req CarryoverRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.Service.SetCarryover(r.Context(), employeeID(r), year, req.Minutes, actor(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to set carryover", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// CreateAdjustment appends a manual correction, given in minutes or as an
// amount in the employee's unit.
// POST /api/employees/{id}/adjustments
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	minutes := req.Minutes
	if req.Amount != nil {
		if req.Minutes != 0 {
			writeError(w, http.StatusBadRequest, "Invalid adjustment", errors.New("set minutes or amount, not both"))
			return
		}
		emp, err := h.Service.GetEmployee(r.Context(), employeeID(r))
		if err != nil {
			h.writeServiceError(w, r, "Failed to create adjustment", err)
			return
		}
		if minutes, err = leave.FromDisplay(emp.ID, *req.Amount, emp.Config.Unit, emp.Config.HoursPerDay); err != nil {
			h.writeServiceError(w, r, "Failed to create adjustment", err)
			return
		}
	}

	entry, err := h.Service.Adjust(r.Context(), employeeID(r), minutes, req.Notes, actor(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to create adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// PreviewLeave returns the minutes a request would charge.
// POST /api/employees/{id}/leave/preview
func (h *Handler) PreviewLeave(w http.ResponseWriter, r *http.Request) {
	req, rost, ok := h.leaveRequest(w, r)
	if !ok {
		return
	}

	p, err := h.Service.PreviewLeave(r.Context(), req, rost)
	if err != nil {
		h.writeServiceError(w, r, "Failed to preview leave", err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewDTO{
		Minutes:         p.Minutes,
		BalanceBefore:   p.BalanceBefore,
		BalanceAfter:    p.BalanceAfter,
		WouldBeNegative: p.WouldBeNegative,
	})
}

// ApproveLeave charges an approved request against the ledger. Approving
// the same request id again returns the original entry.
// POST /api/employees/{id}/leave/approve
func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	req, rost, ok := h.leaveRequest(w, r)
	if !ok {
		return
	}

	out, err := h.Service.ApproveLeave(r.Context(), req, rost, actor(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to approve leave", err)
		return
	}
	status := http.StatusCreated
	if out.AlreadyApproved || out.Entry == nil {
		status = http.StatusOK
	}
	writeJSON(w, status, toApprovalDTO(out))
}

// CancelLeave compensates the TAKEN entry of a request.
// POST /api/employees/{id}/leave/{requestID}/cancel
func (h *Handler) CancelLeave(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Service.CancelLeave(r.Context(), employeeID(r), chi.URLParam(r, "requestID"), actor(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to cancel leave", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

func (h *Handler) leaveRequest(w http.ResponseWriter, r *http.Request) (leave.LeaveRequest, roster.Roster, bool) {
	var dto LeaveRequestDTO
	if err := decodeBody(r, &dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return leave.LeaveRequest{}, roster.Roster{}, false
	}
	req, err := dto.toLeaveRequest(employeeID(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid leave request", err)
		return leave.LeaveRequest{}, roster.Roster{}, false
	}
	rost, err := h.roster(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to load roster", err)
		return leave.LeaveRequest{}, roster.Roster{}, false
	}
	return req, rost, true
}

// =============================================================================
// SETTINGS
// =============================================================================

// GetRoster returns the workshop roster.
// GET /api/settings/roster
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	rost, err := h.roster(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to load roster", err)
		return
	}
	writeJSON(w, http.StatusOK, h.RosterFactory.ToJSON(rost))
}

// UpdateRoster validates and saves the workshop roster.
// PUT /api/settings/roster
func (h *Handler) UpdateRoster(w http.ResponseWriter, r *http.Request) {
	var req factory.RosterJSON
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rost, err := h.RosterFactory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid roster", err)
		return
	}

	normalized := h.RosterFactory.ToJSON(rost)
	raw, err := json.Marshal(normalized)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode roster", err)
		return
	}
	if err := h.Settings.SaveSetting(r.Context(), factory.RosterSettingKey, string(raw)); err != nil {
		h.writeServiceError(w, r, "Failed to save roster", err)
		return
	}
	h.Logger.Info("roster updated", zap.String("actor", actor(r)))
	writeJSON(w, http.StatusOK, normalized)
}

// =============================================================================
// ADMIN
// =============================================================================

// RefreshAccruals posts missing accruals for every employee. Employees
// without leave config are reported as skipped.
// POST /api/admin/accruals/refresh
func (h *Handler) RefreshAccruals(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	asOf, err := h.asOf(req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}

	report, err := h.Service.RefreshAll(r.Context(), asOf)
	if err != nil {
		h.writeServiceError(w, r, "Failed to refresh accruals", err)
		return
	}
	writeJSON(w, http.StatusOK, toRefreshReportDTO(report))
}

// Health reports whether the server is up and the database answers.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Ping(r.Context()); err != nil {
		h.Logger.Error("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func employeeID(r *http.Request) ledger.EmployeeID {
	return ledger.EmployeeID(chi.URLParam(r, "id"))
}

func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(ActorHeader)); a != "" {
		return a
	}
	return defaultActor
}

func (h *Handler) asOf(s string) (time.Time, error) {
	if s == "" {
		return ledger.Date(h.Service.Clock.Now()), nil
	}
	t, err := ledger.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}
	return t, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}
	return nil
}

// decodeOptionalBody accepts an empty body.
func decodeOptionalBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps leave and ledger errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error(message,
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}
