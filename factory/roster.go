/*
Package factory provides JSON to Go conversion for leave settings.

PURPOSE:
  Converts the JSON documents configured in settings and sent by the admin
  UI into the Go values the leave core reads: the workshop roster and the
  per-employee leave configuration. The core never parses JSON itself.

ROSTER JSON SCHEMA:
  {
    "days":   ["monday", "tuesday", "wednesday", "thursday", "friday"],
    "start":  "08:30",
    "end":    "17:00",
    "breaks": [{"start": "12:00", "end": "12:30"}],
    "overrides": {
      "saturday": {"start": "09:00", "end": "12:00"}
    }
  }

  "days" share the default shift; "overrides" add or replace single
  weekdays with their own shift and breaks.

USAGE:
  f := factory.NewRosterFactory()
  r, err := f.ParseRoster(jsonString)

SEE ALSO:
  - roster/roster.go:   Roster type definition
  - factory/employee.go: Employee leave config JSON
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/roster"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RosterJSON is the JSON representation of the workshop roster.
type RosterJSON struct {
	Days      []string             `json:"days"`
	Start     string               `json:"start"`
	End       string               `json:"end"`
	Breaks    []BreakJSON          `json:"breaks,omitempty"`
	Overrides map[string]ShiftJSON `json:"overrides,omitempty"`
}

// ShiftJSON is one weekday's own shift.
type ShiftJSON struct {
	Start  string      `json:"start"`
	End    string      `json:"end"`
	Breaks []BreakJSON `json:"breaks,omitempty"`
}

// BreakJSON is an unpaid break inside a shift.
type BreakJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RosterSettingKey is the settings key the roster JSON is stored under.
const RosterSettingKey = "roster"

// DefaultRosterJSON is used until an administrator saves a roster.
const DefaultRosterJSON = `{
  "days": ["monday", "tuesday", "wednesday", "thursday", "friday"],
  "start": "08:30",
  "end": "17:00",
  "breaks": [{"start": "12:00", "end": "12:30"}]
}`

// =============================================================================
// ROSTER FACTORY
// =============================================================================

// RosterFactory converts JSON rosters to roster.Roster.
type RosterFactory struct{}

// NewRosterFactory creates a new roster factory.
func NewRosterFactory() *RosterFactory {
	return &RosterFactory{}
}

// ParseRoster parses a JSON string into a validated Roster.
// Errors wrap ledger.ErrInvalidInput.
func (f *RosterFactory) ParseRoster(jsonStr string) (roster.Roster, error) {
	var rj RosterJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return roster.Roster{}, fmt.Errorf("%w: failed to parse roster JSON: %v", ledger.ErrInvalidInput, err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RosterJSON to a validated Roster.
func (f *RosterFactory) FromJSON(rj RosterJSON) (roster.Roster, error) {
	r, err := f.fromJSON(rj)
	if err != nil {
		return roster.Roster{}, fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}
	return r, nil
}

func (f *RosterFactory) fromJSON(rj RosterJSON) (roster.Roster, error) {
	if len(rj.Days) == 0 && len(rj.Overrides) == 0 {
		return roster.Roster{}, fmt.Errorf("roster has no working days")
	}
	r := roster.Roster{Days: make(map[time.Weekday]roster.Shift)}

	if len(rj.Days) > 0 {
		shift, err := parseShift(ShiftJSON{Start: rj.Start, End: rj.End, Breaks: rj.Breaks})
		if err != nil {
			return roster.Roster{}, err
		}
		for _, d := range rj.Days {
			wd, err := parseWeekday(d)
			if err != nil {
				return roster.Roster{}, err
			}
			r.Days[wd] = shift
		}
	}

	for d, sj := range rj.Overrides {
		wd, err := parseWeekday(d)
		if err != nil {
			return roster.Roster{}, err
		}
		shift, err := parseShift(sj)
		if err != nil {
			return roster.Roster{}, fmt.Errorf("%s: %w", d, err)
		}
		r.Days[wd] = shift
	}

	if err := r.Validate(); err != nil {
		return roster.Roster{}, err
	}
	return r, nil
}

// ToJSON converts a Roster to RosterJSON. Every working day is written as an
// override so that per-day shifts survive the round trip.
func (f *RosterFactory) ToJSON(r roster.Roster) RosterJSON {
	rj := RosterJSON{Overrides: make(map[string]ShiftJSON, len(r.Days))}
	for wd, s := range r.Days {
		sj := ShiftJSON{Start: s.Start.String(), End: s.End.String()}
		for _, b := range s.Breaks {
			sj.Breaks = append(sj.Breaks, BreakJSON{Start: b.Start.String(), End: b.End.String()})
		}
		rj.Overrides[strings.ToLower(wd.String())] = sj
	}
	return rj
}

// WorkingDays lists the roster's working weekdays, Sunday first.
func WorkingDays(r roster.Roster) []time.Weekday {
	days := make([]time.Weekday, 0, len(r.Days))
	for wd := range r.Days {
		days = append(days, wd)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

func parseShift(sj ShiftJSON) (roster.Shift, error) {
	start, err := roster.ParseClock(sj.Start)
	if err != nil {
		return roster.Shift{}, fmt.Errorf("shift start: %w", err)
	}
	end, err := roster.ParseClock(sj.End)
	if err != nil {
		return roster.Shift{}, fmt.Errorf("shift end: %w", err)
	}
	shift := roster.Shift{Start: start, End: end}
	for _, bj := range sj.Breaks {
		bs, err := roster.ParseClock(bj.Start)
		if err != nil {
			return roster.Shift{}, fmt.Errorf("break start: %w", err)
		}
		be, err := roster.ParseClock(bj.End)
		if err != nil {
			return roster.Shift{}, fmt.Errorf("break end: %w", err)
		}
		shift.Breaks = append(shift.Breaks, roster.Interval{Start: bs, End: be})
	}
	return shift, nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return wd, nil
}
