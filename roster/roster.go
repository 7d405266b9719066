/*
Package roster models the working-time schedule a leave request is measured
against, and converts date/time spans into minutes.

ROSTER:
  A Roster maps each working weekday to a Shift: the daily start and end clock
  time and the break intervals inside it. A weekday without a shift is a
  non-working day. Rosters come from global settings and are passed in
  explicitly; this package never loads them.

EXAMPLE:
  r := roster.Weekly(roster.MondayToFriday,
      roster.MustClock("08:30"), roster.MustClock("17:00"),
      roster.Interval{Start: roster.MustClock("12:00"), End: roster.MustClock("12:30")})

  minutes, err := roster.ComputeMinutes(wed, wed, nil, nil, r) // 480

SEE ALSO:
  - calculator.go: ComputeMinutes
  - factory/roster.go: JSON settings -> Roster
*/
package roster

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CLOCK TIME
// =============================================================================

// Clock is a time of day in minutes since midnight, 0..1440.
type Clock int

const (
	Midnight Clock = 0
	EndOfDay Clock = 24 * 60
)

// ParseClock parses "HH:MM". "24:00" is accepted as end of day.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock time %q: out of range", s)
	}
	return Clock(h*60 + m), nil
}

// MustClock is ParseClock for constants; it panics on malformed input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// =============================================================================
// SHIFT & ROSTER
// =============================================================================

// Interval is a clock-time span [Start, End).
type Interval struct {
	Start Clock
	End   Clock
}

func (i Interval) Minutes() int {
	if i.End <= i.Start {
		return 0
	}
	return int(i.End - i.Start)
}

func (i Interval) overlap(o Interval) Interval {
	s, e := i.Start, i.End
	if o.Start > s {
		s = o.Start
	}
	if o.End < e {
		e = o.End
	}
	if e < s {
		e = s
	}
	return Interval{Start: s, End: e}
}

// Shift is the working window of one weekday.
type Shift struct {
	Start  Clock
	End    Clock
	Breaks []Interval
}

// Roster is the weekly working-time schedule.
type Roster struct {
	Days map[time.Weekday]Shift
}

var MondayToFriday = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// Weekly builds a roster with the same shift on every listed weekday.
func Weekly(days []time.Weekday, start, end Clock, breaks ...Interval) Roster {
	r := Roster{Days: make(map[time.Weekday]Shift, len(days))}
	for _, d := range days {
		r.Days[d] = Shift{Start: start, End: end, Breaks: append([]Interval(nil), breaks...)}
	}
	return r
}

// ShiftFor returns the shift for a weekday and whether it is a working day.
func (r Roster) ShiftFor(wd time.Weekday) (Shift, bool) {
	s, ok := r.Days[wd]
	return s, ok
}

// DailyMinutes is the net working time of a full day on that weekday.
func (r Roster) DailyMinutes(wd time.Weekday) int {
	s, ok := r.ShiftFor(wd)
	if !ok {
		return 0
	}
	return s.netMinutes(Interval{Start: s.Start, End: s.End})
}

// Validate checks every shift window and break.
func (r Roster) Validate() error {
	for wd, s := range r.Days {
		if s.Start < Midnight || s.End > EndOfDay || s.End <= s.Start {
			return fmt.Errorf("roster %s: shift %s-%s is empty or out of range", wd, s.Start, s.End)
		}
		for _, b := range s.Breaks {
			if b.Start < Midnight || b.End > EndOfDay || b.End <= b.Start {
				return fmt.Errorf("roster %s: break %s-%s is empty or out of range", wd, b.Start, b.End)
			}
		}
	}
	return nil
}

// netMinutes is the length of window inside the shift minus any break time.
func (s Shift) netMinutes(window Interval) int {
	worked := window.overlap(Interval{Start: s.Start, End: s.End})
	total := worked.Minutes()
	for _, b := range mergeBreaks(s.Breaks) {
		total -= worked.overlap(b).Minutes()
	}
	if total < 0 {
		return 0
	}
	return total
}

// mergeBreaks sorts breaks and joins overlapping ones so no minute is
// subtracted twice.
func mergeBreaks(breaks []Interval) []Interval {
	if len(breaks) < 2 {
		return breaks
	}
	sorted := append([]Interval(nil), breaks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []Interval{sorted[0]}
	for _, b := range sorted[1:] {
		last := &merged[len(merged)-1]
		if b.Start <= last.End {
			if b.End > last.End {
				last.End = b.End
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}
