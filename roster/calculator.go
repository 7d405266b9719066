package roster

import (
	"time"

	"github.com/warp/leave-ledger/ledger"
)

// ComputeMinutes returns the working minutes a leave request covers.
//
// Each calendar day in [startDate, endDate] is visited. Non-working weekdays
// contribute nothing. On a working day the request window is the whole day,
// except on the first day where it starts at startTime and on the last day
// where it ends at endTime (nil means the roster's own start or end). The
// window is clipped to the shift and break time is subtracted. A single day
// never contributes a negative amount.
//
// The result only depends on the arguments, so historical values can be
// recomputed exactly.
func ComputeMinutes(startDate, endDate time.Time, startTime, endTime *Clock, r Roster) (int, error) {
	first, last := ledger.Date(startDate), ledger.Date(endDate)
	if first.After(last) {
		return 0, &ledger.InvalidRangeError{Start: startDate, End: endDate, Reason: "start date after end date"}
	}
	if first.Equal(last) && startTime != nil && endTime != nil && *startTime > *endTime {
		return 0, &ledger.InvalidRangeError{Start: startDate, End: endDate, Reason: "start time after end time"}
	}

	total := 0
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		shift, working := r.ShiftFor(day.Weekday())
		if !working {
			continue
		}

		window := Interval{Start: Midnight, End: EndOfDay}
		if day.Equal(first) && startTime != nil {
			window.Start = *startTime
		}
		if day.Equal(last) && endTime != nil {
			window.End = *endTime
		}
		total += shift.netMinutes(window)
	}
	return total, nil
}
