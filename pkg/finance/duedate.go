package finance

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDuration is returned when a due date is projected with a
// non-positive period length.
var ErrInvalidDuration = errors.New("invalid duration")

// NextDueDate projects the next payment due date strictly after now by
// rolling forward from start in durationDays-sized increments. A loan that
// has not started yet is due on its start date.
//
// The additive loop is bounded: a zero or negative durationDays is rejected
// up front, and a projection that fails to pass now within the number of
// periods the elapsed time allows is reported as an error instead of
// looping forever.
func NextDueDate(start time.Time, durationDays int, now time.Time) (time.Time, error) {
	if durationDays <= 0 {
		return time.Time{}, fmt.Errorf("%w: period must be positive, got %d days", ErrInvalidDuration, durationDays)
	}
	if now.Before(start) {
		return start, nil
	}

	maxPeriods := DaysBetween(start, now)/durationDays + 2
	due := start.AddDate(0, 0, durationDays)
	for periods := 1; !due.After(now); periods++ {
		if periods > maxPeriods {
			return time.Time{}, fmt.Errorf("due date projection from %s did not pass %s within %d periods",
				start.Format(time.DateOnly), now.Format(time.DateOnly), maxPeriods)
		}
		due = due.AddDate(0, 0, durationDays)
	}
	return due, nil
}
