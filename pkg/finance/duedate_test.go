package finance

import (
	"errors"
	"testing"
	"time"
)

func TestNextDueDateRollsFixedIncrements(t *testing.T) {
	start := date(2024, time.January, 1)
	now := date(2024, time.March, 15)

	// 30-day increments from Jan 1: Jan 31, Mar 1, Mar 31. The first date
	// strictly after Mar 15 is Mar 31; these are day counts, not calendar
	// months.
	got, err := NextDueDate(start, 30, now)
	if err != nil {
		t.Fatalf("NextDueDate failed: %v", err)
	}
	if want := date(2024, time.March, 31); !got.Equal(want) {
		t.Errorf("Expected due date %s, got %s", want, got)
	}
}

func TestNextDueDateBeforeStart(t *testing.T) {
	start := date(2024, time.June, 1)
	got, err := NextDueDate(start, 30, date(2024, time.January, 1))
	if err != nil {
		t.Fatalf("NextDueDate failed: %v", err)
	}
	if !got.Equal(start) {
		t.Errorf("Expected start date %s before loan starts, got %s", start, got)
	}
}

func TestNextDueDateStrictlyFuture(t *testing.T) {
	start := date(2024, time.January, 1)

	// Exactly on a due date the next one is returned, never the current.
	got, err := NextDueDate(start, 30, start.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("NextDueDate failed: %v", err)
	}
	if want := start.AddDate(0, 0, 60); !got.Equal(want) {
		t.Errorf("Expected due date %s, got %s", want, got)
	}

	// now == start is not before start, so the first period applies.
	got, err = NextDueDate(start, 30, start)
	if err != nil {
		t.Fatalf("NextDueDate failed: %v", err)
	}
	if want := start.AddDate(0, 0, 30); !got.Equal(want) {
		t.Errorf("Expected due date %s, got %s", want, got)
	}
}

func TestNextDueDateCongruentWithStart(t *testing.T) {
	start := date(2023, time.July, 14)
	const durationDays = 45

	for offset := 0; offset < 500; offset += 13 {
		now := start.AddDate(0, 0, offset)
		got, err := NextDueDate(start, durationDays, now)
		if err != nil {
			t.Fatalf("NextDueDate failed at offset %d: %v", offset, err)
		}
		if !got.After(now) {
			t.Fatalf("Due date %s not after %s", got, now)
		}
		elapsed := int(got.Sub(start).Hours() / 24)
		if elapsed%durationDays != 0 {
			t.Fatalf("Due date %s is %d days from start, not a multiple of %d", got, elapsed, durationDays)
		}
	}
}

func TestNextDueDateInvalidDuration(t *testing.T) {
	start := date(2024, time.January, 1)
	now := date(2024, time.March, 15)

	for _, durationDays := range []int{0, -30} {
		if _, err := NextDueDate(start, durationDays, now); !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("Expected ErrInvalidDuration for %d-day period, got %v", durationDays, err)
		}
	}
}
