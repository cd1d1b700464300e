package domain

import (
	"strings"
	"time"
)

// DefaultDueClock is used when only a due date is supplied.
const DefaultDueClock = "09:00"

// MergeDue merges a calendar date and a wall-clock time into one instant.
// date may also be a full RFC3339 instant, in which case clock is ignored.
func MergeDue(date, clock string, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, NewValidationError("due_date")
	}
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	clock = strings.TrimSpace(clock)
	if clock == "" {
		clock = DefaultDueClock
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, WrapError(ErrCodeInvalid, "invalid due date", err)
	}
	return t, nil
}
