package schedule

import (
	"fmt"
	"time"

	"github.com/rvestal/habitat/internal/model"
)

const dateLayout = "2006-01-02"

// DayOf normalizes a timestamp to its calendar date (midnight UTC).
// All date arithmetic in the analytics packages happens on these
// normalized values; timezone conversion is the caller's job.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats a date as "YYYY-MM-DD".
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDateKey parses a "YYYY-MM-DD" string to a normalized date.
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// IntegrityError reports log data that violates upstream invariants:
// a duplicate (habit, date) entry or an entry predating the habit's
// creation. Surfaced rather than auto-corrected so upstream defects
// stay visible.
type IntegrityError struct {
	HabitID int64
	Date    time.Time
	Reason  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("habit %d, %s: %s", e.HabitID, DateKey(e.Date), e.Reason)
}

// IndexLogs builds a date-keyed index of the habit's log entries.
// Entries for other habits are ignored so callers can pass a mixed
// per-user snapshot.
func IndexLogs(habit model.Habit, logs []model.LogEntry) (map[string]model.LogEntry, error) {
	created := DayOf(habit.CreatedAt)
	index := make(map[string]model.LogEntry)
	for _, l := range logs {
		if l.HabitID != habit.ID {
			continue
		}
		d := DayOf(l.Date)
		if d.Before(created) {
			return nil, &IntegrityError{HabitID: habit.ID, Date: d, Reason: "log predates habit creation"}
		}
		key := DateKey(d)
		if _, dup := index[key]; dup {
			return nil, &IntegrityError{HabitID: habit.ID, Date: d, Reason: "duplicate log entry"}
		}
		index[key] = l
	}
	return index, nil
}

// Qualifies reports whether a log entry counts as a completed attempt:
// the completed flag is set and, for counter/duration habits, the
// logged value meets the target.
func Qualifies(habit model.Habit, log model.LogEntry) bool {
	if !log.Completed {
		return false
	}
	switch habit.Kind {
	case model.KindCounter, model.KindDuration:
		return log.Value != nil && *log.Value >= habit.TargetValue
	default:
		return true
	}
}
