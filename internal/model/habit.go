package model

import "time"

// Habit value kinds. Boolean habits are done/not-done; counter and
// duration habits carry a numeric value checked against TargetValue.
const (
	KindBoolean  = "boolean"
	KindCounter  = "counter"
	KindDuration = "duration"
)

type Habit struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Cadence     string    `json:"cadence"` // e.g. "FREQ=DAILY" or "FREQ=WEEKLY;BYDAY=MO,WE,FR"
	Kind        string    `json:"kind"`
	TargetValue float64   `json:"target_value"`
	Unit        string    `json:"unit"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LogEntry is one check-in for a habit on a calendar date. Date is
// date-only, already in the owning user's local calendar. At most one
// entry exists per (habit, date).
type LogEntry struct {
	ID        int64     `json:"id"`
	HabitID   int64     `json:"habit_id"`
	Date      time.Time `json:"date"`
	Completed bool      `json:"completed"`
	Value     *float64  `json:"value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Streak is the cached streak row for a habit. The pure recompute in
// internal/streak is the source of truth; this row only exists so list
// views don't rescan the full log history.
type Streak struct {
	HabitID            int64      `json:"habit_id"`
	Current            int        `json:"current"`
	Longest            int        `json:"longest"`
	LastQualifyingDate *time.Time `json:"last_qualifying_date,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
