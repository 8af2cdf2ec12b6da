package model

import "time"

// Milestone records a streak threshold crossing, e.g. a habit reaching
// a 7-day streak. Emitted by the streak calculator on log writes.
type Milestone struct {
	ID        int64     `json:"id"`
	HabitID   int64     `json:"habit_id"`
	Threshold int       `json:"threshold"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}
