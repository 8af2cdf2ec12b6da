package model

import "time"

type ChallengeStatus string

const (
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
	ChallengeAbandoned ChallengeStatus = "abandoned"
)

type Challenge struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Name         string          `json:"name"`
	HabitIDs     []int64         `json:"habit_ids"`
	StartDate    time.Time       `json:"start_date"`
	DurationDays int             `json:"duration_days"`
	Status       ChallengeStatus `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ChallengeDay is one persisted row of the per-day sync table.
type ChallengeDay struct {
	ChallengeID int64     `json:"challenge_id"`
	Date        time.Time `json:"date"`
	Completed   int       `json:"completed"`
	Total       int       `json:"total"`
	PerfectDay  bool      `json:"perfect_day"`
}
