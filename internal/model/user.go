package model

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Timezone     string    `json:"timezone"`      // IANA name, e.g. "America/Chicago"
	ReminderHour int       `json:"reminder_hour"` // local hour (0-23) for push reminders, -1 = off
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
