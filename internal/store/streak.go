package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/schedule"
)

type StreakStore struct {
	db *sql.DB
}

func NewStreakStore(db *sql.DB) *StreakStore {
	return &StreakStore{db: db}
}

func scanStreak(scanner interface{ Scan(...any) error }) (*model.Streak, error) {
	var st model.Streak
	var lastDate sql.NullString

	err := scanner.Scan(&st.HabitID, &st.Current, &st.Longest, &lastDate, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastDate.Valid {
		d, err := schedule.ParseDateKey(lastDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse streak date %q: %w", lastDate.String, err)
		}
		st.LastQualifyingDate = &d
	}
	return &st, nil
}

const streakCols = `habit_id, current, longest, last_qualifying_date, updated_at`

// Upsert replaces the cached streak row for a habit with a fresh
// recompute result.
func (s *StreakStore) Upsert(habitID int64, current, longest int, lastQualifying *time.Time) (*model.Streak, error) {
	var last sql.NullString
	if lastQualifying != nil {
		last = sql.NullString{String: schedule.DateKey(*lastQualifying), Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO streaks (habit_id, current, longest, last_qualifying_date, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(habit_id) DO UPDATE SET current = excluded.current, longest = excluded.longest,
		   last_qualifying_date = excluded.last_qualifying_date, updated_at = CURRENT_TIMESTAMP`,
		habitID, current, longest, last,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert streak: %w", err)
	}
	return s.GetByHabit(habitID)
}

func (s *StreakStore) GetByHabit(habitID int64) (*model.Streak, error) {
	row := s.db.QueryRow(`SELECT `+streakCols+` FROM streaks WHERE habit_id = ?`, habitID)
	st, err := scanStreak(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return st, nil
}

func (s *StreakStore) ListByUser(userID int64) ([]model.Streak, error) {
	rows, err := s.db.Query(
		`SELECT s.habit_id, s.current, s.longest, s.last_qualifying_date, s.updated_at
		 FROM streaks s JOIN habits h ON h.id = s.habit_id
		 WHERE h.user_id = ? ORDER BY s.habit_id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list streaks: %w", err)
	}
	defer rows.Close()

	var streaks []model.Streak
	for rows.Next() {
		st, err := scanStreak(rows)
		if err != nil {
			return nil, fmt.Errorf("scan streak: %w", err)
		}
		streaks = append(streaks, *st)
	}
	return streaks, rows.Err()
}
