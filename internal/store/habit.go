package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/schedule"
)

type HabitStore struct {
	db *sql.DB
}

func NewHabitStore(db *sql.DB) *HabitStore {
	return &HabitStore{db: db}
}

func scanHabit(scanner interface{ Scan(...any) error }) (*model.Habit, error) {
	var h model.Habit
	err := scanner.Scan(
		&h.ID, &h.UserID, &h.Name, &h.Description, &h.Cadence,
		&h.Kind, &h.TargetValue, &h.Unit, &h.Archived,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

const habitCols = `id, user_id, name, description, cadence, kind, target_value, unit, archived, created_at, updated_at`

func (s *HabitStore) Create(userID int64, name, description, cadence, kind string, targetValue float64, unit string) (*model.Habit, error) {
	result, err := s.db.Exec(
		`INSERT INTO habits (user_id, name, description, cadence, kind, target_value, unit) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, name, description, cadence, kind, targetValue, unit,
	)
	if err != nil {
		return nil, fmt.Errorf("insert habit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HabitStore) GetByID(id int64) (*model.Habit, error) {
	row := s.db.QueryRow(`SELECT `+habitCols+` FROM habits WHERE id = ?`, id)
	h, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

func (s *HabitStore) ListByUser(userID int64, includeArchived bool) ([]model.Habit, error) {
	query := `SELECT ` + habitCols + ` FROM habits WHERE user_id = ?`
	if !includeArchived {
		query += ` AND archived = 0`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []model.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}

func (s *HabitStore) Update(id int64, name, description, cadence, kind string, targetValue float64, unit string) (*model.Habit, error) {
	_, err := s.db.Exec(
		`UPDATE habits SET name = ?, description = ?, cadence = ?, kind = ?, target_value = ?, unit = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, description, cadence, kind, targetValue, unit, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	return s.GetByID(id)
}

func (s *HabitStore) SetArchived(id int64, archived bool) (*model.Habit, error) {
	_, err := s.db.Exec(
		`UPDATE habits SET archived = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		archived, id,
	)
	if err != nil {
		return nil, fmt.Errorf("archive habit: %w", err)
	}
	return s.GetByID(id)
}

func (s *HabitStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM habits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return nil
}

// --- Log methods ---

func scanLog(scanner interface{ Scan(...any) error }) (*model.LogEntry, error) {
	var l model.LogEntry
	var dateKey string
	var value sql.NullFloat64

	err := scanner.Scan(&l.ID, &l.HabitID, &dateKey, &l.Completed, &value, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}

	l.Date, err = schedule.ParseDateKey(dateKey)
	if err != nil {
		return nil, fmt.Errorf("parse log date %q: %w", dateKey, err)
	}
	if value.Valid {
		l.Value = &value.Float64
	}
	return &l, nil
}

const logCols = `id, habit_id, date, completed, value, created_at, updated_at`

// UpsertLog writes the check-in for a habit on a date, replacing any
// existing entry for that date.
func (s *HabitStore) UpsertLog(habitID int64, date time.Time, completed bool, value *float64) (*model.LogEntry, error) {
	var v sql.NullFloat64
	if value != nil {
		v = sql.NullFloat64{Float64: *value, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO habit_logs (habit_id, date, completed, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT(habit_id, date) DO UPDATE SET completed = excluded.completed, value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		habitID, schedule.DateKey(date), completed, v,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert log: %w", err)
	}
	return s.GetLog(habitID, date)
}

func (s *HabitStore) GetLog(habitID int64, date time.Time) (*model.LogEntry, error) {
	row := s.db.QueryRow(
		`SELECT `+logCols+` FROM habit_logs WHERE habit_id = ? AND date = ?`,
		habitID, schedule.DateKey(date),
	)
	l, err := scanLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	return l, nil
}

func (s *HabitStore) DeleteLog(habitID int64, date time.Time) error {
	_, err := s.db.Exec(
		`DELETE FROM habit_logs WHERE habit_id = ? AND date = ?`,
		habitID, schedule.DateKey(date),
	)
	if err != nil {
		return fmt.Errorf("delete log: %w", err)
	}
	return nil
}

func (s *HabitStore) ListLogsByHabit(habitID int64) ([]model.LogEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+logCols+` FROM habit_logs WHERE habit_id = ? ORDER BY date ASC`,
		habitID,
	)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()
	return collectLogs(rows)
}

// ListLogsByUser returns every log for all of a user's habits within
// [start, end], ordered by date. Used by the calendar and analytics
// endpoints, which need multiple habits' histories at once.
func (s *HabitStore) ListLogsByUser(userID int64, start, end time.Time) ([]model.LogEntry, error) {
	rows, err := s.db.Query(
		`SELECT l.`+logColsPrefixed+` FROM habit_logs l
		 JOIN habits h ON h.id = l.habit_id
		 WHERE h.user_id = ? AND l.date >= ? AND l.date <= ?
		 ORDER BY l.date ASC`,
		userID, schedule.DateKey(start), schedule.DateKey(end),
	)
	if err != nil {
		return nil, fmt.Errorf("list logs by user: %w", err)
	}
	defer rows.Close()
	return collectLogs(rows)
}

func (s *HabitStore) ListLogsByHabits(habitIDs []int64, start, end time.Time) ([]model.LogEntry, error) {
	if len(habitIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + logCols + ` FROM habit_logs WHERE habit_id IN (`
	args := make([]any, 0, len(habitIDs)+2)
	for i, id := range habitIDs {
		if i > 0 {
			query += `, `
		}
		query += `?`
		args = append(args, id)
	}
	query += `) AND date >= ? AND date <= ? ORDER BY date ASC`
	args = append(args, schedule.DateKey(start), schedule.DateKey(end))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list logs by habits: %w", err)
	}
	defer rows.Close()
	return collectLogs(rows)
}

const logColsPrefixed = `id, l.habit_id, l.date, l.completed, l.value, l.created_at, l.updated_at`

func collectLogs(rows *sql.Rows) ([]model.LogEntry, error) {
	var logs []model.LogEntry
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}
