package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/schedule"
)

type ChallengeStore struct {
	db *sql.DB
}

func NewChallengeStore(db *sql.DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

func scanChallenge(scanner interface{ Scan(...any) error }) (*model.Challenge, error) {
	var c model.Challenge
	var startKey string

	err := scanner.Scan(
		&c.ID, &c.UserID, &c.Name, &startKey, &c.DurationDays,
		&c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.StartDate, err = schedule.ParseDateKey(startKey)
	if err != nil {
		return nil, fmt.Errorf("parse challenge start %q: %w", startKey, err)
	}
	return &c, nil
}

const challengeCols = `id, user_id, name, start_date, duration_days, status, created_at, updated_at`

// Create inserts the challenge and its habit memberships in one
// transaction so a partially-created challenge never exists.
func (s *ChallengeStore) Create(userID int64, name string, habitIDs []int64, startDate time.Time, durationDays int) (*model.Challenge, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO challenges (user_id, name, start_date, duration_days, status) VALUES (?, ?, ?, ?, ?)`,
		userID, name, schedule.DateKey(startDate), durationDays, model.ChallengeActive,
	)
	if err != nil {
		return nil, fmt.Errorf("insert challenge: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, habitID := range habitIDs {
		if _, err := tx.Exec(
			`INSERT INTO challenge_habits (challenge_id, habit_id) VALUES (?, ?)`,
			id, habitID,
		); err != nil {
			return nil, fmt.Errorf("insert challenge habit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChallengeStore) GetByID(id int64) (*model.Challenge, error) {
	row := s.db.QueryRow(`SELECT `+challengeCols+` FROM challenges WHERE id = ?`, id)
	c, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}

	c.HabitIDs, err = s.listHabitIDs(id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ChallengeStore) listHabitIDs(challengeID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT habit_id FROM challenge_habits WHERE challenge_id = ? ORDER BY habit_id ASC`,
		challengeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list challenge habits: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan challenge habit: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *ChallengeStore) ListByUser(userID int64) ([]model.Challenge, error) {
	rows, err := s.db.Query(
		`SELECT `+challengeCols+` FROM challenges WHERE user_id = ? ORDER BY start_date DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []model.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		challenges = append(challenges, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range challenges {
		ids, err := s.listHabitIDs(challenges[i].ID)
		if err != nil {
			return nil, err
		}
		challenges[i].HabitIDs = ids
	}
	return challenges, nil
}

func (s *ChallengeStore) UpdateStatus(id int64, status model.ChallengeStatus) (*model.Challenge, error) {
	_, err := s.db.Exec(
		`UPDATE challenges SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update challenge status: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChallengeStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM challenges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

// --- Day methods ---

// ReplaceDays rewrites the persisted per-day table for a challenge in
// one transaction. Sync always recomputes the full window, so a
// wholesale replace keeps the table consistent with the latest logs.
func (s *ChallengeStore) ReplaceDays(challengeID int64, days []model.ChallengeDay) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM challenge_days WHERE challenge_id = ?`, challengeID); err != nil {
		return fmt.Errorf("clear challenge days: %w", err)
	}

	for _, d := range days {
		if _, err := tx.Exec(
			`INSERT INTO challenge_days (challenge_id, date, completed, total, perfect_day) VALUES (?, ?, ?, ?, ?)`,
			challengeID, schedule.DateKey(d.Date), d.Completed, d.Total, d.PerfectDay,
		); err != nil {
			return fmt.Errorf("insert challenge day: %w", err)
		}
	}
	return tx.Commit()
}

func (s *ChallengeStore) ListDays(challengeID int64) ([]model.ChallengeDay, error) {
	rows, err := s.db.Query(
		`SELECT challenge_id, date, completed, total, perfect_day
		 FROM challenge_days WHERE challenge_id = ? ORDER BY date ASC`,
		challengeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list challenge days: %w", err)
	}
	defer rows.Close()

	var days []model.ChallengeDay
	for rows.Next() {
		var d model.ChallengeDay
		var dateKey string
		if err := rows.Scan(&d.ChallengeID, &dateKey, &d.Completed, &d.Total, &d.PerfectDay); err != nil {
			return nil, fmt.Errorf("scan challenge day: %w", err)
		}
		d.Date, err = schedule.ParseDateKey(dateKey)
		if err != nil {
			return nil, fmt.Errorf("parse challenge day %q: %w", dateKey, err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
