package store

import (
	"database/sql"
	"fmt"

	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/schedule"
)

type MilestoneStore struct {
	db *sql.DB
}

func NewMilestoneStore(db *sql.DB) *MilestoneStore {
	return &MilestoneStore{db: db}
}

func scanMilestone(scanner interface{ Scan(...any) error }) (*model.Milestone, error) {
	var m model.Milestone
	var dateKey string

	err := scanner.Scan(&m.ID, &m.HabitID, &m.Threshold, &dateKey, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	m.Date, err = schedule.ParseDateKey(dateKey)
	if err != nil {
		return nil, fmt.Errorf("parse milestone date %q: %w", dateKey, err)
	}
	return &m, nil
}

const milestoneCols = `id, habit_id, threshold, date, created_at`

func (s *MilestoneStore) Create(m model.Milestone) (*model.Milestone, error) {
	result, err := s.db.Exec(
		`INSERT INTO milestones (habit_id, threshold, date) VALUES (?, ?, ?)`,
		m.HabitID, m.Threshold, schedule.DateKey(m.Date),
	)
	if err != nil {
		return nil, fmt.Errorf("insert milestone: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+milestoneCols+` FROM milestones WHERE id = ?`, id)
	return scanMilestone(row)
}

func (s *MilestoneStore) ListByHabit(habitID int64) ([]model.Milestone, error) {
	rows, err := s.db.Query(
		`SELECT `+milestoneCols+` FROM milestones WHERE habit_id = ? ORDER BY date ASC, threshold ASC`,
		habitID,
	)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()
	return collectMilestones(rows)
}

func (s *MilestoneStore) ListByUser(userID int64) ([]model.Milestone, error) {
	rows, err := s.db.Query(
		`SELECT m.id, m.habit_id, m.threshold, m.date, m.created_at
		 FROM milestones m JOIN habits h ON h.id = m.habit_id
		 WHERE h.user_id = ? ORDER BY m.date DESC, m.threshold DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list milestones by user: %w", err)
	}
	defer rows.Close()
	return collectMilestones(rows)
}

func collectMilestones(rows *sql.Rows) ([]model.Milestone, error) {
	var milestones []model.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		milestones = append(milestones, *m)
	}
	return milestones, rows.Err()
}
