package streak

import (
	"time"

	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/schedule"
)

// DefaultThresholds are the streak lengths that emit a milestone when
// first reached.
var DefaultThresholds = []int{3, 7, 14, 30, 60, 100, 365}

// Summary is the result of a full streak recompute.
type Summary struct {
	Current            int        `json:"current"`
	Longest            int        `json:"longest"`
	LastQualifyingDate *time.Time `json:"last_qualifying_date,omitempty"`
}

// Compute recalculates a habit's streaks from its complete log history
// as of the given date. A run is a maximal sequence of scheduled dates
// that are all qualifying-complete; unscheduled dates are skipped
// without effect, and a scheduled date without a qualifying log ends
// the run. Current is the trailing run ending at the last scheduled
// date on or before asOf.
//
// asOf must be the last fully-elapsed day for the user; see
// EffectiveAsOf for the still-open-today rule.
func Compute(habit model.Habit, logs []model.LogEntry, asOf time.Time) (Summary, error) {
	cadence, err := schedule.Parse(habit.Cadence)
	if err != nil {
		return Summary{}, err
	}
	index, err := schedule.IndexLogs(habit, logs)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	run := 0
	for _, d := range cadence.Dates(habit.CreatedAt, habit.CreatedAt, asOf) {
		log, ok := index[schedule.DateKey(d)]
		if ok && schedule.Qualifies(habit, log) {
			run++
			day := d
			s.LastQualifyingDate = &day
			if run > s.Longest {
				s.Longest = run
			}
		} else {
			run = 0
		}
	}
	s.Current = run
	return s, nil
}

// EffectiveAsOf applies the day-cutover rule: an unlogged "today" must
// not break an otherwise intact streak, so if today is scheduled but
// not yet qualifying-complete the computation runs as of yesterday.
// The boundary is explicit; no wall clock is consulted here.
func EffectiveAsOf(habit model.Habit, logs []model.LogEntry, today time.Time) (time.Time, error) {
	cadence, err := schedule.Parse(habit.Cadence)
	if err != nil {
		return time.Time{}, err
	}
	index, err := schedule.IndexLogs(habit, logs)
	if err != nil {
		return time.Time{}, err
	}

	today = schedule.DayOf(today)
	if !cadence.IsScheduled(habit.CreatedAt, today) {
		return today, nil
	}
	if log, ok := index[schedule.DateKey(today)]; ok && schedule.Qualifies(habit, log) {
		return today, nil
	}
	return today.AddDate(0, 0, -1), nil
}

// Crossings returns one milestone for every threshold crossed in
// (old, new]. A backfilled write can cross several thresholds at once;
// all of them are reported, in ascending order.
func Crossings(habitID int64, old, new int, thresholds []int, date time.Time) []model.Milestone {
	var out []model.Milestone
	for _, t := range thresholds {
		if old < t && t <= new {
			out = append(out, model.Milestone{
				HabitID:   habitID,
				Threshold: t,
				Date:      schedule.DayOf(date),
			})
		}
	}
	return out
}
