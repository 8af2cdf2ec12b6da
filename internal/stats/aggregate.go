package stats

import (
	"fmt"
	"math"
	"time"

	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/schedule"
)

// RangeError reports an inverted or empty date range. Rejected before
// any computation starts.
type RangeError struct {
	Start  time.Time
	End    time.Time
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range %s..%s: %s", schedule.DateKey(e.Start), schedule.DateKey(e.End), e.Reason)
}

// HabitDay is the per-habit detail for one date.
type HabitDay struct {
	HabitID   int64  `json:"habit_id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// DaySummary is the completion rollup for one calendar date.
type DaySummary struct {
	Date       string     `json:"date"`
	Completed  int        `json:"completed"`
	Total      int        `json:"total"`
	Percentage int        `json:"percentage"`
	Habits     []HabitDay `json:"habits,omitempty"`
}

// HabitFault records a habit excluded from a batch computation, so one
// misconfigured habit doesn't abort the rest.
type HabitFault struct {
	HabitID int64  `json:"habit_id"`
	Reason  string `json:"reason"`
}

// AggregateResult maps "YYYY-MM-DD" keys to day summaries.
type AggregateResult struct {
	Days   map[string]DaySummary `json:"days"`
	Faults []HabitFault          `json:"faults,omitempty"`
}

// Aggregate computes per-date completion summaries for a set of habits
// over [start, end] inclusive. A date's total counts habits scheduled
// that date; percentage is 0 when nothing is scheduled (never a
// division by zero). Habits with invalid cadences or corrupt logs are
// reported in Faults and skipped.
func Aggregate(habits []model.Habit, logs []model.LogEntry, start, end time.Time) (*AggregateResult, error) {
	start, end = schedule.DayOf(start), schedule.DayOf(end)
	if end.Before(start) {
		return nil, &RangeError{Start: start, End: end, Reason: "end before start"}
	}

	res := &AggregateResult{Days: make(map[string]DaySummary)}

	type prepared struct {
		habit   model.Habit
		cadence schedule.Cadence
		index   map[string]model.LogEntry
	}
	var ready []prepared
	for _, h := range habits {
		cadence, err := schedule.Parse(h.Cadence)
		if err != nil {
			res.Faults = append(res.Faults, HabitFault{HabitID: h.ID, Reason: err.Error()})
			continue
		}
		index, err := schedule.IndexLogs(h, logs)
		if err != nil {
			res.Faults = append(res.Faults, HabitFault{HabitID: h.ID, Reason: err.Error()})
			continue
		}
		ready = append(ready, prepared{habit: h, cadence: cadence, index: index})
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := schedule.DateKey(d)
		day := DaySummary{Date: key}
		for _, p := range ready {
			if !p.cadence.IsScheduled(p.habit.CreatedAt, d) {
				continue
			}
			day.Total++
			done := false
			if log, ok := p.index[key]; ok && schedule.Qualifies(p.habit, log) {
				done = true
				day.Completed++
			}
			day.Habits = append(day.Habits, HabitDay{HabitID: p.habit.ID, Name: p.habit.Name, Completed: done})
		}
		day.Percentage = percent(day.Completed, day.Total)
		res.Days[key] = day
	}

	return res, nil
}

// HeatLevel buckets a day into heatmap levels 0-4:
// no completions -> 0, then percentage bands <25 -> 1, <50 -> 2,
// <75 -> 3, >=75 -> 4.
func HeatLevel(completed, percentage int) int {
	switch {
	case completed == 0:
		return 0
	case percentage < 25:
		return 1
	case percentage < 50:
		return 2
	case percentage < 75:
		return 3
	default:
		return 4
	}
}

// Heatmap collapses an aggregate to date -> heat level for rendering.
func Heatmap(res *AggregateResult) map[string]int {
	out := make(map[string]int, len(res.Days))
	for key, day := range res.Days {
		out[key] = HeatLevel(day.Completed, day.Percentage)
	}
	return out
}

func percent(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
