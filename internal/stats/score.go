package stats

import (
	"math"
	"time"

	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/schedule"
	"github.com/rvestal/habitat/internal/streak"
)

type Trend string

const (
	TrendImproving    Trend = "improving"
	TrendSteady       Trend = "steady"
	TrendDeclining    Trend = "declining"
	TrendInsufficient Trend = "insufficient_data"
)

const (
	// Sub-score weights, summing to 100.
	weightConsistency = 40
	weightStreaks     = 30
	weightCompletion  = 30

	// ReferenceStreak is the average current streak that earns the full
	// streak sub-score.
	ReferenceStreak = 30

	// trendDeadBand keeps small window-to-window wobble from flapping
	// between improving and declining.
	trendDeadBand = 3

	// DefaultScoreWindow is the lookback used when callers don't pick one.
	DefaultScoreWindow = 30
)

// Breakdown holds the three weighted sub-scores, each 0-100.
type Breakdown struct {
	Consistency int `json:"consistency"`
	Streaks     int `json:"streaks"`
	Completion  int `json:"completion"`
}

// Scorecard is the productivity summary for one user.
type Scorecard struct {
	Score     int       `json:"score"`
	Grade     string    `json:"grade"`
	Trend     Trend     `json:"trend"`
	Breakdown Breakdown `json:"breakdown"`
}

// Score combines aggregation and streak outputs into a 0-100 score over
// the windowDays ending at asOf:
//
//   - consistency (40): average per-day completion percentage across
//     days with at least one scheduled habit
//   - streaks (30): average current streak, normalized against
//     ReferenceStreak and capped at 100
//   - completion (30): total qualifying completions over total
//     scheduled attempts
//
// Grade breakpoints: A>=90, B>=75, C>=60, D>=40, else F. Trend compares
// against the immediately preceding equal-length window with a
// symmetric +-3 dead-band; it reports insufficient_data when the prior
// window had nothing scheduled.
func Score(habits []model.Habit, logs []model.LogEntry, asOf time.Time, windowDays int) (Scorecard, error) {
	asOf = schedule.DayOf(asOf)
	if windowDays <= 0 {
		return Scorecard{}, &RangeError{End: asOf, Reason: "non-positive score window"}
	}

	cur, curActive, err := windowScore(habits, logs, asOf, windowDays)
	if err != nil {
		return Scorecard{}, err
	}

	card := Scorecard{
		Score:     cur.total(),
		Grade:     grade(cur.total()),
		Breakdown: cur.breakdown(),
	}

	prevEnd := asOf.AddDate(0, 0, -windowDays)
	prev, prevActive, err := windowScore(habits, logs, prevEnd, windowDays)
	if err != nil {
		return Scorecard{}, err
	}

	switch {
	case !curActive || !prevActive:
		card.Trend = TrendInsufficient
	case cur.total()-prev.total() > trendDeadBand:
		card.Trend = TrendImproving
	case prev.total()-cur.total() > trendDeadBand:
		card.Trend = TrendDeclining
	default:
		card.Trend = TrendSteady
	}

	return card, nil
}

type subScores struct {
	consistency float64
	streaks     float64
	completion  float64
}

func (s subScores) total() int {
	raw := (weightConsistency*s.consistency + weightStreaks*s.streaks + weightCompletion*s.completion) / 100
	return int(math.Round(raw))
}

func (s subScores) breakdown() Breakdown {
	return Breakdown{
		Consistency: int(math.Round(s.consistency)),
		Streaks:     int(math.Round(s.streaks)),
		Completion:  int(math.Round(s.completion)),
	}
}

// windowScore computes the raw sub-scores for the windowDays ending at
// end. active is false when no habit had a scheduled date in the window.
func windowScore(habits []model.Habit, logs []model.LogEntry, end time.Time, windowDays int) (subScores, bool, error) {
	start := end.AddDate(0, 0, -(windowDays - 1))

	agg, err := Aggregate(habits, logs, start, end)
	if err != nil {
		return subScores{}, false, err
	}

	var s subScores
	activeDays, pctSum := 0, 0
	completed, total := 0, 0
	for _, day := range agg.Days {
		if day.Total == 0 {
			continue
		}
		activeDays++
		pctSum += day.Percentage
		completed += day.Completed
		total += day.Total
	}
	if activeDays == 0 {
		return s, false, nil
	}

	s.consistency = float64(pctSum) / float64(activeDays)
	s.completion = 100 * float64(completed) / float64(total)

	// Streak sub-score: faulted habits are already excluded from the
	// aggregate; skip them here the same way.
	faulted := make(map[int64]bool, len(agg.Faults))
	for _, f := range agg.Faults {
		faulted[f.HabitID] = true
	}
	streakSum, streakCount := 0, 0
	for _, h := range habits {
		if faulted[h.ID] {
			continue
		}
		sum, err := streak.Compute(h, logs, end)
		if err != nil {
			continue
		}
		streakSum += sum.Current
		streakCount++
	}
	if streakCount > 0 {
		avg := float64(streakSum) / float64(streakCount)
		s.streaks = math.Min(100, 100*avg/ReferenceStreak)
	}

	return s, true, nil
}

func grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	case score >= 40:
		return "D"
	default:
		return "F"
	}
}
