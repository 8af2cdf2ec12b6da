package challenge

import (
	"fmt"
	"math"
	"time"

	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/schedule"
	"github.com/rvestal/habitat/internal/stats"
)

// Progress is the derived state of a challenge window. Rollups are
// always recomputed from the complete per-day table, never
// incrementally, so syncing is idempotent.
type Progress struct {
	ChallengeID       int64                 `json:"challenge_id"`
	Days              []model.ChallengeDay  `json:"days"`
	DaysCompleted     int                   `json:"days_completed"`
	PerfectDays       int                   `json:"perfect_days"`
	CurrentStreak     int                   `json:"current_streak"`
	OverallCompletion int                   `json:"overall_completion"`
	Status            model.ChallengeStatus `json:"status"`
}

// Sync projects the challenge's habits onto its date window as of
// today. Each day counts the member habits scheduled that date and how
// many were qualifying-complete; a perfect day is one where every
// scheduled member habit completed. daysCompleted gives partial credit
// (any completion), perfectDays strict credit. The perfect-day streak
// treats every window day as scheduled: an empty or imperfect day
// breaks it, with no skip-allowance.
func Sync(ch model.Challenge, habits []model.Habit, logs []model.LogEntry, today time.Time) (*Progress, error) {
	if len(ch.HabitIDs) == 0 {
		return nil, fmt.Errorf("challenge %d has no habits", ch.ID)
	}
	if ch.DurationDays <= 0 {
		return nil, &stats.RangeError{Start: schedule.DayOf(ch.StartDate), Reason: fmt.Sprintf("duration of %d days", ch.DurationDays)}
	}

	members, err := memberHabits(ch, habits)
	if err != nil {
		return nil, err
	}

	start := schedule.DayOf(ch.StartDate)
	lastDay := start.AddDate(0, 0, ch.DurationDays-1)
	today = schedule.DayOf(today)

	p := &Progress{ChallengeID: ch.ID, Status: NextStatus(ch, today)}
	if today.Before(start) {
		return p, nil
	}

	end := today
	if end.After(lastDay) {
		end = lastDay
	}

	agg, err := stats.Aggregate(members, logs, start, end)
	if err != nil {
		return nil, err
	}
	// Inside one challenge a bad member habit fails the whole sync;
	// isolation happens at the challenge level, not within it.
	if len(agg.Faults) > 0 {
		f := agg.Faults[0]
		return nil, fmt.Errorf("challenge %d habit %d: %s", ch.ID, f.HabitID, f.Reason)
	}

	sumCompleted, sumTotal := 0, 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := agg.Days[schedule.DateKey(d)]
		perfect := day.Total > 0 && day.Completed == day.Total
		p.Days = append(p.Days, model.ChallengeDay{
			ChallengeID: ch.ID,
			Date:        d,
			Completed:   day.Completed,
			Total:       day.Total,
			PerfectDay:  perfect,
		})

		if day.Completed > 0 {
			p.DaysCompleted++
		}
		if perfect {
			p.PerfectDays++
			p.CurrentStreak++
		} else {
			p.CurrentStreak = 0
		}
		sumCompleted += day.Completed
		sumTotal += day.Total
	}

	if sumTotal > 0 {
		p.OverallCompletion = int(math.Round(100 * float64(sumCompleted) / float64(sumTotal)))
	}
	return p, nil
}

// NextStatus applies the automatic transition: an active challenge
// completes once its window has fully elapsed. Completed and abandoned
// are terminal.
func NextStatus(ch model.Challenge, today time.Time) model.ChallengeStatus {
	if ch.Status != model.ChallengeActive {
		return ch.Status
	}
	lastDay := schedule.DayOf(ch.StartDate).AddDate(0, 0, ch.DurationDays-1)
	if schedule.DayOf(today).After(lastDay) {
		return model.ChallengeCompleted
	}
	return model.ChallengeActive
}

// Abandon is the explicit external transition; only active challenges
// can be abandoned.
func Abandon(ch model.Challenge) (model.ChallengeStatus, error) {
	if ch.Status != model.ChallengeActive {
		return ch.Status, fmt.Errorf("challenge %d is %s, not active", ch.ID, ch.Status)
	}
	return model.ChallengeAbandoned, nil
}

func memberHabits(ch model.Challenge, habits []model.Habit) ([]model.Habit, error) {
	byID := make(map[int64]model.Habit, len(habits))
	for _, h := range habits {
		byID[h.ID] = h
	}
	var members []model.Habit
	for _, id := range ch.HabitIDs {
		h, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("challenge %d references unknown habit %d", ch.ID, id)
		}
		members = append(members, h)
	}
	return members, nil
}
