package streak

import (
	"errors"
	"testing"
	"time"

	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/schedule"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dailyHabit(created time.Time) model.Habit {
	return model.Habit{ID: 1, Name: "Read", Cadence: "FREQ=DAILY", Kind: model.KindBoolean, CreatedAt: created}
}

func logsOn(habitID int64, dates ...time.Time) []model.LogEntry {
	var logs []model.LogEntry
	for i, d := range dates {
		logs = append(logs, model.LogEntry{ID: int64(i + 1), HabitID: habitID, Date: d, Completed: true})
	}
	return logs
}

func TestDailyPerfectStreak(t *testing.T) {
	h := dailyHabit(date(2026, 3, 1))
	var days []time.Time
	for i := 0; i < 10; i++ {
		days = append(days, date(2026, 3, 1).AddDate(0, 0, i))
	}

	s, err := Compute(h, logsOn(h.ID, days...), date(2026, 3, 10))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if s.Current != 10 || s.Longest != 10 {
		t.Errorf("current/longest = %d/%d, want 10/10", s.Current, s.Longest)
	}
	if s.LastQualifyingDate == nil || !s.LastQualifyingDate.Equal(date(2026, 3, 10)) {
		t.Errorf("last qualifying = %v, want Mar 10", s.LastQualifyingDate)
	}
}

func TestMissedDaySplitsRuns(t *testing.T) {
	h := dailyHabit(date(2026, 3, 1))
	// Mar 1-4 complete, Mar 5 missed, Mar 6-7 complete.
	logs := logsOn(h.ID,
		date(2026, 3, 1), date(2026, 3, 2), date(2026, 3, 3), date(2026, 3, 4),
		date(2026, 3, 6), date(2026, 3, 7),
	)

	s, err := Compute(h, logs, date(2026, 3, 7))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if s.Current != 2 {
		t.Errorf("current = %d, want 2", s.Current)
	}
	if s.Longest != 4 {
		t.Errorf("longest = %d, want 4", s.Longest)
	}
}

func TestIncompleteLogBreaksRun(t *testing.T) {
	h := dailyHabit(date(2026, 3, 1))
	logs := logsOn(h.ID, date(2026, 3, 1), date(2026, 3, 3))
	logs = append(logs, model.LogEntry{ID: 99, HabitID: h.ID, Date: date(2026, 3, 2), Completed: false})

	s, err := Compute(h, logs, date(2026, 3, 3))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if s.Current != 1 || s.Longest != 1 {
		t.Errorf("current/longest = %d/%d, want 1/1", s.Current, s.Longest)
	}
}

func TestWeeklyStreakSkipsUnscheduledDays(t *testing.T) {
	h := model.Habit{
		ID: 2, Name: "Gym",
		Cadence:   "FREQ=WEEKLY;BYDAY=MO,WE,FR",
		Kind:      model.KindBoolean,
		CreatedAt: date(2026, 1, 5), // Monday
	}
	// Mon 5, Wed 7, Fri 9, Mon 12, Wed 14 with no misses. The Tuesdays and
	// the weekend in between never break the run.
	logs := logsOn(h.ID,
		date(2026, 1, 5), date(2026, 1, 7), date(2026, 1, 9),
		date(2026, 1, 12), date(2026, 1, 14),
	)

	s, err := Compute(h, logs, date(2026, 1, 14))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if s.Current != 5 {
		t.Errorf("current = %d, want 5", s.Current)
	}
	if s.Longest != 5 {
		t.Errorf("longest = %d, want 5", s.Longest)
	}
}

func TestWeeklyWithoutDaysIsConfigError(t *testing.T) {
	h := model.Habit{ID: 3, Cadence: "FREQ=WEEKLY", Kind: model.KindBoolean, CreatedAt: date(2026, 1, 1)}

	_, err := Compute(h, nil, date(2026, 1, 10))
	var cfg *schedule.ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestCounterTargetGatesQualification(t *testing.T) {
	h := model.Habit{
		ID: 4, Cadence: "FREQ=DAILY", Kind: model.KindCounter,
		TargetValue: 20, Unit: "pages", CreatedAt: date(2026, 3, 1),
	}
	v25, v10 := 25.0, 10.0
	logs := []model.LogEntry{
		{ID: 1, HabitID: 4, Date: date(2026, 3, 1), Completed: true, Value: &v25},
		{ID: 2, HabitID: 4, Date: date(2026, 3, 2), Completed: true, Value: &v10},
		{ID: 3, HabitID: 4, Date: date(2026, 3, 3), Completed: true, Value: &v25},
	}

	s, err := Compute(h, logs, date(2026, 3, 3))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// Mar 2 logged below target, which breaks the run.
	if s.Current != 1 || s.Longest != 1 {
		t.Errorf("current/longest = %d/%d, want 1/1", s.Current, s.Longest)
	}
}

func TestEffectiveAsOfPendingToday(t *testing.T) {
	h := dailyHabit(date(2026, 3, 1))
	logs := logsOn(h.ID, date(2026, 3, 1), date(2026, 3, 2))
	today := date(2026, 3, 3)

	// Today scheduled but not yet logged: compute as of yesterday.
	asOf, err := EffectiveAsOf(h, logs, today)
	if err != nil {
		t.Fatalf("effective as of: %v", err)
	}
	if !asOf.Equal(date(2026, 3, 2)) {
		t.Errorf("asOf = %v, want Mar 2", asOf)
	}

	s, err := Compute(h, logs, asOf)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if s.Current != 2 {
		t.Errorf("current = %d, want 2 (unlogged today must not break the streak)", s.Current)
	}
}

func TestEffectiveAsOfLoggedToday(t *testing.T) {
	h := dailyHabit(date(2026, 3, 1))
	logs := logsOn(h.ID, date(2026, 3, 2), date(2026, 3, 3))

	asOf, err := EffectiveAsOf(h, logs, date(2026, 3, 3))
	if err != nil {
		t.Fatalf("effective as of: %v", err)
	}
	if !asOf.Equal(date(2026, 3, 3)) {
		t.Errorf("asOf = %v, want today", asOf)
	}
}

func TestEffectiveAsOfUnscheduledToday(t *testing.T) {
	h := model.Habit{
		ID: 5, Cadence: "FREQ=WEEKLY;BYDAY=MO", Kind: model.KindBoolean,
		CreatedAt: date(2026, 1, 5),
	}

	// Tuesday is unscheduled, so no cutover shift.
	asOf, err := EffectiveAsOf(h, nil, date(2026, 1, 6))
	if err != nil {
		t.Fatalf("effective as of: %v", err)
	}
	if !asOf.Equal(date(2026, 1, 6)) {
		t.Errorf("asOf = %v, want Jan 6", asOf)
	}
}

func TestCrossingsSingleThreshold(t *testing.T) {
	ms := Crossings(1, 6, 9, []int{7, 14, 30}, date(2026, 3, 10))
	if len(ms) != 1 {
		t.Fatalf("len = %d, want 1", len(ms))
	}
	if ms[0].Threshold != 7 {
		t.Errorf("threshold = %d, want 7", ms[0].Threshold)
	}
	if !ms[0].Date.Equal(date(2026, 3, 10)) {
		t.Errorf("date = %v, want Mar 10", ms[0].Date)
	}
}

func TestCrossingsBackfillSpansMultiple(t *testing.T) {
	ms := Crossings(1, 2, 15, []int{7, 14, 30}, date(2026, 3, 10))
	if len(ms) != 2 {
		t.Fatalf("len = %d, want 2", len(ms))
	}
	if ms[0].Threshold != 7 || ms[1].Threshold != 14 {
		t.Errorf("thresholds = %d,%d, want 7,14", ms[0].Threshold, ms[1].Threshold)
	}
}

func TestCrossingsExcludesOldValue(t *testing.T) {
	// Already at 7, so no re-emission; a drop emits nothing.
	if ms := Crossings(1, 7, 8, []int{7}, date(2026, 3, 10)); len(ms) != 0 {
		t.Errorf("len = %d, want 0", len(ms))
	}
	if ms := Crossings(1, 9, 3, []int{7}, date(2026, 3, 10)); len(ms) != 0 {
		t.Errorf("len = %d, want 0 on decrease", len(ms))
	}
}
