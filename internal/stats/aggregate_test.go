package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/rvestal/habitat/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func boolHabit(id int64, name, cadence string, created time.Time) model.Habit {
	return model.Habit{ID: id, Name: name, Cadence: cadence, Kind: model.KindBoolean, CreatedAt: created}
}

func doneLog(id, habitID int64, d time.Time) model.LogEntry {
	return model.LogEntry{ID: id, HabitID: habitID, Date: d, Completed: true}
}

func TestAggregateCounts(t *testing.T) {
	created := date(2026, 4, 1)
	habits := []model.Habit{
		boolHabit(1, "Read", "FREQ=DAILY", created),
		boolHabit(2, "Run", "FREQ=DAILY", created),
	}
	logs := []model.LogEntry{
		doneLog(1, 1, date(2026, 4, 1)),
		doneLog(2, 2, date(2026, 4, 1)),
		doneLog(3, 1, date(2026, 4, 2)),
	}

	res, err := Aggregate(habits, logs, date(2026, 4, 1), date(2026, 4, 2))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	d1 := res.Days["2026-04-01"]
	if d1.Completed != 2 || d1.Total != 2 || d1.Percentage != 100 {
		t.Errorf("day1 = %d/%d %d%%, want 2/2 100%%", d1.Completed, d1.Total, d1.Percentage)
	}
	d2 := res.Days["2026-04-02"]
	if d2.Completed != 1 || d2.Total != 2 || d2.Percentage != 50 {
		t.Errorf("day2 = %d/%d %d%%, want 1/2 50%%", d2.Completed, d2.Total, d2.Percentage)
	}
	if len(d2.Habits) != 2 {
		t.Errorf("per-habit detail len = %d, want 2", len(d2.Habits))
	}
}

func TestAggregatePercentageZeroWhenNothingScheduled(t *testing.T) {
	habits := []model.Habit{
		boolHabit(1, "Review", "FREQ=WEEKLY;BYDAY=MO", date(2026, 1, 1)),
	}

	// Jan 6 2026 is a Tuesday, nothing scheduled.
	res, err := Aggregate(habits, nil, date(2026, 1, 6), date(2026, 1, 6))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	day := res.Days["2026-01-06"]
	if day.Total != 0 {
		t.Fatalf("total = %d, want 0", day.Total)
	}
	if day.Percentage != 0 {
		t.Errorf("percentage = %d, want 0 (never NaN or divide by zero)", day.Percentage)
	}
}

func TestAggregateRejectsInvertedRange(t *testing.T) {
	_, err := Aggregate(nil, nil, date(2026, 2, 10), date(2026, 2, 1))
	var re *RangeError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want RangeError", err)
	}
}

func TestAggregateIsolatesBadHabits(t *testing.T) {
	created := date(2026, 4, 1)
	habits := []model.Habit{
		boolHabit(1, "Good", "FREQ=DAILY", created),
		boolHabit(2, "Bad", "FREQ=WEEKLY", created), // missing BYDAY
	}
	logs := []model.LogEntry{doneLog(1, 1, date(2026, 4, 1))}

	res, err := Aggregate(habits, logs, date(2026, 4, 1), date(2026, 4, 1))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(res.Faults) != 1 || res.Faults[0].HabitID != 2 {
		t.Fatalf("faults = %+v, want one for habit 2", res.Faults)
	}
	day := res.Days["2026-04-01"]
	if day.Completed != 1 || day.Total != 1 {
		t.Errorf("day = %d/%d, want 1/1 (good habit unaffected)", day.Completed, day.Total)
	}
}

func TestHeatLevels(t *testing.T) {
	cases := []struct {
		completed, percentage, want int
	}{
		{0, 0, 0},
		{1, 10, 1},
		{1, 24, 1},
		{1, 25, 2},
		{2, 49, 2},
		{2, 50, 3},
		{3, 74, 3},
		{3, 75, 4},
		{4, 100, 4},
	}
	for _, c := range cases {
		if got := HeatLevel(c.completed, c.percentage); got != c.want {
			t.Errorf("HeatLevel(%d, %d) = %d, want %d", c.completed, c.percentage, got, c.want)
		}
	}
}

func TestHeatmap(t *testing.T) {
	habits := []model.Habit{boolHabit(1, "Read", "FREQ=DAILY", date(2026, 4, 1))}
	logs := []model.LogEntry{doneLog(1, 1, date(2026, 4, 1))}

	res, err := Aggregate(habits, logs, date(2026, 4, 1), date(2026, 4, 2))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	hm := Heatmap(res)
	if hm["2026-04-01"] != 4 {
		t.Errorf("level = %d, want 4", hm["2026-04-01"])
	}
	if hm["2026-04-02"] != 0 {
		t.Errorf("level = %d, want 0", hm["2026-04-02"])
	}
}
