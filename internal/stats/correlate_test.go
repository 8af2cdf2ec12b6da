package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/rvestal/habitat/internal/model"
)

func TestCorrelatePerfectCoOccurrence(t *testing.T) {
	created := date(2026, 3, 1)
	a := boolHabit(1, "Meditate", "FREQ=DAILY", created)
	b := boolHabit(2, "Journal", "FREQ=DAILY", created)

	var logs []model.LogEntry
	id := int64(1)
	for i := 0; i < 14; i++ {
		d := created.AddDate(0, 0, i)
		if i%2 == 0 {
			// Always together: both done or both missed.
			logs = append(logs, doneLog(id, 1, d), doneLog(id+1, 2, d))
			id += 2
		}
	}

	c, err := Correlate(a, b, logs, date(2026, 3, 14), 14, DefaultMinSamples)
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if math.Abs(c.Coefficient-1.0) > 1e-9 {
		t.Errorf("coefficient = %v, want 1.0", c.Coefficient)
	}
	if c.Interpretation != "strong positive" {
		t.Errorf("interpretation = %q, want %q", c.Interpretation, "strong positive")
	}
	if c.Samples != 14 {
		t.Errorf("samples = %d, want 14", c.Samples)
	}
}

func TestCorrelateAlwaysBothComplete(t *testing.T) {
	// Degenerate constant vectors: identical means 1.0, not NaN.
	created := date(2026, 3, 1)
	a := boolHabit(1, "A", "FREQ=DAILY", created)
	b := boolHabit(2, "B", "FREQ=DAILY", created)

	var logs []model.LogEntry
	for i := 0; i < 10; i++ {
		d := created.AddDate(0, 0, i)
		logs = append(logs, doneLog(int64(2*i+1), 1, d), doneLog(int64(2*i+2), 2, d))
	}

	c, err := Correlate(a, b, logs, date(2026, 3, 10), 10, DefaultMinSamples)
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if c.Coefficient != 1.0 {
		t.Errorf("coefficient = %v, want 1.0", c.Coefficient)
	}
	if c.Interpretation != "strong positive" {
		t.Errorf("interpretation = %q, want %q", c.Interpretation, "strong positive")
	}
}

func TestCorrelateOpposites(t *testing.T) {
	created := date(2026, 3, 1)
	a := boolHabit(1, "A", "FREQ=DAILY", created)
	b := boolHabit(2, "B", "FREQ=DAILY", created)

	var logs []model.LogEntry
	id := int64(1)
	for i := 0; i < 14; i++ {
		d := created.AddDate(0, 0, i)
		if i%2 == 0 {
			logs = append(logs, doneLog(id, 1, d))
		} else {
			logs = append(logs, doneLog(id, 2, d))
		}
		id++
	}

	c, err := Correlate(a, b, logs, date(2026, 3, 14), 14, DefaultMinSamples)
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if math.Abs(c.Coefficient+1.0) > 1e-9 {
		t.Errorf("coefficient = %v, want -1.0", c.Coefficient)
	}
	if c.Interpretation != "strong negative" {
		t.Errorf("interpretation = %q, want %q", c.Interpretation, "strong negative")
	}
}

func TestCorrelateCountsJointlyScheduledOnly(t *testing.T) {
	a := boolHabit(1, "Daily", "FREQ=DAILY", date(2026, 1, 1))
	b := boolHabit(2, "Mondays", "FREQ=WEEKLY;BYDAY=MO", date(2026, 1, 1))

	// Four weeks ending Sunday Feb 1 2026 contain four Mondays.
	c, err := Correlate(a, b, nil, date(2026, 2, 1), 28, 2)
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if c.Samples != 4 {
		t.Errorf("samples = %d, want 4 (only jointly-scheduled dates count)", c.Samples)
	}
}

func TestCorrelateInsufficientData(t *testing.T) {
	created := date(2026, 3, 12)
	a := boolHabit(1, "A", "FREQ=DAILY", created)
	b := boolHabit(2, "B", "FREQ=DAILY", created)

	// Habits only 3 days old, below the minimum sample count.
	c, err := Correlate(a, b, nil, date(2026, 3, 14), 14, DefaultMinSamples)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
	if c.Samples != 3 {
		t.Errorf("samples = %d, want 3", c.Samples)
	}
}

func TestCorrelateRejectsBadWindow(t *testing.T) {
	a := boolHabit(1, "A", "FREQ=DAILY", date(2026, 1, 1))
	b := boolHabit(2, "B", "FREQ=DAILY", date(2026, 1, 1))

	_, err := Correlate(a, b, nil, date(2026, 2, 1), 0, DefaultMinSamples)
	var re *RangeError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want RangeError", err)
	}
}

func TestCorrelateAllIsolatesPairs(t *testing.T) {
	created := date(2026, 1, 1)
	habits := []model.Habit{
		boolHabit(1, "A", "FREQ=DAILY", created),
		boolHabit(2, "B", "FREQ=DAILY", created),
		boolHabit(3, "Broken", "FREQ=WEEKLY", created),
	}

	out := CorrelateAll(habits, nil, date(2026, 2, 1), 14, DefaultMinSamples)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3 pairs", len(out))
	}

	var broken, clean int
	for _, c := range out {
		if c.Error != "" {
			broken++
		} else {
			clean++
		}
	}
	if broken != 2 {
		t.Errorf("broken pairs = %d, want 2 (each pair with the bad habit)", broken)
	}
	if clean != 1 {
		t.Errorf("clean pairs = %d, want 1", clean)
	}
}
