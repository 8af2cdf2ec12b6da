package stats

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/schedule"
)

// ErrInsufficientData is returned when too few jointly-scheduled dates
// exist to produce a stable coefficient.
var ErrInsufficientData = errors.New("insufficient data")

// DefaultMinSamples is the minimum number of jointly-scheduled dates
// required before a coefficient is reported.
const DefaultMinSamples = 7

// Correlation is the co-occurrence result for one habit pair.
type Correlation struct {
	HabitA         int64   `json:"habit_a"`
	HabitB         int64   `json:"habit_b"`
	Coefficient    float64 `json:"coefficient"`
	Samples        int     `json:"samples"`
	Interpretation string  `json:"interpretation"`
	Error          string  `json:"error,omitempty"`
}

// Correlate computes the phi coefficient between two habits' completion
// vectors over the windowDays ending at end. Only dates where both
// habits are scheduled count: co-occurrence requires both to have had
// the opportunity. Returns ErrInsufficientData (with a usable Samples
// count in the result) below minSamples.
func Correlate(a, b model.Habit, logs []model.LogEntry, end time.Time, windowDays, minSamples int) (Correlation, error) {
	out := Correlation{HabitA: a.ID, HabitB: b.ID}
	if windowDays <= 0 {
		return out, &RangeError{End: schedule.DayOf(end), Reason: fmt.Sprintf("window of %d days", windowDays)}
	}

	cadA, err := schedule.Parse(a.Cadence)
	if err != nil {
		return out, err
	}
	cadB, err := schedule.Parse(b.Cadence)
	if err != nil {
		return out, err
	}
	idxA, err := schedule.IndexLogs(a, logs)
	if err != nil {
		return out, err
	}
	idxB, err := schedule.IndexLogs(b, logs)
	if err != nil {
		return out, err
	}

	end = schedule.DayOf(end)
	start := end.AddDate(0, 0, -(windowDays - 1))

	// 2x2 contingency counts over jointly-scheduled dates.
	var n11, n10, n01, n00 int
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !cadA.IsScheduled(a.CreatedAt, d) || !cadB.IsScheduled(b.CreatedAt, d) {
			continue
		}
		key := schedule.DateKey(d)
		doneA := qualifiesAt(a, idxA, key)
		doneB := qualifiesAt(b, idxB, key)
		switch {
		case doneA && doneB:
			n11++
		case doneA:
			n10++
		case doneB:
			n01++
		default:
			n00++
		}
	}

	out.Samples = n11 + n10 + n01 + n00
	if out.Samples < minSamples {
		return out, fmt.Errorf("%w: %d of %d samples", ErrInsufficientData, out.Samples, minSamples)
	}

	out.Coefficient = phi(n11, n10, n01, n00)
	out.Interpretation = interpret(out.Coefficient)
	return out, nil
}

// CorrelateAll computes every pairwise correlation, isolating failures
// so one bad pair doesn't abort the batch.
func CorrelateAll(habits []model.Habit, logs []model.LogEntry, end time.Time, windowDays, minSamples int) []Correlation {
	var out []Correlation
	for i := 0; i < len(habits); i++ {
		for j := i + 1; j < len(habits); j++ {
			c, err := Correlate(habits[i], habits[j], logs, end, windowDays, minSamples)
			if err != nil {
				if errors.Is(err, ErrInsufficientData) {
					c.Interpretation = "insufficient data"
				} else {
					c.Error = err.Error()
				}
			}
			out = append(out, c)
		}
	}
	return out
}

func qualifiesAt(h model.Habit, index map[string]model.LogEntry, key string) bool {
	log, ok := index[key]
	return ok && schedule.Qualifies(h, log)
}

// phi computes the phi coefficient from 2x2 contingency counts. When
// either vector has no variation the usual formula divides by zero;
// identical constant vectors report 1, opposite constants -1, and a
// single constant vector 0.
func phi(n11, n10, n01, n00 int) float64 {
	n := n11 + n10 + n01 + n00
	den := float64(n11+n10) * float64(n01+n00) * float64(n11+n01) * float64(n10+n00)
	if den == 0 {
		switch {
		case n11 == n || n00 == n:
			return 1
		case n10 == n || n01 == n:
			return -1
		default:
			return 0
		}
	}
	return float64(n11*n00-n10*n01) / math.Sqrt(den)
}

func interpret(c float64) string {
	mag := math.Abs(c)
	var strength string
	switch {
	case mag >= 0.7:
		strength = "strong"
	case mag >= 0.4:
		strength = "moderate"
	default:
		strength = "weak"
	}
	switch {
	case c > 0:
		return strength + " positive"
	case c < 0:
		return strength + " negative"
	default:
		return "none"
	}
}
