package schedule

import (
	"fmt"
	"strings"
	"time"
)

type Freq int

const (
	Daily Freq = iota
	Weekly
)

var freqNames = map[Freq]string{
	Daily:  "DAILY",
	Weekly: "WEEKLY",
}

var freqFromName = map[string]Freq{
	"DAILY":  Daily,
	"WEEKLY": Weekly,
}

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// ConfigError reports a malformed cadence rule. It is fatal for the
// habit it belongs to and is never silently defaulted.
type ConfigError struct {
	Rule   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid cadence %q: %s", e.Rule, e.Reason)
}

// Cadence describes which calendar dates a habit requires an attempt on.
type Cadence struct {
	Freq  Freq
	ByDay []time.Weekday // Weekly only; always non-empty after Parse
}

// Parse parses a cadence string like "FREQ=DAILY" or
// "FREQ=WEEKLY;BYDAY=MO,WE,FR". A WEEKLY rule without BYDAY is a
// configuration error, not "every day" or "never".
func Parse(rule string) (Cadence, error) {
	if rule == "" {
		return Cadence{}, &ConfigError{Rule: rule, Reason: "empty rule"}
	}

	var c Cadence
	var hasFreq bool

	for _, part := range strings.Split(rule, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return Cadence{}, &ConfigError{Rule: rule, Reason: fmt.Sprintf("invalid part %q", part)}
		}
		key, val := kv[0], kv[1]

		switch key {
		case "FREQ":
			f, ok := freqFromName[val]
			if !ok {
				return Cadence{}, &ConfigError{Rule: rule, Reason: fmt.Sprintf("unknown frequency %q", val)}
			}
			c.Freq = f
			hasFreq = true

		case "BYDAY":
			seen := make(map[time.Weekday]bool)
			for _, d := range strings.Split(val, ",") {
				wd, ok := dayNames[strings.TrimSpace(d)]
				if !ok {
					return Cadence{}, &ConfigError{Rule: rule, Reason: fmt.Sprintf("unknown day %q", d)}
				}
				if !seen[wd] {
					seen[wd] = true
					c.ByDay = append(c.ByDay, wd)
				}
			}

		default:
			return Cadence{}, &ConfigError{Rule: rule, Reason: fmt.Sprintf("unsupported key %q", key)}
		}
	}

	if !hasFreq {
		return Cadence{}, &ConfigError{Rule: rule, Reason: "FREQ is required"}
	}
	if c.Freq == Weekly && len(c.ByDay) == 0 {
		return Cadence{}, &ConfigError{Rule: rule, Reason: "WEEKLY requires BYDAY"}
	}
	if c.Freq == Daily && len(c.ByDay) > 0 {
		return Cadence{}, &ConfigError{Rule: rule, Reason: "BYDAY is only valid for WEEKLY"}
	}

	return c, nil
}

// String serializes the cadence back to rule form.
func (c Cadence) String() string {
	s := "FREQ=" + freqNames[c.Freq]
	if len(c.ByDay) > 0 {
		var days []string
		for _, d := range c.ByDay {
			days = append(days, dayAbbrev[d])
		}
		s += ";BYDAY=" + strings.Join(days, ",")
	}
	return s
}

// Describe returns a human-readable description of the cadence.
func (c Cadence) Describe() string {
	switch c.Freq {
	case Daily:
		return "Every day"
	case Weekly:
		var names []string
		for _, d := range c.ByDay {
			names = append(names, d.String()[:3])
		}
		return "Weekly on " + strings.Join(names, ", ")
	}
	return ""
}

// On reports whether the cadence requires an attempt on the given
// weekday. Always true for daily cadences.
func (c Cadence) On(day time.Weekday) bool {
	if c.Freq == Daily {
		return true
	}
	for _, d := range c.ByDay {
		if d == day {
			return true
		}
	}
	return false
}

// IsScheduled reports whether a habit created on `created` requires an
// attempt on `date`. Dates before the creation date are never scheduled.
func (c Cadence) IsScheduled(created, date time.Time) bool {
	if DayOf(date).Before(DayOf(created)) {
		return false
	}
	return c.On(date.Weekday())
}

// Dates returns every scheduled date in [start, end], inclusive,
// respecting the creation date floor.
func (c Cadence) Dates(created, start, end time.Time) []time.Time {
	start, end = DayOf(start), DayOf(end)
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsScheduled(created, d) {
			out = append(out, d)
		}
	}
	return out
}
