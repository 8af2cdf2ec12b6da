package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rvestal/habitat/internal/auth"
	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/stats"
	"github.com/rvestal/habitat/internal/store"
)

type StatsHandler struct {
	habitStore *store.HabitStore
	userStore  *store.UserStore
	logger     *slog.Logger
}

func NewStatsHandler(hs *store.HabitStore, us *store.UserStore, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{habitStore: hs, userStore: us, logger: logger}
}

// load fetches the user's active habits and their complete log history.
// The computation layer takes full histories; windowing happens inside.
func (h *StatsHandler) load(userID int64, end time.Time) ([]model.Habit, []model.LogEntry, error) {
	habits, err := h.habitStore.ListByUser(userID, false)
	if err != nil {
		return nil, nil, err
	}
	logs, err := h.habitStore.ListLogsByUser(userID, time.Time{}, end)
	if err != nil {
		return nil, nil, err
	}
	return habits, logs, nil
}

// Calendar handles GET /api/stats/calendar?start=&end=
func (h *StatsHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	today := userToday(h.userStore, userID)

	start, err := parseDateQuery(r, "start", today.AddDate(0, 0, -29))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := parseDateQuery(r, "end", today)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}

	habits, logs, err := h.load(userID, end)
	if err != nil {
		h.logger.Error("load calendar data", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	res, err := stats.Aggregate(habits, logs, start, end)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Heatmap handles GET /api/stats/heatmap?year=. Collapses a full
// calendar year to date -> heat level 0-4.
func (h *StatsHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	today := userToday(h.userStore, userID)

	year, err := parseIntQuery(r, "year", today.Year())
	if err != nil || year < 1970 || year > 9999 {
		writeError(w, http.StatusBadRequest, "year must be a four-digit year")
		return
	}

	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)

	habits, logs, err := h.load(userID, end)
	if err != nil {
		h.logger.Error("load heatmap data", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	res, err := stats.Aggregate(habits, logs, start, end)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":   year,
		"levels": stats.Heatmap(res),
	})
}

// Score handles GET /api/stats/score?window=
func (h *StatsHandler) Score(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	today := userToday(h.userStore, userID)

	window, err := parseIntQuery(r, "window", stats.DefaultScoreWindow)
	if err != nil || window <= 0 {
		writeError(w, http.StatusBadRequest, "window must be a positive number of days")
		return
	}

	habits, logs, err := h.load(userID, today)
	if err != nil {
		h.logger.Error("load score data", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	card, err := stats.Score(habits, logs, today, window)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// Correlation handles GET /api/stats/correlation?habit_a=&habit_b=&window=.
// Below the sample minimum the response still carries the sample count,
// with the interpretation marking it unusable.
func (h *StatsHandler) Correlation(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	today := userToday(h.userStore, userID)

	idA, err := parseIntQuery(r, "habit_a", 0)
	if err != nil || idA <= 0 {
		writeError(w, http.StatusBadRequest, "habit_a is required")
		return
	}
	idB, err := parseIntQuery(r, "habit_b", 0)
	if err != nil || idB <= 0 {
		writeError(w, http.StatusBadRequest, "habit_b is required")
		return
	}
	if idA == idB {
		writeError(w, http.StatusBadRequest, "habit_a and habit_b must differ")
		return
	}
	window, err := parseIntQuery(r, "window", stats.DefaultScoreWindow)
	if err != nil || window <= 0 {
		writeError(w, http.StatusBadRequest, "window must be a positive number of days")
		return
	}

	habitA := h.ownedHabit(w, int64(idA), userID)
	if habitA == nil {
		return
	}
	habitB := h.ownedHabit(w, int64(idB), userID)
	if habitB == nil {
		return
	}

	logs, err := h.habitStore.ListLogsByHabits([]int64{habitA.ID, habitB.ID}, time.Time{}, today)
	if err != nil {
		h.logger.Error("load correlation logs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	c, err := stats.Correlate(*habitA, *habitB, logs, today, window, stats.DefaultMinSamples)
	if err != nil {
		if errors.Is(err, stats.ErrInsufficientData) {
			c.Interpretation = "insufficient data"
			writeJSON(w, http.StatusOK, c)
			return
		}
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Correlations handles GET /api/stats/correlations?window= for every
// habit pair. Pair failures are reported inline, not fatal.
func (h *StatsHandler) Correlations(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	today := userToday(h.userStore, userID)

	window, err := parseIntQuery(r, "window", stats.DefaultScoreWindow)
	if err != nil || window <= 0 {
		writeError(w, http.StatusBadRequest, "window must be a positive number of days")
		return
	}

	habits, logs, err := h.load(userID, today)
	if err != nil {
		h.logger.Error("load correlations data", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	out := stats.CorrelateAll(habits, logs, today, window, stats.DefaultMinSamples)
	if out == nil {
		out = []stats.Correlation{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *StatsHandler) ownedHabit(w http.ResponseWriter, id, userID int64) *model.Habit {
	habit, err := h.habitStore.GetByID(id)
	if err != nil {
		h.logger.Error("get habit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get habit")
		return nil
	}
	if habit == nil || habit.UserID != userID {
		writeError(w, http.StatusNotFound, "habit not found")
		return nil
	}
	return habit
}
