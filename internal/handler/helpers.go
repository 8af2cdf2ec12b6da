package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rvestal/habitat/internal/schedule"
	"github.com/rvestal/habitat/internal/stats"
	"github.com/rvestal/habitat/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

// errStatus maps computation-layer errors to HTTP status codes. Bad
// input (cadence grammar, inverted ranges) is the caller's fault;
// integrity violations mean the stored logs contradict their habit and
// surface as a conflict.
func errStatus(err error) int {
	var cfgErr *schedule.ConfigError
	var rangeErr *stats.RangeError
	var integrityErr *schedule.IntegrityError
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &rangeErr):
		return http.StatusBadRequest
	case errors.As(err, &integrityErr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// userToday resolves "today" in the account's configured timezone.
// Falls back to UTC when the user row or timezone is unusable so date
// math never depends on the server's locale.
func userToday(users *store.UserStore, userID int64) time.Time {
	loc := time.UTC
	if u, err := users.GetByID(userID); err == nil && u != nil {
		if l, err := time.LoadLocation(u.Timezone); err == nil {
			loc = l
		}
	}
	return schedule.DayOf(time.Now().In(loc))
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter,
// returning fallback when absent.
func parseDateQuery(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return schedule.ParseDateKey(raw)
}

// parseIntQuery reads an optional integer query parameter, returning
// fallback when absent.
func parseIntQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
