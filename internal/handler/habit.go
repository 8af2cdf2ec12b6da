package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rvestal/habitat/internal/auth"
	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/push"
	"github.com/rvestal/habitat/internal/schedule"
	"github.com/rvestal/habitat/internal/store"
	"github.com/rvestal/habitat/internal/streak"
	"github.com/rvestal/habitat/internal/websocket"
)

type HabitHandler struct {
	habitStore     *store.HabitStore
	streakStore    *store.StreakStore
	milestoneStore *store.MilestoneStore
	userStore      *store.UserStore
	hub            *websocket.Hub
	scheduler      *push.Scheduler
	logger         *slog.Logger
}

func NewHabitHandler(hs *store.HabitStore, sts *store.StreakStore, ms *store.MilestoneStore, us *store.UserStore, hub *websocket.Hub, sched *push.Scheduler, logger *slog.Logger) *HabitHandler {
	return &HabitHandler{
		habitStore:     hs,
		streakStore:    sts,
		milestoneStore: ms,
		userStore:      us,
		hub:            hub,
		scheduler:      sched,
		logger:         logger,
	}
}

func (h *HabitHandler) broadcast(userID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(userID, msg)
	}
}

// loadOwned fetches a habit and checks it belongs to the requesting
// user. Another user's habit reads as not-found, never as forbidden.
func (h *HabitHandler) loadOwned(w http.ResponseWriter, r *http.Request) *model.Habit {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	habit, err := h.habitStore.GetByID(id)
	if err != nil {
		h.logger.Error("get habit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get habit")
		return nil
	}
	if habit == nil || habit.UserID != auth.UserID(r.Context()) {
		writeError(w, http.StatusNotFound, "habit not found")
		return nil
	}
	return habit
}

type habitRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Cadence     string  `json:"cadence"`
	Kind        string  `json:"kind"`
	TargetValue float64 `json:"target_value"`
	Unit        string  `json:"unit"`
}

func (req *habitRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.Cadence == "" {
		req.Cadence = "FREQ=DAILY"
	}
	if _, err := schedule.Parse(req.Cadence); err != nil {
		return err.Error()
	}
	switch req.Kind {
	case "":
		req.Kind = model.KindBoolean
	case model.KindBoolean, model.KindCounter, model.KindDuration:
	default:
		return "kind must be boolean, counter, or duration"
	}
	if req.Kind != model.KindBoolean && req.TargetValue <= 0 {
		return "target_value must be positive for counter and duration habits"
	}
	return ""
}

// Create handles POST /api/habits
func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	habit, err := h.habitStore.Create(userID, req.Name, req.Description, req.Cadence, req.Kind, req.TargetValue, req.Unit)
	if err != nil {
		h.logger.Error("create habit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create habit")
		return
	}

	h.broadcast(userID, websocket.NewMessage("habit", "created", habit.ID, nil))
	writeJSON(w, http.StatusCreated, habit)
}

// List handles GET /api/habits. Archived habits are excluded unless
// ?include_archived=true.
func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	includeArchived := r.URL.Query().Get("include_archived") == "true"

	habits, err := h.habitStore.ListByUser(userID, includeArchived)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list habits")
		return
	}
	if habits == nil {
		habits = []model.Habit{}
	}
	writeJSON(w, http.StatusOK, habits)
}

// Get handles GET /api/habits/{id}
func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	habit := h.loadOwned(w, r)
	if habit == nil {
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

// Update handles PUT /api/habits/{id}
func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	habit := h.loadOwned(w, r)
	if habit == nil {
		return
	}

	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := h.habitStore.Update(habit.ID, req.Name, req.Description, req.Cadence, req.Kind, req.TargetValue, req.Unit)
	if err != nil {
		h.logger.Error("update habit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update habit")
		return
	}

	h.broadcast(habit.UserID, websocket.NewMessage("habit", "updated", habit.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

// Archive handles POST /api/habits/{id}/archive. Archiving freezes a
// habit: it drops out of lists, reminders, and scoring, but its logs
// and milestones stay.
func (h *HabitHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

// Unarchive handles POST /api/habits/{id}/unarchive
func (h *HabitHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *HabitHandler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	habit := h.loadOwned(w, r)
	if habit == nil {
		return
	}

	updated, err := h.habitStore.SetArchived(habit.ID, archived)
	if err != nil {
		h.logger.Error("archive habit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update habit")
		return
	}

	action := "archived"
	if !archived {
		action = "unarchived"
	}
	h.broadcast(habit.UserID, websocket.NewMessage("habit", action, habit.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/habits/{id}
func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	habit := h.loadOwned(w, r)
	if habit == nil {
		return
	}

	if err := h.habitStore.Delete(habit.ID); err != nil {
		h.logger.Error("delete habit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete habit")
		return
	}

	h.broadcast(habit.UserID, websocket.NewMessage("habit", "deleted", habit.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

type checkInRequest struct {
	Date      string   `json:"date"`
	Completed bool     `json:"completed"`
	Value     *float64 `json:"value"`
}

type checkInResponse struct {
	Log        *model.LogEntry   `json:"log"`
	Streak     streak.Summary    `json:"streak"`
	Milestones []model.Milestone `json:"milestones,omitempty"`
}

// CheckIn handles POST /api/habits/{id}/logs. Upserts the day's log,
// recomputes the streak around the write, refreshes the cache, and
// emits one milestone per threshold crossed between the old and new
// current streak.
func (h *HabitHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	habit := h.loadOwned(w, r)
	if habit == nil {
		return
	}
	userID := habit.UserID

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	today := userToday(h.userStore, userID)
	date := today
	if req.Date != "" {
		var err error
		date, err = schedule.ParseDateKey(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}
	if date.Before(schedule.DayOf(habit.CreatedAt)) {
		writeError(w, http.StatusBadRequest, "date is before the habit was created")
		return
	}
	if req.Value != nil && *req.Value < 0 {
		writeError(w, http.StatusBadRequest, "value must not be negative")
		return
	}

	before, err := h.recompute(*habit, today)
	if err != nil {
		h.logger.Error("streak recompute before check-in", "habit_id", habit.ID, "error", err)
		writeError(w, errStatus(err), "failed to compute streak")
		return
	}

	log, err := h.habitStore.UpsertLog(habit.ID, date, req.Completed, req.Value)
	if err != nil {
		h.logger.Error("upsert log", "habit_id", habit.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save check-in")
		return
	}

	after, err := h.recompute(*habit, today)
	if err != nil {
		h.logger.Error("streak recompute after check-in", "habit_id", habit.ID, "error", err)
		writeError(w, errStatus(err), "failed to compute streak")
		return
	}

	if _, err := h.streakStore.Upsert(habit.ID, after.Current, after.Longest, after.LastQualifyingDate); err != nil {
		h.logger.Error("update streak cache", "habit_id", habit.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save streak")
		return
	}

	resp := checkInResponse{Log: log, Streak: after}
	for _, m := range streak.Crossings(habit.ID, before.Current, after.Current, streak.DefaultThresholds, date) {
		created, err := h.milestoneStore.Create(m)
		if err != nil {
			h.logger.Error("record milestone", "habit_id", habit.ID, "threshold", m.Threshold, "error", err)
			continue
		}
		resp.Milestones = append(resp.Milestones, *created)

		if h.scheduler != nil {
			h.scheduler.NotifyMilestone(r.Context(), userID, habit.Name, created.Threshold)
		}
		h.broadcast(userID, websocket.NewMessage("milestone", "reached", created.ID, map[string]any{
			"habit_id":  habit.ID,
			"threshold": created.Threshold,
		}))
	}

	h.broadcast(userID, websocket.NewMessage("habit_log", "upserted", log.ID, map[string]any{
		"habit_id": habit.ID,
		"date":     schedule.DateKey(date),
		"streak":   after.Current,
	}))

	writeJSON(w, http.StatusOK, resp)
}

// ListLogs handles GET /api/habits/{id}/logs
func (h *HabitHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	habit := h.loadOwned(w, r)
	if habit == nil {
		return
	}

	logs, err := h.habitStore.ListLogsByHabit(habit.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	if logs == nil {
		logs = []model.LogEntry{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// DeleteLog handles DELETE /api/habits/{id}/logs/{date}. The streak
// cache is recomputed after the removal; no milestones are retracted.
func (h *HabitHandler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	habit := h.loadOwned(w, r)
	if habit == nil {
		return
	}

	date, err := schedule.ParseDateKey(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	if err := h.habitStore.DeleteLog(habit.ID, date); err != nil {
		h.logger.Error("delete log", "habit_id", habit.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete log")
		return
	}

	today := userToday(h.userStore, habit.UserID)
	after, err := h.recompute(*habit, today)
	if err != nil {
		h.logger.Error("streak recompute after log delete", "habit_id", habit.ID, "error", err)
		writeError(w, errStatus(err), "failed to compute streak")
		return
	}
	if _, err := h.streakStore.Upsert(habit.ID, after.Current, after.Longest, after.LastQualifyingDate); err != nil {
		h.logger.Error("update streak cache", "habit_id", habit.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save streak")
		return
	}

	h.broadcast(habit.UserID, websocket.NewMessage("habit_log", "deleted", habit.ID, map[string]any{
		"habit_id": habit.ID,
		"date":     schedule.DateKey(date),
	}))
	w.WriteHeader(http.StatusNoContent)
}

// GetStreak handles GET /api/habits/{id}/streak. Always a fresh
// recompute from the log history, never the cache. An ?as_of= override
// evaluates the streak as of that date; otherwise today's incomplete
// day is forgiven via the effective as-of rule.
func (h *HabitHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	habit := h.loadOwned(w, r)
	if habit == nil {
		return
	}

	logs, err := h.habitStore.ListLogsByHabit(habit.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}

	today := userToday(h.userStore, habit.UserID)
	asOf := time.Time{}
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, err = schedule.ParseDateKey(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
	} else {
		asOf, err = streak.EffectiveAsOf(*habit, logs, today)
		if err != nil {
			writeError(w, errStatus(err), err.Error())
			return
		}
	}

	summary, err := streak.Compute(*habit, logs, asOf)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// RecentMilestones handles GET /api/milestones, the user's milestone
// feed across all habits, newest first.
func (h *HabitHandler) RecentMilestones(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	milestones, err := h.milestoneStore.ListByUser(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list milestones")
		return
	}
	if milestones == nil {
		milestones = []model.Milestone{}
	}
	writeJSON(w, http.StatusOK, milestones)
}

// ListMilestones handles GET /api/habits/{id}/milestones
func (h *HabitHandler) ListMilestones(w http.ResponseWriter, r *http.Request) {
	habit := h.loadOwned(w, r)
	if habit == nil {
		return
	}

	milestones, err := h.milestoneStore.ListByHabit(habit.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list milestones")
		return
	}
	if milestones == nil {
		milestones = []model.Milestone{}
	}
	writeJSON(w, http.StatusOK, milestones)
}

// recompute runs the pure streak calculation against the full log
// history with the effective as-of for today.
func (h *HabitHandler) recompute(habit model.Habit, today time.Time) (streak.Summary, error) {
	logs, err := h.habitStore.ListLogsByHabit(habit.ID)
	if err != nil {
		return streak.Summary{}, err
	}
	asOf, err := streak.EffectiveAsOf(habit, logs, today)
	if err != nil {
		return streak.Summary{}, err
	}
	return streak.Compute(habit, logs, asOf)
}
