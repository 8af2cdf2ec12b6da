package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rvestal/habitat/internal/auth"
	"github.com/rvestal/habitat/internal/challenge"
	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/push"
	"github.com/rvestal/habitat/internal/schedule"
	"github.com/rvestal/habitat/internal/store"
	"github.com/rvestal/habitat/internal/websocket"
)

type ChallengeHandler struct {
	challengeStore *store.ChallengeStore
	habitStore     *store.HabitStore
	userStore      *store.UserStore
	hub            *websocket.Hub
	scheduler      *push.Scheduler
	logger         *slog.Logger
}

func NewChallengeHandler(cs *store.ChallengeStore, hs *store.HabitStore, us *store.UserStore, hub *websocket.Hub, sched *push.Scheduler, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{
		challengeStore: cs,
		habitStore:     hs,
		userStore:      us,
		hub:            hub,
		scheduler:      sched,
		logger:         logger,
	}
}

func (h *ChallengeHandler) broadcast(userID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(userID, msg)
	}
}

func (h *ChallengeHandler) loadOwned(w http.ResponseWriter, r *http.Request) *model.Challenge {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	ch, err := h.challengeStore.GetByID(id)
	if err != nil {
		h.logger.Error("get challenge", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get challenge")
		return nil
	}
	if ch == nil || ch.UserID != auth.UserID(r.Context()) {
		writeError(w, http.StatusNotFound, "challenge not found")
		return nil
	}
	return ch
}

type challengeRequest struct {
	Name         string  `json:"name"`
	HabitIDs     []int64 `json:"habit_ids"`
	StartDate    string  `json:"start_date"`
	DurationDays int     `json:"duration_days"`
}

// Create handles POST /api/challenges
func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.HabitIDs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one habit is required")
		return
	}
	if req.DurationDays <= 0 {
		writeError(w, http.StatusBadRequest, "duration_days must be positive")
		return
	}

	start := userToday(h.userStore, userID)
	if req.StartDate != "" {
		var err error
		start, err = schedule.ParseDateKey(req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
			return
		}
	}

	// Every member habit must exist and belong to the caller.
	for _, id := range req.HabitIDs {
		habit, err := h.habitStore.GetByID(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check habits")
			return
		}
		if habit == nil || habit.UserID != userID {
			writeError(w, http.StatusBadRequest, "habit not found")
			return
		}
	}

	ch, err := h.challengeStore.Create(userID, req.Name, req.HabitIDs, start, req.DurationDays)
	if err != nil {
		h.logger.Error("create challenge", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create challenge")
		return
	}

	h.broadcast(userID, websocket.NewMessage("challenge", "created", ch.ID, nil))
	writeJSON(w, http.StatusCreated, ch)
}

// List handles GET /api/challenges
func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	challenges, err := h.challengeStore.ListByUser(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list challenges")
		return
	}
	if challenges == nil {
		challenges = []model.Challenge{}
	}
	writeJSON(w, http.StatusOK, challenges)
}

// Get handles GET /api/challenges/{id}
func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	ch := h.loadOwned(w, r)
	if ch == nil {
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// Delete handles DELETE /api/challenges/{id}
func (h *ChallengeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ch := h.loadOwned(w, r)
	if ch == nil {
		return
	}

	if err := h.challengeStore.Delete(ch.ID); err != nil {
		h.logger.Error("delete challenge", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete challenge")
		return
	}

	h.broadcast(ch.UserID, websocket.NewMessage("challenge", "deleted", ch.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Abandon handles POST /api/challenges/{id}/abandon. Only an active
// challenge can be abandoned; completed and abandoned are terminal.
func (h *ChallengeHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	ch := h.loadOwned(w, r)
	if ch == nil {
		return
	}

	status, err := challenge.Abandon(*ch)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	updated, err := h.challengeStore.UpdateStatus(ch.ID, status)
	if err != nil {
		h.logger.Error("abandon challenge", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update challenge")
		return
	}

	h.notifyStatus(r, updated)
	writeJSON(w, http.StatusOK, updated)
}

// Progress handles GET /api/challenges/{id}/progress. Syncs the
// per-day table from the member habits' logs, persists it, and applies
// the automatic active -> completed transition once the window has
// fully elapsed. The sync is a full idempotent recompute, so repeated
// calls converge.
func (h *ChallengeHandler) Progress(w http.ResponseWriter, r *http.Request) {
	ch := h.loadOwned(w, r)
	if ch == nil {
		return
	}

	habits, err := h.habitStore.ListByUser(ch.UserID, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load habits")
		return
	}

	today := userToday(h.userStore, ch.UserID)
	logs, err := h.habitStore.ListLogsByHabits(ch.HabitIDs, time.Time{}, today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load logs")
		return
	}

	progress, err := challenge.Sync(*ch, habits, logs, today)
	if err != nil {
		h.logger.Error("sync challenge", "challenge_id", ch.ID, "error", err)
		writeError(w, errStatus(err), err.Error())
		return
	}

	if err := h.challengeStore.ReplaceDays(ch.ID, progress.Days); err != nil {
		h.logger.Error("persist challenge days", "challenge_id", ch.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save progress")
		return
	}

	if progress.Status != ch.Status {
		updated, err := h.challengeStore.UpdateStatus(ch.ID, progress.Status)
		if err != nil {
			h.logger.Error("transition challenge", "challenge_id", ch.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update challenge")
			return
		}
		h.notifyStatus(r, updated)
	}

	writeJSON(w, http.StatusOK, progress)
}

func (h *ChallengeHandler) notifyStatus(r *http.Request, ch *model.Challenge) {
	if h.scheduler != nil {
		h.scheduler.NotifyChallenge(r.Context(), ch.UserID, ch.Name, ch.Status)
	}
	h.broadcast(ch.UserID, websocket.NewMessage("challenge", string(ch.Status), ch.ID, nil))
}
