package handler

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rvestal/habitat/internal/challenge"
	"github.com/rvestal/habitat/internal/model"
)

func TestChallengeCreateValidatesHabits(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice@example.com")
	f.habits.Create(u.ID, "Read", "", "FREQ=DAILY", "boolean", 0, "")

	r := authedRequest(t, "POST", "/api/challenges", u.ID, map[string]any{
		"name":          "January push",
		"habit_ids":     []int64{999},
		"start_date":    "2026-01-05",
		"duration_days": 7,
	})
	rec := httptest.NewRecorder()
	f.challengeH.Create(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown habit", rec.Code)
	}
}

func TestChallengeProgressSyncsAndCompletes(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice@example.com")
	h, _ := f.habits.Create(u.ID, "Read", "", "FREQ=DAILY", "boolean", 0, "")
	f.backdate(t, h.ID, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ch, err := f.challenges.Create(u.ID, "Reading sprint", []int64{h.ID}, start, 3)
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}

	// Perfect on days 1 and 2, missed day 3
	f.habits.UpsertLog(h.ID, start, true, nil)
	f.habits.UpsertLog(h.ID, start.AddDate(0, 0, 1), true, nil)

	r := authedRequest(t, "GET", "/api/challenges/1/progress", u.ID, nil)
	r.SetPathValue("id", strconv.FormatInt(ch.ID, 10))
	rec := httptest.NewRecorder()
	f.challengeH.Progress(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	p := decode[challenge.Progress](t, rec)
	if len(p.Days) != 3 {
		t.Fatalf("days = %d, want 3", len(p.Days))
	}
	if p.DaysCompleted != 2 || p.PerfectDays != 2 {
		t.Errorf("completed/perfect = %d/%d, want 2/2", p.DaysCompleted, p.PerfectDays)
	}
	if p.CurrentStreak != 0 {
		t.Errorf("current streak = %d, want 0 after a missed final day", p.CurrentStreak)
	}

	// Window elapsed long ago, so the challenge auto-completes
	if p.Status != model.ChallengeCompleted {
		t.Errorf("status = %q, want %q", p.Status, model.ChallengeCompleted)
	}
	stored, err := f.challenges.GetByID(ch.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload challenge: %v", err)
	}
	if stored.Status != model.ChallengeCompleted {
		t.Errorf("persisted status = %q, want %q", stored.Status, model.ChallengeCompleted)
	}

	days, err := f.challenges.ListDays(ch.ID)
	if err != nil {
		t.Fatalf("list days: %v", err)
	}
	if len(days) != 3 {
		t.Errorf("persisted days = %d, want 3", len(days))
	}
}

func TestChallengeProgressIdempotent(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice@example.com")
	h, _ := f.habits.Create(u.ID, "Read", "", "FREQ=DAILY", "boolean", 0, "")
	f.backdate(t, h.ID, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	ch, _ := f.challenges.Create(u.ID, "Sprint", []int64{h.ID}, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), 3)
	f.habits.UpsertLog(h.ID, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), true, nil)

	var first, second challenge.Progress
	for i, dst := range []*challenge.Progress{&first, &second} {
		r := authedRequest(t, "GET", "/api/challenges/1/progress", u.ID, nil)
		r.SetPathValue("id", strconv.FormatInt(ch.ID, 10))
		rec := httptest.NewRecorder()
		f.challengeH.Progress(rec, r)
		if rec.Code != http.StatusOK {
			t.Fatalf("sync %d: status = %d", i, rec.Code)
		}
		*dst = decode[challenge.Progress](t, rec)
	}

	if first.DaysCompleted != second.DaysCompleted || first.OverallCompletion != second.OverallCompletion {
		t.Errorf("resync diverged: %+v vs %+v", first, second)
	}
	days, _ := f.challenges.ListDays(ch.ID)
	if len(days) != 3 {
		t.Errorf("persisted days = %d, want 3 after double sync", len(days))
	}
}

func TestChallengeAbandonOnlyActive(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice@example.com")
	h, _ := f.habits.Create(u.ID, "Read", "", "FREQ=DAILY", "boolean", 0, "")

	// Still-running window stays active and can be abandoned
	today := time.Now().UTC()
	ch, _ := f.challenges.Create(u.ID, "Sprint", []int64{h.ID}, today, 30)

	r := authedRequest(t, "POST", "/api/challenges/1/abandon", u.ID, nil)
	r.SetPathValue("id", strconv.FormatInt(ch.ID, 10))
	rec := httptest.NewRecorder()
	f.challengeH.Abandon(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	updated := decode[model.Challenge](t, rec)
	if updated.Status != model.ChallengeAbandoned {
		t.Errorf("status = %q, want %q", updated.Status, model.ChallengeAbandoned)
	}

	// Abandoned is terminal
	r = authedRequest(t, "POST", "/api/challenges/1/abandon", u.ID, nil)
	r.SetPathValue("id", strconv.FormatInt(ch.ID, 10))
	rec = httptest.NewRecorder()
	f.challengeH.Abandon(rec, r)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for double abandon", rec.Code)
	}
}
