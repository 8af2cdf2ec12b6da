package store

import (
	"testing"
	"time"

	"github.com/rvestal/habitat/internal/model"
)

func setupChallengeTestDB(t *testing.T) (*ChallengeStore, *HabitStore, *UserStore) {
	t.Helper()
	hs, us := setupHabitTestDB(t)
	return NewChallengeStore(hs.db), hs, us
}

func TestChallengeCreateWithHabits(t *testing.T) {
	cs, hs, us := setupChallengeTestDB(t)

	u, _ := us.Create("alice@example.com", "Alice", "hunter2hunter2")
	h1, _ := hs.Create(u.ID, "Read", "", "FREQ=DAILY", "boolean", 0, "")
	h2, _ := hs.Create(u.ID, "Run", "", "FREQ=DAILY", "boolean", 0, "")

	c, err := cs.Create(u.ID, "March Reset", []int64{h1.ID, h2.ID}, date(2026, time.March, 1), 30)
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	if c.Status != model.ChallengeActive {
		t.Errorf("status = %q, want active", c.Status)
	}
	if len(c.HabitIDs) != 2 {
		t.Fatalf("habit ids = %d, want 2", len(c.HabitIDs))
	}
	if !c.StartDate.Equal(date(2026, time.March, 1)) {
		t.Errorf("start = %v, want 2026-03-01", c.StartDate)
	}
}

func TestChallengeCreateRollsBackOnBadHabit(t *testing.T) {
	cs, hs, us := setupChallengeTestDB(t)

	u, _ := us.Create("alice@example.com", "Alice", "hunter2hunter2")
	h1, _ := hs.Create(u.ID, "Read", "", "FREQ=DAILY", "boolean", 0, "")

	_, err := cs.Create(u.ID, "Broken", []int64{h1.ID, 9999}, date(2026, time.March, 1), 30)
	if err == nil {
		t.Fatal("expected error for unknown habit id")
	}

	challenges, err := cs.ListByUser(u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(challenges) != 0 {
		t.Errorf("challenge count = %d, want 0 after rollback", len(challenges))
	}
}

func TestChallengeUpdateStatus(t *testing.T) {
	cs, hs, us := setupChallengeTestDB(t)

	u, _ := us.Create("alice@example.com", "Alice", "hunter2hunter2")
	h, _ := hs.Create(u.ID, "Read", "", "FREQ=DAILY", "boolean", 0, "")
	c, _ := cs.Create(u.ID, "March Reset", []int64{h.ID}, date(2026, time.March, 1), 30)

	c, err := cs.UpdateStatus(c.ID, model.ChallengeAbandoned)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if c.Status != model.ChallengeAbandoned {
		t.Errorf("status = %q, want abandoned", c.Status)
	}
}

func TestChallengeReplaceDays(t *testing.T) {
	cs, hs, us := setupChallengeTestDB(t)

	u, _ := us.Create("alice@example.com", "Alice", "hunter2hunter2")
	h, _ := hs.Create(u.ID, "Read", "", "FREQ=DAILY", "boolean", 0, "")
	c, _ := cs.Create(u.ID, "March Reset", []int64{h.ID}, date(2026, time.March, 1), 3)

	first := []model.ChallengeDay{
		{ChallengeID: c.ID, Date: date(2026, time.March, 1), Completed: 1, Total: 1, PerfectDay: true},
		{ChallengeID: c.ID, Date: date(2026, time.March, 2), Completed: 0, Total: 1, PerfectDay: false},
	}
	if err := cs.ReplaceDays(c.ID, first); err != nil {
		t.Fatalf("first replace: %v", err)
	}

	// A later sync sees the missed day filled in.
	second := []model.ChallengeDay{
		{ChallengeID: c.ID, Date: date(2026, time.March, 1), Completed: 1, Total: 1, PerfectDay: true},
		{ChallengeID: c.ID, Date: date(2026, time.March, 2), Completed: 1, Total: 1, PerfectDay: true},
		{ChallengeID: c.ID, Date: date(2026, time.March, 3), Completed: 0, Total: 1, PerfectDay: false},
	}
	if err := cs.ReplaceDays(c.ID, second); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	days, err := cs.ListDays(c.ID)
	if err != nil {
		t.Fatalf("list days: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("day count = %d, want 3", len(days))
	}
	if !days[1].PerfectDay {
		t.Error("expected March 2 to be perfect after resync")
	}
}

func TestChallengeDeleteCascadesDays(t *testing.T) {
	cs, hs, us := setupChallengeTestDB(t)

	u, _ := us.Create("alice@example.com", "Alice", "hunter2hunter2")
	h, _ := hs.Create(u.ID, "Read", "", "FREQ=DAILY", "boolean", 0, "")
	c, _ := cs.Create(u.ID, "March Reset", []int64{h.ID}, date(2026, time.March, 1), 3)

	cs.ReplaceDays(c.ID, []model.ChallengeDay{
		{ChallengeID: c.ID, Date: date(2026, time.March, 1), Completed: 1, Total: 1, PerfectDay: true},
	})

	if err := cs.Delete(c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var count int
	cs.db.QueryRow(`SELECT COUNT(*) FROM challenge_days WHERE challenge_id = ?`, c.ID).Scan(&count)
	if count != 0 {
		t.Errorf("challenge_days count = %d, want 0 after cascade", count)
	}
}
