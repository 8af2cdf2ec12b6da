package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/schedule"
	"github.com/rvestal/habitat/internal/store"
)

// Scheduler delivers the daily habit reminder. Each user picks a local
// hour; when that hour arrives in their timezone the scheduler pushes
// a summary of today's still-unlogged habits.
type Scheduler struct {
	mu       sync.RWMutex
	service  *Service
	push     *store.PushStore
	users    *store.UserStore
	habits   *store.HabitStore
	streaks  *store.StreakStore
	logger   *slog.Logger
	interval time.Duration
	sent     map[string]struct{}
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(svc *Service, pushStore *store.PushStore, userStore *store.UserStore, habitStore *store.HabitStore, streakStore *store.StreakStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:  svc,
		push:     pushStore,
		users:    userStore,
		habits:   habitStore,
		streaks:  streakStore,
		logger:   logger.With("component", "push-scheduler"),
		interval: 60 * time.Second,
		sent:     make(map[string]struct{}),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	userIDs, err := s.push.ListUserIDs()
	if err != nil {
		s.logger.Error("list push users", "error", err)
		return
	}

	for _, uid := range userIDs {
		s.checkReminder(ctx, uid)
	}
}

func (s *Scheduler) checkReminder(ctx context.Context, userID int64) {
	user, err := s.users.GetByID(userID)
	if err != nil || user == nil || user.ReminderHour < 0 {
		return
	}

	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		loc = time.UTC
	}
	localNow := time.Now().In(loc)
	if localNow.Hour() != user.ReminderHour {
		return
	}

	today := schedule.DayOf(localNow)
	key := fmt.Sprintf("%d-%s", userID, schedule.DateKey(today))

	s.mu.Lock()
	if _, ok := s.sent[key]; ok {
		s.mu.Unlock()
		return
	}
	s.sent[key] = struct{}{}
	s.mu.Unlock()

	pending, atRisk, err := s.pendingHabits(userID, today)
	if err != nil {
		s.logger.Error("collect pending habits", "user_id", userID, "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	body := fmt.Sprintf("%d habits still to do today", len(pending))
	if len(pending) == 1 {
		body = fmt.Sprintf("Still to do today: %s", pending[0])
	}
	if atRisk > 0 {
		body += fmt.Sprintf(" (%d streaks at risk)", atRisk)
	}

	s.sendToUser(ctx, userID, model.NotifTypeHabitReminder, Payload{
		Title: "Habit Reminder",
		Body:  body,
		URL:   "/",
		Tag:   "habit-reminder",
	})
}

// pendingHabits returns names of habits scheduled today without a
// completed log, and how many of them have a live streak on the line.
func (s *Scheduler) pendingHabits(userID int64, today time.Time) ([]string, int, error) {
	habits, err := s.habits.ListByUser(userID, false)
	if err != nil {
		return nil, 0, err
	}

	var pending []string
	atRisk := 0
	for _, h := range habits {
		cadence, err := schedule.Parse(h.Cadence)
		if err != nil {
			continue
		}
		if !cadence.IsScheduled(h.CreatedAt, today) {
			continue
		}

		logEntry, err := s.habits.GetLog(h.ID, today)
		if err != nil {
			return nil, 0, err
		}
		if logEntry != nil && logEntry.Completed {
			continue
		}

		pending = append(pending, h.Name)
		if st, err := s.streaks.GetByHabit(h.ID); err == nil && st != nil && st.Current > 0 {
			atRisk++
		}
	}
	return pending, atRisk, nil
}

// NotifyMilestone pushes a streak milestone celebration. Called from
// the check-in handler when a threshold is crossed.
func (s *Scheduler) NotifyMilestone(ctx context.Context, userID int64, habitName string, threshold int) {
	s.sendToUser(ctx, userID, model.NotifTypeStreakMilestone, Payload{
		Title: "Streak Milestone",
		Body:  fmt.Sprintf("%s hit a %d-day streak", habitName, threshold),
		URL:   "/",
		Tag:   fmt.Sprintf("milestone-%d", threshold),
	})
}

// NotifyChallenge pushes a challenge status change.
func (s *Scheduler) NotifyChallenge(ctx context.Context, userID int64, challengeName string, status model.ChallengeStatus) {
	s.sendToUser(ctx, userID, model.NotifTypeChallengeUpdate, Payload{
		Title: "Challenge Update",
		Body:  fmt.Sprintf("%s is now %s", challengeName, status),
		URL:   "/challenges",
		Tag:   "challenge-update",
	})
}

func (s *Scheduler) sendToUser(ctx context.Context, userID int64, notifType string, payload Payload) {
	enabled, err := s.push.IsPreferenceEnabled(userID, notifType)
	if err != nil || !enabled {
		return
	}

	subs, err := s.push.ListByUser(userID)
	if err != nil {
		s.logger.Error("list subscriptions", "user_id", userID, "error", err)
		return
	}

	for _, sub := range subs {
		if err := s.service.Send(ctx, &sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				s.push.DeleteByEndpoint(sub.Endpoint)
			} else {
				s.logger.Error("send push", "endpoint", sub.Endpoint, "error", err)
			}
		}
	}
}
