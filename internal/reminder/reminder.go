// Package reminder schedules one-shot unlock notifications for locked doors.
package reminder

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/surpresalabs/surpresa/internal/metrics"
	"github.com/surpresalabs/surpresa/internal/store"
)

// ReminderHour is the local time-of-day a door reminder fires.
const ReminderHour = 9

// Outcome classifies one reminder request. Only Scheduled means a delivery
// was booked; every other value is informational and never an error.
type Outcome string

const (
	OutcomeScheduled           Outcome = "scheduled"
	OutcomeAlreadyUnlocked     Outcome = "already_unlocked"
	OutcomeNotCapable          Outcome = "not_capable"
	OutcomeInstallPrompted     Outcome = "install_prompted"
	OutcomeInstallInstructions Outcome = "install_instructions"
	OutcomePermissionDenied    Outcome = "permission_denied"
	OutcomeSubscriptionFailed  Outcome = "subscription_failed"
	OutcomeFallbackOnOpen      Outcome = "fallback_on_open"
)

// ClientCapabilities is the notification environment the client reports with
// a reminder request.
type ClientCapabilities struct {
	PushCapable  bool   `json:"push_capable"`
	Installed    bool   `json:"installed"`
	CanPrompt    bool   `json:"can_prompt"`
	Permission   string `json:"permission"` // granted | denied | default
	Subscription string `json:"subscription,omitempty"`
}

// NotificationClient is the push delivery boundary.
type NotificationClient interface {
	// GetOrCreateSubscription exchanges the client-provided handle for a
	// durable delivery subscription.
	GetOrCreateSubscription(ctx context.Context, handle string) (string, error)
	// ScheduleOneShot books a single delivery at whenUTC under key. A second
	// call with the same key replaces the earlier booking.
	ScheduleOneShot(ctx context.Context, key, subscription string, whenUTC time.Time) error
}

// ReminderStore is the repository slice the scheduler persists through.
type ReminderStore interface {
	Upsert(ctx context.Context, rem store.Reminder) (*store.Reminder, error)
}

// Scheduler walks the capability ladder and books at most one reminder per
// (calendar, door) pair.
type Scheduler struct {
	client NotificationClient
	repo   ReminderStore
}

func NewScheduler(client NotificationClient, repo ReminderStore) *Scheduler {
	return &Scheduler{client: client, repo: repo}
}

// Request evaluates the short-circuit precondition ladder and, when every
// rung passes, persists and schedules a reminder for 09:00 local time on the
// door's unlock date. Re-requesting the same door overwrites the earlier
// reminder instead of duplicating it.
func (s *Scheduler) Request(ctx context.Context, caps ClientCapabilities, cal *store.Calendar, dayIndex int, doorDate time.Time) Outcome {
	// A door whose date has arrived needs no reminder; without this a
	// request would book a delivery for a past morning.
	if !doorDate.After(time.Now().UTC()) {
		return s.done(OutcomeAlreadyUnlocked)
	}
	// Each rung stops the pass; install prompting and permission requests
	// happen client-side on a later pass, never stacked in this one.
	if !caps.PushCapable {
		return s.done(OutcomeNotCapable)
	}
	if !caps.Installed {
		if caps.CanPrompt {
			return s.done(OutcomeInstallPrompted)
		}
		return s.done(OutcomeInstallInstructions)
	}
	if caps.Permission != "granted" {
		return s.done(OutcomePermissionDenied)
	}

	sub, err := s.client.GetOrCreateSubscription(ctx, caps.Subscription)
	if err != nil || sub == "" {
		if err != nil {
			logReminderFailure(ctx, "subscription", cal, dayIndex, err)
		}
		return s.done(OutcomeSubscriptionFailed)
	}

	remindAt := RemindAt(doorDate)
	rem, err := s.repo.Upsert(ctx, store.Reminder{
		CalendarID:   cal.ID,
		DayIndex:     dayIndex,
		RemindAt:     remindAt,
		Subscription: sub,
	})
	if err != nil {
		logReminderFailure(ctx, "upsert", cal, dayIndex, err)
		return s.done(OutcomeFallbackOnOpen)
	}

	key := fmt.Sprintf("%s:%d", rem.CalendarID, rem.DayIndex)
	if err := s.client.ScheduleOneShot(ctx, key, sub, remindAt.UTC()); err != nil {
		// The reminder row survives; delivery happens when the app next
		// opens instead of by push.
		logReminderFailure(ctx, "schedule", cal, dayIndex, err)
		return s.done(OutcomeFallbackOnOpen)
	}

	return s.done(OutcomeScheduled)
}

// RemindAt pins a door's unlock date to the reminder hour in local time.
func RemindAt(doorDate time.Time) time.Time {
	y, m, d := doorDate.Date()
	return time.Date(y, m, d, ReminderHour, 0, 0, 0, time.Local)
}

func (s *Scheduler) done(outcome Outcome) Outcome {
	metrics.RecordReminderOutcome(string(outcome))
	return outcome
}

func logReminderFailure(ctx context.Context, step string, cal *store.Calendar, dayIndex int, err error) {
	if reqID := metrics.RequestIDFromContext(ctx); reqID != "" {
		log.Printf("[WARN] RequestID=%s: reminder %s failed for calendar %s day %d: %v", reqID, step, cal.ID, dayIndex, err)
		return
	}
	log.Printf("[WARN] reminder %s failed for calendar %s day %d: %v", step, cal.ID, dayIndex, err)
}
