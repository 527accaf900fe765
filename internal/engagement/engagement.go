// Package engagement increments the calendar's view/open/like/share counters
// with at-most-once semantics per browsing session. Counter writes are
// telemetry: failures are logged and swallowed, never surfaced to the viewer.
package engagement

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/surpresalabs/surpresa/internal/clientstore"
	"github.com/surpresalabs/surpresa/internal/metrics"
	"github.com/surpresalabs/surpresa/internal/store"
)

// CounterRepo is the calendar-level counter slice of the repository.
type CounterRepo interface {
	IncrementViews(ctx context.Context, id uuid.UUID) error
	IncrementLikes(ctx context.Context, id uuid.UUID) error
	IncrementShares(ctx context.Context, id uuid.UUID) error
}

// DayCounterRepo is the per-door counter slice of the repository.
type DayCounterRepo interface {
	IncrementOpened(ctx context.Context, dayID int64) error
}

// Tracker applies engagement counters, guarding against owner self-counting
// and against repeat counting within a session.
type Tracker struct {
	calendars CounterRepo
	days      DayCounterRepo
}

func NewTracker(calendars CounterRepo, days DayCounterRepo) *Tracker {
	return &Tracker{calendars: calendars, days: days}
}

// RecordView bumps the view counter for a calendar load. Owner views never
// count.
func (t *Tracker) RecordView(ctx context.Context, cal *store.Calendar, viewerIsOwner bool) {
	if viewerIsOwner {
		return
	}
	err := t.calendars.IncrementViews(ctx, cal.ID)
	metrics.RecordEngagementIncrement("views", err)
	if err != nil {
		logIncrementFailure(ctx, "views", err)
	}
}

// RecordDoorOpen records an open attempt. The local ledger and the remote
// counter are guarded independently: the day is added to the ledger for any
// viewer, while the remote counter moves only on a non-owner's first open of
// the day in this session. Returns true when the ledger changed and must be
// persisted by the caller.
func (t *Tracker) RecordDoorOpen(ctx context.Context, day *store.CalendarDay, viewerIsOwner bool, ledger *clientstore.OpenLedger) bool {
	added := ledger.Add(day.DayIndex)

	if added && !viewerIsOwner {
		err := t.days.IncrementOpened(ctx, day.ID)
		metrics.RecordEngagementIncrement("opens", err)
		if err != nil {
			logIncrementFailure(ctx, "opens", err)
		}
	}

	return added
}

// RecordLike bumps the like counter. Likes are forward-only: un-liking in
// the client never decrements.
func (t *Tracker) RecordLike(ctx context.Context, cal *store.Calendar) {
	err := t.calendars.IncrementLikes(ctx, cal.ID)
	metrics.RecordEngagementIncrement("likes", err)
	if err != nil {
		logIncrementFailure(ctx, "likes", err)
	}
}

// RecordShare bumps the share counter.
func (t *Tracker) RecordShare(ctx context.Context, cal *store.Calendar) {
	err := t.calendars.IncrementShares(ctx, cal.ID)
	metrics.RecordEngagementIncrement("shares", err)
	if err != nil {
		logIncrementFailure(ctx, "shares", err)
	}
}

func logIncrementFailure(ctx context.Context, kind string, err error) {
	if reqID := metrics.RequestIDFromContext(ctx); reqID != "" {
		log.Printf("[WARN] RequestID=%s: %s increment failed: %v", reqID, kind, err)
		return
	}
	log.Printf("[WARN] %s increment failed: %v", kind, err)
}
