package store

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	UpsertOAuthUser(ctx context.Context, subject, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	SetMarketingConsent(ctx context.Context, id int64, consent bool) error
}

// CalendarRepository handles the calendar aggregate lifecycle.
//
// The increment operations are atomic at the storage layer (counter = counter
// + 1 in SQL), so callers never read-modify-write counters.
type CalendarRepository interface {
	Create(ctx context.Context, cal Calendar) (*Calendar, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Calendar, error)
	GetWithDays(ctx context.Context, id uuid.UUID) (*Calendar, []CalendarDay, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Calendar, error)
	Update(ctx context.Context, ownerID int64, id uuid.UUID, update CalendarUpdate) (*Calendar, error)
	Delete(ctx context.Context, ownerID int64, id uuid.UUID) error

	IncrementViews(ctx context.Context, id uuid.UUID) error
	IncrementLikes(ctx context.Context, id uuid.UUID) error
	IncrementShares(ctx context.Context, id uuid.UUID) error
}

// CalendarDayRepository handles per-door storage.
type CalendarDayRepository interface {
	GetByIndex(ctx context.Context, calendarID uuid.UUID, dayIndex int) (*CalendarDay, error)
	UpdateContentFlags(ctx context.Context, calendarID uuid.UUID, dayIndex int, hasMessage, hasMedia, hasLabel bool) error
	IncrementOpened(ctx context.Context, dayID int64) error
}

// ReminderRepository stores one-shot door reminders, at most one per
// (calendar, day index).
type ReminderRepository interface {
	Upsert(ctx context.Context, rem Reminder) (*Reminder, error)
	GetByKey(ctx context.Context, calendarID uuid.UUID, dayIndex int) (*Reminder, error)
	DeleteByCalendar(ctx context.Context, calendarID uuid.UUID) error
}
