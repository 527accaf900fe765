package store

import (
	"time"

	"github.com/google/uuid"
)

// Privacy values for a calendar.
const (
	PrivacyPublic  = "public"
	PrivacyPrivate = "private"
)

// Calendar status values. Names follow the product's Portuguese vocabulary.
const (
	StatusRascunho            = "rascunho"
	StatusAtivo               = "ativo"
	StatusAguardandoPagamento = "aguardando_pagamento"
	StatusFinalizado          = "finalizado"
)

// User represents a person authenticated via OAuth.
type User struct {
	ID               int64
	OAuthSubject     string
	PrimaryEmail     string
	IsAdmin          bool
	MarketingConsent bool
	CreatedAt        time.Time
	LastLoginAt      time.Time
}

// Calendar is one surprise-calendar experience owned by a user.
type Calendar struct {
	ID           uuid.UUID
	OwnerID      int64
	Title        string
	ThemeID      string
	DurationDays int
	StartDate    time.Time
	Privacy      string
	PasswordHash *string
	Status       string
	IsPremium    bool
	Views        int64
	Likes        int64
	Shares       int64
	CreatedAt    time.Time
}

// CalendarDay is one door, 1..DurationDays, owned by exactly one calendar.
// Content flags feed "has special content" hints in payloads; they never
// influence unlock state.
type CalendarDay struct {
	ID          int64
	CalendarID  uuid.UUID
	DayIndex    int
	HasMessage  bool
	HasMedia    bool
	HasLabel    bool
	OpenedCount int64
}

// HasSpecialContent reports whether the day carries anything beyond the
// default filler.
func (d CalendarDay) HasSpecialContent() bool {
	return d.HasMessage || d.HasMedia || d.HasLabel
}

// Reminder is a scheduled one-shot push for a locked door. At most one
// exists per (calendar, day index); rescheduling overwrites.
type Reminder struct {
	ID           int64
	CalendarID   uuid.UUID
	DayIndex     int
	RemindAt     time.Time
	Subscription string
	CreatedAt    time.Time
}

// CalendarUpdate carries the partial fields an owner may change after
// creation. Nil pointers leave the column untouched.
type CalendarUpdate struct {
	Title        *string
	ThemeID      *string
	Privacy      *string
	PasswordHash *string
	Status       *string
	IsPremium    *bool
	// RemovePassword clears the stored hash outright. It wins over
	// PasswordHash when both are set.
	RemovePassword bool
}
