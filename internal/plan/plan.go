// Package plan implements the free-tier rules: which configurations require
// the paid plan, and how an owner's existing calendars feed into that.
package plan

import (
	"context"

	"github.com/surpresalabs/surpresa/internal/store"
	"github.com/surpresalabs/surpresa/internal/theme"
)

// FreeDurationCeiling is the longest calendar the free tier allows.
const FreeDurationCeiling = 7

// Status summarizes the owner's standing for the gate.
type Status struct {
	IsAdmin             bool
	HasUsedFreeCalendar bool
}

// NeedsUpgrade reports whether the requested configuration requires the paid
// tier. Admins are never gated. Otherwise an upgrade is required when the
// theme is plus-only, the duration exceeds the free ceiling, or the owner
// already spent their free calendar.
func NeedsUpgrade(themeID string, durationDays int, status Status) bool {
	if status.IsAdmin {
		return false
	}
	if theme.IsPlus(themeID) {
		return true
	}
	if durationDays > FreeDurationCeiling {
		return true
	}
	return status.HasUsedFreeCalendar
}

// CalendarLister is the slice of the calendar repository the gate consults.
type CalendarLister interface {
	ListByOwner(ctx context.Context, ownerID int64) ([]store.Calendar, error)
}

// ComputeStatus derives the owner's plan status from their existing
// calendars: any prior non-premium calendar consumes the free slot.
func ComputeStatus(ctx context.Context, lister CalendarLister, ownerID int64, isAdmin bool) (Status, error) {
	owned, err := lister.ListByOwner(ctx, ownerID)
	if err != nil {
		return Status{}, err
	}
	status := Status{IsAdmin: isAdmin}
	for _, cal := range owned {
		if !cal.IsPremium {
			status.HasUsedFreeCalendar = true
			break
		}
	}
	return status, nil
}
