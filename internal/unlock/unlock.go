// Package unlock decides whether a calendar door is locked, available, or
// opened for a given viewer. It is pure: callers supply the clock and any
// open evidence, and the resolver never touches storage.
package unlock

import "time"

// Status is the derived state of a single door.
type Status string

const (
	StatusLocked    Status = "locked"
	StatusAvailable Status = "available"
	StatusOpened    Status = "opened"
)

// Role distinguishes the calendar owner from everyone else.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleVisitor Role = "visitor"
)

// Input carries everything needed to resolve one door.
type Input struct {
	DayIndex  int
	StartDate time.Time
	Now       time.Time
	Role      Role

	// Preview puts an owner into the visitor simulation, where their own
	// local opens count as opened.
	Preview bool

	// LocalOpened reports whether this client already opened the day.
	LocalOpened bool

	// RemoteOpenedCount is the visitor open counter stored with the day.
	RemoteOpenedCount int64

	// PreviewOverrideOpened marks a door opened in an owner preview session
	// even if its date has not arrived.
	PreviewOverrideOpened bool
}

// DoorDate returns the calendar date at which the given 1-based day unlocks.
// Start dates are date-only; the result is midnight UTC of that day.
func DoorDate(startDate time.Time, dayIndex int) time.Time {
	return Day(startDate).AddDate(0, 0, dayIndex-1)
}

// Day truncates a timestamp to date granularity (midnight UTC).
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TimeUntilUnlock returns how long until the door's date arrives, or zero if
// it already has. Used by countdown payloads.
func TimeUntilUnlock(startDate time.Time, dayIndex int, now time.Time) time.Duration {
	door := DoorDate(startDate, dayIndex)
	if remaining := door.Sub(now.UTC()); remaining > 0 {
		return remaining
	}
	return 0
}

// Resolve computes the door status. It is total over its inputs and has no
// side effects.
//
// A door whose date has not arrived is locked, unless an owner preview has
// force-opened it. Once the date arrives, an owner outside preview only sees
// "opened" when a real visitor opened the day (RemoteOpenedCount > 0), so the
// owner dashboard reflects visitor engagement rather than the owner's own
// clicks. Visitors, and owners inside preview, see "opened" when either their
// local ledger or the remote counter says so.
func Resolve(in Input) Status {
	doorDate := DoorDate(in.StartDate, in.DayIndex)
	today := Day(in.Now)

	if doorDate.After(today) {
		if in.PreviewOverrideOpened {
			return StatusOpened
		}
		return StatusLocked
	}

	if in.Role == RoleOwner && !in.Preview {
		if in.RemoteOpenedCount > 0 {
			return StatusOpened
		}
		return StatusAvailable
	}

	if in.LocalOpened || in.RemoteOpenedCount > 0 {
		return StatusOpened
	}
	return StatusAvailable
}
