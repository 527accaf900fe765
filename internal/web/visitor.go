package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/surpresalabs/surpresa/internal/auth"
	httperrors "github.com/surpresalabs/surpresa/internal/http/errors"
	"github.com/surpresalabs/surpresa/internal/reminder"
	"github.com/surpresalabs/surpresa/internal/store"
	"github.com/surpresalabs/surpresa/internal/unlock"
)

type dayPayload struct {
	DayIndex          int    `json:"day_index"`
	Status            string `json:"status,omitempty"`
	HasSpecialContent bool   `json:"has_special_content"`
	HasMessage        bool   `json:"has_message,omitempty"`
	HasMedia          bool   `json:"has_media,omitempty"`
	HasLabel          bool   `json:"has_label,omitempty"`
	OpenedCount       *int64 `json:"opened_count,omitempty"`
}

type calendarPayload struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	ThemeID      string       `json:"theme_id"`
	DurationDays int          `json:"duration_days"`
	StartDate    string       `json:"start_date"`
	Privacy      string       `json:"privacy"`
	Status       string       `json:"status,omitempty"`
	IsPremium    bool         `json:"is_premium,omitempty"`
	Views        *int64       `json:"views,omitempty"`
	Likes        *int64       `json:"likes,omitempty"`
	Shares       *int64       `json:"shares,omitempty"`
	Days         []dayPayload `json:"days,omitempty"`
}

// ViewCalendar serves the visitor-facing calendar with every door resolved.
// For private calendars the password must have been verified first; no day
// data leaves before that.
func (h *Handler) ViewCalendar(w http.ResponseWriter, r *http.Request) {
	id, ok := h.calendarID(w, r)
	if !ok {
		return
	}

	cal, days, err := h.store.Calendars.GetWithDays(r.Context(), id)
	if err != nil {
		httperrors.RepositoryError(w, r, err, "failed to load calendar")
		return
	}

	viewerIsOwner, ok := h.visitorGate(w, r, cal)
	if !ok {
		return
	}

	ledger := h.client.Ledger(r, cal.ID)
	now := time.Now()

	payload := calendarPayload{
		ID:           cal.ID.String(),
		Title:        cal.Title,
		ThemeID:      cal.ThemeID,
		DurationDays: cal.DurationDays,
		StartDate:    unlock.Day(cal.StartDate).Format("2006-01-02"),
		Privacy:      cal.Privacy,
		Days:         make([]dayPayload, 0, len(days)),
	}
	role := unlock.RoleVisitor
	if viewerIsOwner {
		role = unlock.RoleOwner
	}
	for _, day := range days {
		status := unlock.Resolve(unlock.Input{
			DayIndex:          day.DayIndex,
			StartDate:         cal.StartDate,
			Now:               now,
			Role:              role,
			LocalOpened:       ledger.Contains(day.DayIndex),
			RemoteOpenedCount: day.OpenedCount,
		})
		payload.Days = append(payload.Days, dayPayload{
			DayIndex:          day.DayIndex,
			Status:            string(status),
			HasSpecialContent: day.HasSpecialContent(),
		})
	}

	h.tracker.RecordView(r.Context(), cal, viewerIsOwner)

	h.writeJSON(w, http.StatusOK, payload)
}

// UnlockPrivate verifies a private calendar's password and grants this
// client access to it.
func (h *Handler) UnlockPrivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.calendarID(w, r)
	if !ok {
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	cal, err := h.store.Calendars.GetByID(r.Context(), id)
	if err != nil {
		httperrors.RepositoryError(w, r, err, "failed to load calendar")
		return
	}
	if cal.Privacy != store.PrivacyPrivate || cal.PasswordHash == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"granted": true})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(*cal.PasswordHash), []byte(req.Password)) != nil {
		h.writeJSON(w, http.StatusForbidden, map[string]any{"granted": false})
		return
	}
	if err := h.client.GrantAccess(w, cal.ID); err != nil {
		httperrors.InternalError(w, r, err, "failed to grant calendar access")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"granted": true})
}

// OpenDay handles a door open attempt. A locked door reports its countdown;
// an unlocked one records the open and returns the day's content flags.
func (h *Handler) OpenDay(w http.ResponseWriter, r *http.Request) {
	id, ok := h.calendarID(w, r)
	if !ok {
		return
	}
	cal, day, ok := h.loadDay(w, r, id)
	if !ok {
		return
	}

	viewerIsOwner, ok := h.visitorGate(w, r, cal)
	if !ok {
		return
	}

	ledger := h.client.Ledger(r, cal.ID)
	now := time.Now()
	role := unlock.RoleVisitor
	if viewerIsOwner {
		role = unlock.RoleOwner
	}
	status := unlock.Resolve(unlock.Input{
		DayIndex:          day.DayIndex,
		StartDate:         cal.StartDate,
		Now:               now,
		Role:              role,
		LocalOpened:       ledger.Contains(day.DayIndex),
		RemoteOpenedCount: day.OpenedCount,
	})
	if status == unlock.StatusLocked {
		h.writeJSON(w, http.StatusForbidden, map[string]any{
			"status":            string(unlock.StatusLocked),
			"seconds_remaining": int64(unlock.TimeUntilUnlock(cal.StartDate, day.DayIndex, now).Seconds()),
		})
		return
	}

	if h.tracker.RecordDoorOpen(r.Context(), day, viewerIsOwner, ledger) {
		if err := h.client.SaveLedger(w, cal.ID, ledger); err != nil {
			httperrors.LogError(r, fmt.Sprintf("failed to persist open ledger for calendar %s", cal.ID), err)
		}
	}

	h.writeJSON(w, http.StatusOK, dayPayload{
		DayIndex:          day.DayIndex,
		Status:            string(unlock.StatusOpened),
		HasSpecialContent: day.HasSpecialContent(),
		HasMessage:        day.HasMessage,
		HasMedia:          day.HasMedia,
		HasLabel:          day.HasLabel,
	})
}

// Like bumps the like counter. Forward-only: there is no unlike.
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	h.recordCounter(w, r, h.tracker.RecordLike)
}

// Share bumps the share counter.
func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	h.recordCounter(w, r, h.tracker.RecordShare)
}

// Countdown reports the time remaining until a door unlocks.
func (h *Handler) Countdown(w http.ResponseWriter, r *http.Request) {
	id, ok := h.calendarID(w, r)
	if !ok {
		return
	}
	cal, day, ok := h.loadDay(w, r, id)
	if !ok {
		return
	}
	if _, ok := h.visitorGate(w, r, cal); !ok {
		return
	}

	now := time.Now()
	remaining := unlock.TimeUntilUnlock(cal.StartDate, day.DayIndex, now)

	reminderSet := false
	if _, err := h.store.Reminders.GetByKey(r.Context(), cal.ID, day.DayIndex); err == nil {
		reminderSet = true
	} else if !errors.Is(err, store.ErrNotFound) {
		httperrors.LogError(r, "failed to look up reminder", err)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"day_index":         day.DayIndex,
		"unlocks_at":        unlock.DoorDate(cal.StartDate, day.DayIndex).Format(time.RFC3339),
		"seconds_remaining": int64(remaining.Seconds()),
		"reminder_set":      reminderSet,
	})
}

// Remind walks the notification capability ladder for a locked door and
// reports the outcome. Every outcome is a 200; none of them block the
// viewer.
func (h *Handler) Remind(w http.ResponseWriter, r *http.Request) {
	id, ok := h.calendarID(w, r)
	if !ok {
		return
	}
	cal, day, ok := h.loadDay(w, r, id)
	if !ok {
		return
	}
	if _, ok := h.visitorGate(w, r, cal); !ok {
		return
	}

	var caps reminder.ClientCapabilities
	if !h.decodeJSON(w, r, &caps) {
		return
	}

	doorDate := unlock.DoorDate(cal.StartDate, day.DayIndex)
	outcome := h.scheduler.Request(r.Context(), caps, cal, day.DayIndex, doorDate)
	h.writeJSON(w, http.StatusOK, map[string]any{"outcome": string(outcome)})
}

// recordCounter is the shared shape of the like and share endpoints: load
// the calendar, apply the counter, acknowledge. The counter write itself is
// optimistic; a failed increment is already logged by the tracker.
func (h *Handler) recordCounter(w http.ResponseWriter, r *http.Request, record func(ctx context.Context, cal *store.Calendar)) {
	id, ok := h.calendarID(w, r)
	if !ok {
		return
	}
	cal, err := h.store.Calendars.GetByID(r.Context(), id)
	if err != nil {
		httperrors.RepositoryError(w, r, err, "failed to load calendar")
		return
	}
	if _, ok := h.visitorGate(w, r, cal); !ok {
		return
	}
	record(r.Context(), cal)
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// loadDay resolves the {id}/{index} pair into a calendar and one of its
// days.
func (h *Handler) loadDay(w http.ResponseWriter, r *http.Request, calID uuid.UUID) (*store.Calendar, *store.CalendarDay, bool) {
	cal, err := h.store.Calendars.GetByID(r.Context(), calID)
	if err != nil {
		httperrors.RepositoryError(w, r, err, "failed to load calendar")
		return nil, nil, false
	}
	idx, ok := parseDayIndex(w, r, cal.DurationDays)
	if !ok {
		return nil, nil, false
	}
	day, err := h.store.Days.GetByIndex(r.Context(), cal.ID, idx)
	if err != nil {
		httperrors.RepositoryError(w, r, err, "failed to load calendar day")
		return nil, nil, false
	}
	return cal, day, true
}

func visitorViewable(status string) bool {
	return status == store.StatusAtivo || status == store.StatusFinalizado
}

// visitorGate enforces the calendar's visibility rules for everyone but the
// owner: drafts and unpaid calendars read as missing, and a private calendar
// demands its password grant before any door data leaves. It writes the
// denial response itself.
func (h *Handler) visitorGate(w http.ResponseWriter, r *http.Request, cal *store.Calendar) (viewerIsOwner, ok bool) {
	user, _ := auth.UserFromContext(r.Context())
	if user != nil && user.ID == cal.OwnerID {
		return true, true
	}
	if !visitorViewable(cal.Status) {
		http.Error(w, "not found", http.StatusNotFound)
		return false, false
	}
	if cal.Privacy == store.PrivacyPrivate && cal.PasswordHash != nil && !h.client.HasAccess(r, cal.ID) {
		h.writeJSON(w, http.StatusForbidden, map[string]any{"requires_password": true})
		return false, false
	}
	return false, true
}

func parseDayIndex(w http.ResponseWriter, r *http.Request, duration int) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 1 || idx > duration {
		httperrors.BadRequestError(w, r, fmt.Errorf("day index %q out of range", chi.URLParam(r, "index")), "invalid day index")
		return 0, false
	}
	return idx, true
}
