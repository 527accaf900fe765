package web

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/surpresalabs/surpresa/internal/auth"
	"github.com/surpresalabs/surpresa/internal/creation"
	httperrors "github.com/surpresalabs/surpresa/internal/http/errors"
	"github.com/surpresalabs/surpresa/internal/plan"
	"github.com/surpresalabs/surpresa/internal/store"
	"github.com/surpresalabs/surpresa/internal/theme"
	"github.com/surpresalabs/surpresa/internal/unlock"
)

// ListCalendars serves the owner's calendar list. A pending creation intent,
// if one followed the user through sign-in, is drained first so the freshly
// created calendar appears in the same response.
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	drained := h.processor.Drain(w, r, user)

	calendars, err := h.store.Calendars.ListByOwner(r.Context(), user.ID)
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to list calendars")
		return
	}

	payload := map[string]any{
		"calendars": ownerCalendarList(calendars),
	}
	switch drained.Outcome {
	case creation.OutcomeCreated:
		payload["created_calendar_id"] = drained.Calendar.ID.String()
	case creation.OutcomeFailed:
		payload["creation_failed"] = true
	}
	h.writeJSON(w, http.StatusOK, payload)
}

type createCalendarRequest struct {
	Title        string `json:"title"`
	ThemeID      string `json:"theme_id"`
	DurationDays int    `json:"duration_days"`
	StartDate    string `json:"start_date"`
	Privacy      string `json:"privacy"`
	Password     string `json:"password"`
}

// CreateCalendar is the explicit creation path. The plan gate decides
// whether the calendar starts active on the free tier or waits for payment
// on the paid one.
func (h *Handler) CreateCalendar(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req createCalendarRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if !theme.IsValid(req.ThemeID) {
		httperrors.BadRequestError(w, r, fmt.Errorf("unknown theme %q", req.ThemeID), "unknown theme")
		return
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httperrors.BadRequestError(w, r, err, "start_date must be YYYY-MM-DD")
		return
	}
	privacy := req.Privacy
	if privacy == "" {
		privacy = store.PrivacyPrivate
	}
	if privacy != store.PrivacyPublic && privacy != store.PrivacyPrivate {
		httperrors.BadRequestError(w, r, fmt.Errorf("invalid privacy %q", req.Privacy), "privacy must be public or private")
		return
	}

	status, err := plan.ComputeStatus(r.Context(), h.store.Calendars, user.ID, user.IsAdmin)
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to compute plan status")
		return
	}
	needsUpgrade := plan.NeedsUpgrade(req.ThemeID, req.DurationDays, status)

	cal := store.Calendar{
		OwnerID:      user.ID,
		Title:        req.Title,
		ThemeID:      req.ThemeID,
		DurationDays: req.DurationDays,
		StartDate:    startDate,
		Privacy:      privacy,
		Status:       store.StatusAtivo,
		IsPremium:    needsUpgrade,
	}
	if needsUpgrade {
		cal.Status = store.StatusAguardandoPagamento
	}
	if privacy == store.PrivacyPrivate && req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			httperrors.InternalError(w, r, err, "failed to hash calendar password")
			return
		}
		hashed := string(hash)
		cal.PasswordHash = &hashed
	}

	created, err := h.store.Calendars.Create(r.Context(), cal)
	if err != nil {
		httperrors.RepositoryError(w, r, err, "failed to create calendar")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"calendar":      ownerCalendar(created),
		"needs_upgrade": needsUpgrade,
	})
}

// GetCalendar serves the owner view of one calendar, every door resolved.
// With ?preview=1 the owner sees the calendar as a visitor would, consulting
// the separate preview ledger.
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := h.calendarID(w, r)
	if !ok {
		return
	}

	cal, days, err := h.store.Calendars.GetWithDays(r.Context(), id)
	if err != nil {
		httperrors.RepositoryError(w, r, err, "failed to load calendar")
		return
	}
	if cal.OwnerID != user.ID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	preview := r.URL.Query().Get("preview") == "1"
	previewLedger := h.client.PreviewLedger(r, cal.ID)
	now := time.Now()

	payload := ownerCalendar(cal)
	payload.Days = make([]dayPayload, 0, len(days))
	for _, day := range days {
		status := unlock.Resolve(unlock.Input{
			DayIndex:              day.DayIndex,
			StartDate:             cal.StartDate,
			Now:                   now,
			Role:                  unlock.RoleOwner,
			Preview:               preview,
			LocalOpened:           preview && previewLedger.Contains(day.DayIndex),
			RemoteOpenedCount:     day.OpenedCount,
			PreviewOverrideOpened: preview && previewLedger.Contains(day.DayIndex),
		})
		opened := day.OpenedCount
		payload.Days = append(payload.Days, dayPayload{
			DayIndex:          day.DayIndex,
			Status:            string(status),
			HasSpecialContent: day.HasSpecialContent(),
			HasMessage:        day.HasMessage,
			HasMedia:          day.HasMedia,
			HasLabel:          day.HasLabel,
			OpenedCount:       &opened,
		})
	}

	h.writeJSON(w, http.StatusOK, payload)
}

type updateCalendarRequest struct {
	Title          *string `json:"title"`
	ThemeID        *string `json:"theme_id"`
	Privacy        *string `json:"privacy"`
	Password       *string `json:"password"`
	RemovePassword bool    `json:"remove_password"`
}

// UpdateCalendar applies a partial settings update.
func (h *Handler) UpdateCalendar(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := h.calendarID(w, r)
	if !ok {
		return
	}

	var req updateCalendarRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.ThemeID != nil && !theme.IsValid(*req.ThemeID) {
		httperrors.BadRequestError(w, r, fmt.Errorf("unknown theme %q", *req.ThemeID), "unknown theme")
		return
	}
	if req.Privacy != nil && *req.Privacy != store.PrivacyPublic && *req.Privacy != store.PrivacyPrivate {
		httperrors.BadRequestError(w, r, fmt.Errorf("invalid privacy %q", *req.Privacy), "privacy must be public or private")
		return
	}

	update := store.CalendarUpdate{
		Title:   req.Title,
		ThemeID: req.ThemeID,
		Privacy: req.Privacy,
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			httperrors.InternalError(w, r, err, "failed to hash calendar password")
			return
		}
		hashed := string(hash)
		update.PasswordHash = &hashed
	} else if req.RemovePassword {
		update.RemovePassword = true
	}

	updated, err := h.store.Calendars.Update(r.Context(), user.ID, id, update)
	if err != nil {
		httperrors.RepositoryError(w, r, err, "failed to update calendar")
		return
	}
	h.writeJSON(w, http.StatusOK, ownerCalendar(updated))
}

type updateDayContentRequest struct {
	HasMessage bool `json:"has_message"`
	HasMedia   bool `json:"has_media"`
	HasLabel   bool `json:"has_label"`
}

// UpdateDayContent records which kinds of content a door carries. The flags
// drive the special-content hint on the visitor surface; they have no effect
// on when the door unlocks.
func (h *Handler) UpdateDayContent(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := h.calendarID(w, r)
	if !ok {
		return
	}
	cal, day, ok := h.loadDay(w, r, id)
	if !ok {
		return
	}
	if cal.OwnerID != user.ID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var req updateDayContentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.store.Days.UpdateContentFlags(r.Context(), cal.ID, day.DayIndex, req.HasMessage, req.HasMedia, req.HasLabel); err != nil {
		httperrors.RepositoryError(w, r, err, "failed to update day content")
		return
	}
	h.writeJSON(w, http.StatusOK, dayPayload{
		DayIndex:          day.DayIndex,
		HasSpecialContent: req.HasMessage || req.HasMedia || req.HasLabel,
		HasMessage:        req.HasMessage,
		HasMedia:          req.HasMedia,
		HasLabel:          req.HasLabel,
	})
}

// PreviewOpen records a door as opened in the owner's preview session. It
// only ever touches the preview ledger; visitor state and remote counters
// are untouched.
func (h *Handler) PreviewOpen(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := h.calendarID(w, r)
	if !ok {
		return
	}
	cal, day, ok := h.loadDay(w, r, id)
	if !ok {
		return
	}
	if cal.OwnerID != user.ID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	ledger := h.client.PreviewLedger(r, cal.ID)
	if ledger.Add(day.DayIndex) {
		if err := h.client.SavePreviewLedger(w, cal.ID, ledger); err != nil {
			httperrors.InternalError(w, r, err, "failed to persist preview ledger")
			return
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

// DeleteCalendar removes a calendar and cascades to its days and reminders.
func (h *Handler) DeleteCalendar(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := h.calendarID(w, r)
	if !ok {
		return
	}
	if err := h.store.Calendars.Delete(r.Context(), user.ID, id); err != nil {
		httperrors.RepositoryError(w, r, err, "failed to delete calendar")
		return
	}
	if err := h.store.Reminders.DeleteByCalendar(r.Context(), id); err != nil {
		httperrors.LogError(r, "failed to delete reminders for calendar", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConfirmPayment moves a paid calendar from aguardando_pagamento to ativo.
// The payment gateway callback lands elsewhere; this is the status
// transition it triggers.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := h.calendarID(w, r)
	if !ok {
		return
	}

	cal, err := h.store.Calendars.GetByID(r.Context(), id)
	if err != nil {
		httperrors.RepositoryError(w, r, err, "failed to load calendar")
		return
	}
	if cal.OwnerID != user.ID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if cal.Status != store.StatusAguardandoPagamento {
		httperrors.BadRequestError(w, r, fmt.Errorf("calendar %s is %s", cal.ID, cal.Status), "calendar is not awaiting payment")
		return
	}

	active := store.StatusAtivo
	updated, err := h.store.Calendars.Update(r.Context(), user.ID, id, store.CalendarUpdate{Status: &active})
	if err != nil {
		httperrors.RepositoryError(w, r, err, "failed to activate calendar")
		return
	}
	h.writeJSON(w, http.StatusOK, ownerCalendar(updated))
}

func ownerCalendar(cal *store.Calendar) calendarPayload {
	views, likes, shares := cal.Views, cal.Likes, cal.Shares
	return calendarPayload{
		ID:           cal.ID.String(),
		Title:        cal.Title,
		ThemeID:      cal.ThemeID,
		DurationDays: cal.DurationDays,
		StartDate:    unlock.Day(cal.StartDate).Format("2006-01-02"),
		Privacy:      cal.Privacy,
		Status:       cal.Status,
		IsPremium:    cal.IsPremium,
		Views:        &views,
		Likes:        &likes,
		Shares:       &shares,
	}
}

func ownerCalendarList(calendars []store.Calendar) []calendarPayload {
	out := make([]calendarPayload, 0, len(calendars))
	for i := range calendars {
		out = append(out, ownerCalendar(&calendars[i]))
	}
	return out
}
