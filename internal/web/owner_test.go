package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/surpresalabs/surpresa/internal/clientstore"
	"github.com/surpresalabs/surpresa/internal/store"
	"github.com/surpresalabs/surpresa/internal/theme"
	"github.com/surpresalabs/surpresa/internal/unlock"
)

func TestListCalendarsDrainsPendingIntent(t *testing.T) {
	env := newTestEnv(t)
	user := &store.User{ID: 42}

	// The funnel left an intent cookie behind before sign-in.
	funnel := httptest.NewRecorder()
	if err := env.client.PutIntent(funnel, clientstore.Intent{
		RecipientHint: "meu namorado",
		CapturedAt:    time.Now().UnixMilli(),
	}); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	r := carryCookies(newRequest(t, http.MethodGet, "/calendars", nil, user, nil), funnel)
	env.handler.ListCalendars(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("ListCalendars() status = %d, want 200", w.Code)
	}
	body := decodeBody[struct {
		Calendars         []calendarPayload `json:"calendars"`
		CreatedCalendarID string            `json:"created_calendar_id"`
	}](t, w)
	if body.CreatedCalendarID == "" {
		t.Fatal("created_calendar_id missing after intent drain")
	}
	if len(body.Calendars) != 1 {
		t.Fatalf("listed %d calendars, want 1", len(body.Calendars))
	}
	if body.Calendars[0].ThemeID != theme.Namoro {
		t.Errorf("drained calendar theme = %q, want %q", body.Calendars[0].ThemeID, theme.Namoro)
	}
	if body.Calendars[0].Status != store.StatusAtivo {
		t.Errorf("drained calendar status = %q, want ativo", body.Calendars[0].Status)
	}
}

func TestListCalendarsWithoutIntent(t *testing.T) {
	env := newTestEnv(t)
	user := &store.User{ID: 42}

	w := httptest.NewRecorder()
	env.handler.ListCalendars(w, newRequest(t, http.MethodGet, "/calendars", nil, user, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("ListCalendars() status = %d, want 200", w.Code)
	}
	body := decodeBody[map[string]any](t, w)
	if _, ok := body["created_calendar_id"]; ok {
		t.Error("created_calendar_id present without a pending intent")
	}
}

func TestCreateCalendarPlanGate(t *testing.T) {
	tests := []struct {
		name         string
		themeID      string
		duration     int
		user         *store.User
		seedFree     bool
		wantStatus   string
		wantPremium  bool
		wantUpgrade  bool
		wantHTTPCode int
	}{
		{
			name:         "free config stays active",
			themeID:      theme.Carnaval,
			duration:     7,
			user:         &store.User{ID: 1},
			wantStatus:   store.StatusAtivo,
			wantPremium:  false,
			wantUpgrade:  false,
			wantHTTPCode: http.StatusCreated,
		},
		{
			name:         "long duration awaits payment",
			themeID:      theme.Carnaval,
			duration:     12,
			user:         &store.User{ID: 1},
			wantStatus:   store.StatusAguardandoPagamento,
			wantPremium:  true,
			wantUpgrade:  true,
			wantHTTPCode: http.StatusCreated,
		},
		{
			name:         "plus theme awaits payment",
			themeID:      theme.Casamento,
			duration:     5,
			user:         &store.User{ID: 1},
			wantStatus:   store.StatusAguardandoPagamento,
			wantPremium:  true,
			wantUpgrade:  true,
			wantHTTPCode: http.StatusCreated,
		},
		{
			name:         "second free calendar awaits payment",
			themeID:      theme.Natal,
			duration:     7,
			user:         &store.User{ID: 1},
			seedFree:     true,
			wantStatus:   store.StatusAguardandoPagamento,
			wantPremium:  true,
			wantUpgrade:  true,
			wantHTTPCode: http.StatusCreated,
		},
		{
			name:         "admin bypasses the gate",
			themeID:      theme.Casamento,
			duration:     30,
			user:         &store.User{ID: 1, IsAdmin: true},
			seedFree:     true,
			wantStatus:   store.StatusAtivo,
			wantPremium:  false,
			wantUpgrade:  false,
			wantHTTPCode: http.StatusCreated,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tc.seedFree {
				seedCalendar(env, func(c *store.Calendar) { c.OwnerID = tc.user.ID })
			}

			req := map[string]any{
				"title":         "Para você",
				"theme_id":      tc.themeID,
				"duration_days": tc.duration,
				"start_date":    "2026-12-01",
				"privacy":       store.PrivacyPublic,
			}
			w := httptest.NewRecorder()
			env.handler.CreateCalendar(w, newRequest(t, http.MethodPost, "/calendars", req, tc.user, nil))

			if w.Code != tc.wantHTTPCode {
				t.Fatalf("CreateCalendar() status = %d, want %d: %s", w.Code, tc.wantHTTPCode, w.Body.String())
			}
			body := decodeBody[struct {
				Calendar     calendarPayload `json:"calendar"`
				NeedsUpgrade bool            `json:"needs_upgrade"`
			}](t, w)
			if body.Calendar.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", body.Calendar.Status, tc.wantStatus)
			}
			if body.Calendar.IsPremium != tc.wantPremium {
				t.Errorf("is_premium = %v, want %v", body.Calendar.IsPremium, tc.wantPremium)
			}
			if body.NeedsUpgrade != tc.wantUpgrade {
				t.Errorf("needs_upgrade = %v, want %v", body.NeedsUpgrade, tc.wantUpgrade)
			}
		})
	}
}

func TestCreateCalendarRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	user := &store.User{ID: 1}

	tests := []struct {
		name string
		req  map[string]any
	}{
		{
			name: "unknown theme",
			req:  map[string]any{"theme_id": "halloween", "duration_days": 7, "start_date": "2026-12-01"},
		},
		{
			name: "bad start date",
			req:  map[string]any{"theme_id": theme.Natal, "duration_days": 7, "start_date": "01/12/2026"},
		},
		{
			name: "bad privacy",
			req:  map[string]any{"theme_id": theme.Natal, "duration_days": 7, "start_date": "2026-12-01", "privacy": "secret"},
		},
		{
			name: "non-positive duration",
			req:  map[string]any{"theme_id": theme.Natal, "duration_days": 0, "start_date": "2026-12-01"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.handler.CreateCalendar(w, newRequest(t, http.MethodPost, "/calendars", tc.req, user, nil))
			if w.Code != http.StatusBadRequest {
				t.Errorf("CreateCalendar() status = %d, want 400", w.Code)
			}
		})
	}
}

func TestGetCalendarOwnershipAndPreview(t *testing.T) {
	env := newTestEnv(t)
	cal := seedCalendar(env, nil)
	params := map[string]string{"id": cal.ID.String()}

	// A different user gets a 404, not a 403, so calendar IDs leak nothing.
	w := httptest.NewRecorder()
	env.handler.GetCalendar(w, newRequest(t, http.MethodGet, "/calendars/"+cal.ID.String(), nil, &store.User{ID: 999}, params))
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign GetCalendar() status = %d, want 404", w.Code)
	}

	owner := &store.User{ID: cal.OwnerID}

	// Preview-open a future door, then view in preview mode.
	openParams := map[string]string{"id": cal.ID.String(), "index": "5"}
	openResp := httptest.NewRecorder()
	env.handler.PreviewOpen(openResp, newRequest(t, http.MethodPost, "/calendars/"+cal.ID.String()+"/days/5/preview-open", nil, owner, openParams))
	if openResp.Code != http.StatusOK {
		t.Fatalf("PreviewOpen() status = %d, want 200", openResp.Code)
	}
	if got := env.repo.openedCount(cal.ID, 5); got != 0 {
		t.Errorf("preview open moved the remote counter to %d, want 0", got)
	}

	w = httptest.NewRecorder()
	r := carryCookies(newRequest(t, http.MethodGet, "/calendars/"+cal.ID.String()+"?preview=1", nil, owner, params), openResp)
	env.handler.GetCalendar(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("GetCalendar() status = %d, want 200", w.Code)
	}
	payload := decodeBody[calendarPayload](t, w)
	var day5 *dayPayload
	for i := range payload.Days {
		if payload.Days[i].DayIndex == 5 {
			day5 = &payload.Days[i]
		}
	}
	if day5 == nil {
		t.Fatal("day 5 missing from payload")
	}
	if day5.Status != string(unlock.StatusOpened) {
		t.Errorf("previewed future door status = %q, want opened", day5.Status)
	}

	// Outside preview the same door is still locked.
	w = httptest.NewRecorder()
	r = carryCookies(newRequest(t, http.MethodGet, "/calendars/"+cal.ID.String(), nil, owner, params), openResp)
	env.handler.GetCalendar(w, r)
	payload = decodeBody[calendarPayload](t, w)
	for _, day := range payload.Days {
		if day.DayIndex == 5 && day.Status != string(unlock.StatusLocked) {
			t.Errorf("door 5 outside preview = %q, want locked", day.Status)
		}
	}
}

func TestUpdateCalendar(t *testing.T) {
	env := newTestEnv(t)
	cal := seedCalendar(env, nil)
	owner := &store.User{ID: cal.OwnerID}
	params := map[string]string{"id": cal.ID.String()}

	w := httptest.NewRecorder()
	req := map[string]any{"title": "Novo título", "privacy": store.PrivacyPrivate, "password": "segredo"}
	env.handler.UpdateCalendar(w, newRequest(t, http.MethodPut, "/calendars/"+cal.ID.String(), req, owner, params))
	if w.Code != http.StatusOK {
		t.Fatalf("UpdateCalendar() status = %d, want 200: %s", w.Code, w.Body.String())
	}
	payload := decodeBody[calendarPayload](t, w)
	if payload.Title != "Novo título" {
		t.Errorf("title = %q, want updated", payload.Title)
	}
	if payload.Privacy != store.PrivacyPrivate {
		t.Errorf("privacy = %q, want private", payload.Privacy)
	}

	stored, err := env.repo.GetByID(context.Background(), cal.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.PasswordHash == nil {
		t.Error("password not stored")
	}

	// Unknown theme is rejected before touching the store.
	w = httptest.NewRecorder()
	env.handler.UpdateCalendar(w, newRequest(t, http.MethodPut, "/calendars/"+cal.ID.String(), map[string]any{"theme_id": "halloween"}, owner, params))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad theme update status = %d, want 400", w.Code)
	}
}

func TestConfirmPayment(t *testing.T) {
	env := newTestEnv(t)
	cal := seedCalendar(env, func(c *store.Calendar) {
		c.Status = store.StatusAguardandoPagamento
		c.IsPremium = true
	})
	owner := &store.User{ID: cal.OwnerID}
	params := map[string]string{"id": cal.ID.String()}

	w := httptest.NewRecorder()
	env.handler.ConfirmPayment(w, newRequest(t, http.MethodPost, "/calendars/"+cal.ID.String()+"/confirm-payment", nil, owner, params))
	if w.Code != http.StatusOK {
		t.Fatalf("ConfirmPayment() status = %d, want 200", w.Code)
	}
	payload := decodeBody[calendarPayload](t, w)
	if payload.Status != store.StatusAtivo {
		t.Errorf("status = %q, want ativo", payload.Status)
	}
	if !payload.IsPremium {
		t.Error("is_premium lost on payment confirmation")
	}

	// A second confirmation is a 400: the calendar is no longer waiting.
	w = httptest.NewRecorder()
	env.handler.ConfirmPayment(w, newRequest(t, http.MethodPost, "/calendars/"+cal.ID.String()+"/confirm-payment", nil, owner, params))
	if w.Code != http.StatusBadRequest {
		t.Errorf("repeat ConfirmPayment() status = %d, want 400", w.Code)
	}
}

func TestUpdateDayContent(t *testing.T) {
	env := newTestEnv(t)
	cal := seedCalendar(env, nil)
	owner := &store.User{ID: cal.OwnerID}
	params := map[string]string{"id": cal.ID.String(), "index": "3"}
	body := map[string]bool{"has_message": true, "has_media": true}

	w := httptest.NewRecorder()
	env.handler.UpdateDayContent(w, newRequest(t, http.MethodPut, "/calendars/"+cal.ID.String()+"/days/3", body, owner, params))
	if w.Code != http.StatusOK {
		t.Fatalf("UpdateDayContent() status = %d, want 200", w.Code)
	}
	got := decodeBody[dayPayload](t, w)
	if !got.HasSpecialContent || !got.HasMessage || !got.HasMedia || got.HasLabel {
		t.Errorf("UpdateDayContent() payload = %+v, want message+media set", got)
	}

	day, err := env.repo.GetByIndex(context.Background(), cal.ID, 3)
	if err != nil {
		t.Fatalf("GetByIndex() error = %v", err)
	}
	if !day.HasMessage || !day.HasMedia || day.HasLabel {
		t.Errorf("stored flags = %v/%v/%v, want true/true/false", day.HasMessage, day.HasMedia, day.HasLabel)
	}

	stranger := &store.User{ID: cal.OwnerID + 1}
	w = httptest.NewRecorder()
	env.handler.UpdateDayContent(w, newRequest(t, http.MethodPut, "/calendars/"+cal.ID.String()+"/days/3", body, stranger, params))
	if w.Code != http.StatusNotFound {
		t.Errorf("UpdateDayContent() by non-owner = %d, want 404", w.Code)
	}
}

func TestDeleteCalendar(t *testing.T) {
	env := newTestEnv(t)
	cal := seedCalendar(env, nil)
	owner := &store.User{ID: cal.OwnerID}
	params := map[string]string{"id": cal.ID.String()}
	if _, err := env.reminders.Upsert(context.Background(), store.Reminder{CalendarID: cal.ID, DayIndex: 2}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	w := httptest.NewRecorder()
	env.handler.DeleteCalendar(w, newRequest(t, http.MethodDelete, "/calendars/"+cal.ID.String(), nil, owner, params))
	if w.Code != http.StatusNoContent {
		t.Fatalf("DeleteCalendar() status = %d, want 204", w.Code)
	}
	if len(env.reminders.byKey) != 0 {
		t.Errorf("reminders left after delete = %d, want 0", len(env.reminders.byKey))
	}

	w = httptest.NewRecorder()
	env.handler.GetCalendar(w, newRequest(t, http.MethodGet, "/calendars/"+cal.ID.String(), nil, owner, params))
	if w.Code != http.StatusNotFound {
		t.Errorf("GetCalendar() after delete = %d, want 404", w.Code)
	}
}

func TestRemovePasswordReopensCalendar(t *testing.T) {
	env := newTestEnv(t)
	cal := seedPrivateCalendar(t, env, "segredo")
	owner := &store.User{ID: cal.OwnerID}
	params := map[string]string{"id": cal.ID.String()}

	w := httptest.NewRecorder()
	env.handler.ViewCalendar(w, newRequest(t, http.MethodGet, "/c/"+cal.ID.String(), nil, nil, params))
	if w.Code != http.StatusForbidden {
		t.Fatalf("view before removal = %d, want 403", w.Code)
	}

	w = httptest.NewRecorder()
	env.handler.UpdateCalendar(w, newRequest(t, http.MethodPut, "/calendars/"+cal.ID.String(), map[string]any{"remove_password": true}, owner, params))
	if w.Code != http.StatusOK {
		t.Fatalf("UpdateCalendar() status = %d, want 200: %s", w.Code, w.Body.String())
	}

	stored, err := env.repo.GetByID(context.Background(), cal.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.PasswordHash != nil {
		t.Errorf("password hash = %q after removal, want nil", *stored.PasswordHash)
	}

	// A plain visitor gets in without any password now.
	w = httptest.NewRecorder()
	env.handler.ViewCalendar(w, newRequest(t, http.MethodGet, "/c/"+cal.ID.String(), nil, nil, params))
	if w.Code != http.StatusOK {
		t.Errorf("view after removal = %d, want 200", w.Code)
	}
}
