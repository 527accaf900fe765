package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/surpresalabs/surpresa/internal/auth"
	"github.com/surpresalabs/surpresa/internal/clientstore"
	"github.com/surpresalabs/surpresa/internal/config"
	"github.com/surpresalabs/surpresa/internal/creation"
	"github.com/surpresalabs/surpresa/internal/engagement"
	"github.com/surpresalabs/surpresa/internal/reminder"
	"github.com/surpresalabs/surpresa/internal/store"
)

// fakeRepo backs both the calendar and the day repository with one in-memory
// aggregate, mirroring how the two share storage in production.
type fakeRepo struct {
	mu        sync.Mutex
	calendars map[uuid.UUID]*store.Calendar
	days      map[uuid.UUID][]store.CalendarDay
	nextDayID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		calendars: make(map[uuid.UUID]*store.Calendar),
		days:      make(map[uuid.UUID][]store.CalendarDay),
	}
}

func (f *fakeRepo) put(cal store.Calendar) *store.Calendar {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cal.ID == uuid.Nil {
		cal.ID = uuid.New()
	}
	f.calendars[cal.ID] = &cal
	if _, ok := f.days[cal.ID]; !ok {
		days := make([]store.CalendarDay, 0, cal.DurationDays)
		for i := 1; i <= cal.DurationDays; i++ {
			f.nextDayID++
			days = append(days, store.CalendarDay{ID: f.nextDayID, CalendarID: cal.ID, DayIndex: i})
		}
		f.days[cal.ID] = days
	}
	return f.calendars[cal.ID]
}

func (f *fakeRepo) Create(ctx context.Context, cal store.Calendar) (*store.Calendar, error) {
	if cal.DurationDays <= 0 {
		return nil, store.ValidationError("duration must be at least one day")
	}
	created := f.put(cal)
	cp := *created
	return &cp, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.Calendar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cal, ok := f.calendars[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *cal
	return &cp, nil
}

func (f *fakeRepo) GetWithDays(ctx context.Context, id uuid.UUID) (*store.Calendar, []store.CalendarDay, error) {
	cal, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	days := make([]store.CalendarDay, len(f.days[id]))
	copy(days, f.days[id])
	return cal, days, nil
}

func (f *fakeRepo) ListByOwner(ctx context.Context, ownerID int64) ([]store.Calendar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Calendar
	for _, cal := range f.calendars {
		if cal.OwnerID == ownerID {
			out = append(out, *cal)
		}
	}
	return out, nil
}

func (f *fakeRepo) Update(ctx context.Context, ownerID int64, id uuid.UUID, update store.CalendarUpdate) (*store.Calendar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cal, ok := f.calendars[id]
	if !ok || cal.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	if update.Title != nil {
		cal.Title = *update.Title
	}
	if update.ThemeID != nil {
		cal.ThemeID = *update.ThemeID
	}
	if update.Privacy != nil {
		cal.Privacy = *update.Privacy
	}
	if update.RemovePassword {
		cal.PasswordHash = nil
	} else if update.PasswordHash != nil {
		cal.PasswordHash = update.PasswordHash
	}
	if update.Status != nil {
		cal.Status = *update.Status
	}
	if update.IsPremium != nil {
		cal.IsPremium = *update.IsPremium
	}
	cp := *cal
	return &cp, nil
}

func (f *fakeRepo) Delete(ctx context.Context, ownerID int64, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cal, ok := f.calendars[id]
	if !ok || cal.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(f.calendars, id)
	delete(f.days, id)
	return nil
}

func (f *fakeRepo) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return f.bump(id, func(cal *store.Calendar) { cal.Views++ })
}

func (f *fakeRepo) IncrementLikes(ctx context.Context, id uuid.UUID) error {
	return f.bump(id, func(cal *store.Calendar) { cal.Likes++ })
}

func (f *fakeRepo) IncrementShares(ctx context.Context, id uuid.UUID) error {
	return f.bump(id, func(cal *store.Calendar) { cal.Shares++ })
}

func (f *fakeRepo) bump(id uuid.UUID, apply func(*store.Calendar)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cal, ok := f.calendars[id]
	if !ok {
		return store.ErrNotFound
	}
	apply(cal)
	return nil
}

func (f *fakeRepo) GetByIndex(ctx context.Context, calendarID uuid.UUID, dayIndex int) (*store.CalendarDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, day := range f.days[calendarID] {
		if day.DayIndex == dayIndex {
			cp := day
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepo) UpdateContentFlags(ctx context.Context, calendarID uuid.UUID, dayIndex int, hasMessage, hasMedia, hasLabel bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	days := f.days[calendarID]
	for i := range days {
		if days[i].DayIndex == dayIndex {
			days[i].HasMessage, days[i].HasMedia, days[i].HasLabel = hasMessage, hasMedia, hasLabel
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeRepo) IncrementOpened(ctx context.Context, dayID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, days := range f.days {
		for i := range days {
			if days[i].ID == dayID {
				days[i].OpenedCount++
				return nil
			}
		}
	}
	return store.ErrNotFound
}

func (f *fakeRepo) openedCount(calendarID uuid.UUID, dayIndex int) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, day := range f.days[calendarID] {
		if day.DayIndex == dayIndex {
			return day.OpenedCount
		}
	}
	return 0
}

func (f *fakeRepo) counters(calendarID uuid.UUID) (views, likes, shares int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cal, ok := f.calendars[calendarID]; ok {
		return cal.Views, cal.Likes, cal.Shares
	}
	return 0, 0, 0
}

type fakeUserRepo struct {
	consent map[int64]bool
}

func (f *fakeUserRepo) UpsertOAuthUser(ctx context.Context, subject, email string) (*store.User, error) {
	return &store.User{ID: 1, OAuthSubject: subject, PrimaryEmail: email}, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*store.User, error) {
	return &store.User{ID: id}, nil
}

func (f *fakeUserRepo) SetMarketingConsent(ctx context.Context, id int64, consent bool) error {
	if f.consent == nil {
		f.consent = make(map[int64]bool)
	}
	f.consent[id] = consent
	return nil
}

type fakeReminderRepo struct {
	byKey map[string]store.Reminder
}

func (f *fakeReminderRepo) Upsert(ctx context.Context, rem store.Reminder) (*store.Reminder, error) {
	if f.byKey == nil {
		f.byKey = make(map[string]store.Reminder)
	}
	key := fmt.Sprintf("%s:%d", rem.CalendarID, rem.DayIndex)
	f.byKey[key] = rem
	return &rem, nil
}

func (f *fakeReminderRepo) GetByKey(ctx context.Context, calendarID uuid.UUID, dayIndex int) (*store.Reminder, error) {
	rem, ok := f.byKey[fmt.Sprintf("%s:%d", calendarID, dayIndex)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := rem
	return &cp, nil
}

func (f *fakeReminderRepo) DeleteByCalendar(ctx context.Context, calendarID uuid.UUID) error {
	for key := range f.byKey {
		if strings.HasPrefix(key, calendarID.String()+":") {
			delete(f.byKey, key)
		}
	}
	return nil
}

type fakeNotifier struct {
	scheduled []string
}

func (f *fakeNotifier) GetOrCreateSubscription(ctx context.Context, handle string) (string, error) {
	return "sub-" + handle, nil
}

func (f *fakeNotifier) ScheduleOneShot(ctx context.Context, key, subscription string, whenUTC time.Time) error {
	f.scheduled = append(f.scheduled, key)
	return nil
}

// testEnv bundles a handler wired against in-memory fakes.
type testEnv struct {
	handler   *Handler
	repo      *fakeRepo
	users     *fakeUserRepo
	reminders *fakeReminderRepo
	client    *clientstore.Store
	notifier  *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	key := []byte("0123456789abcdef0123456789abcdef")
	codec := securecookie.New(key, key)
	codec.SetSerializer(securecookie.JSONEncoder{})
	client := clientstore.New(codec, false)

	repo := newFakeRepo()
	users := &fakeUserRepo{}
	reminders := &fakeReminderRepo{}
	notifier := &fakeNotifier{}
	stor := &store.Store{Calendars: repo, Days: repo, Users: users, Reminders: reminders}

	processor := creation.NewProcessor(client, repo, users)
	tracker := engagement.NewTracker(repo, repo)
	scheduler := reminder.NewScheduler(notifier, reminders)

	return &testEnv{
		handler:   NewHandler(&config.Config{}, stor, nil, client, processor, tracker, scheduler),
		repo:      repo,
		users:     users,
		reminders: reminders,
		client:    client,
		notifier:  notifier,
	}
}

// newRequest builds a request with chi URL params, an optional JSON body,
// and an optional authenticated user.
func newRequest(t *testing.T, method, target string, body any, user *store.User, params map[string]string) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	r := httptest.NewRequest(method, target, reader)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	if user != nil {
		r = r.WithContext(auth.WithUser(r.Context(), user))
	}
	return r
}

// carryCookies copies cookies set on an earlier response onto the request,
// simulating the browser between two calls.
func carryCookies(r *http.Request, from *httptest.ResponseRecorder) *http.Request {
	for _, c := range from.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			r.AddCookie(c)
		}
	}
	return r
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return out
}
