// Package clientstore keeps per-client durable state in signed cookies: the
// pending creation intent captured before sign-in, the deferred marketing
// consent choice, and the per-calendar ledger of locally opened doors.
//
// Each value lives under a singular key, a slot of depth one. Take operations
// clear the cookie in the same response that reads it, which is what makes
// intent consumption at-most-once across duplicate requests.
package clientstore

import (
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

const (
	intentCookie  = "surpresa_intent"
	consentCookie = "surpresa_consent"
	ledgerPrefix  = "surpresa_opened_"
	previewPrefix = "surpresa_preview_"
	accessPrefix  = "surpresa_access_"

	// IntentTTL is how long a captured intent stays consumable.
	IntentTTL = time.Hour

	ledgerMaxAge = 86400 * 30
)

// Intent is the quiz outcome captured before the identity hand-off.
type Intent struct {
	ThemeHint     string `json:"theme_hint"`
	RecipientHint string `json:"recipient_hint"`
	OccasionHint  string `json:"occasion_hint"`
	CapturedAt    int64  `json:"captured_at_ms"`
}

// Expired reports whether the intent is past its consumption window.
func (i Intent) Expired(now time.Time) bool {
	captured := time.UnixMilli(i.CapturedAt)
	return now.Sub(captured) > IntentTTL
}

// Store reads and writes the client-local cookies. It shares the session
// codec so every client-side value is signed with the same secret.
type Store struct {
	codec  *securecookie.SecureCookie
	secure bool
}

func New(codec *securecookie.SecureCookie, secure bool) *Store {
	return &Store{codec: codec, secure: secure}
}

// PutIntent stores the pending creation intent, replacing any previous one.
func (s *Store) PutIntent(w http.ResponseWriter, intent Intent) error {
	encoded, err := s.codec.Encode(intentCookie, intent)
	if err != nil {
		return err
	}
	s.set(w, intentCookie, encoded, int(IntentTTL.Seconds()))
	return nil
}

// PeekIntent returns the pending intent without consuming it.
func (s *Store) PeekIntent(r *http.Request) (Intent, bool) {
	c, err := r.Cookie(intentCookie)
	if err != nil {
		return Intent{}, false
	}
	var intent Intent
	if err := s.codec.Decode(intentCookie, c.Value, &intent); err != nil {
		return Intent{}, false
	}
	return intent, true
}

// TakeIntent removes the intent and returns the previous value. The removal
// is written to the response before the caller does anything else with the
// intent, so a duplicate request sees an empty slot.
func (s *Store) TakeIntent(w http.ResponseWriter, r *http.Request) (Intent, bool) {
	intent, ok := s.PeekIntent(r)
	if !ok {
		return Intent{}, false
	}
	s.clear(w, intentCookie)
	return intent, true
}

// PutConsent stores a deferred marketing-consent choice.
func (s *Store) PutConsent(w http.ResponseWriter, consent bool) error {
	encoded, err := s.codec.Encode(consentCookie, consent)
	if err != nil {
		return err
	}
	s.set(w, consentCookie, encoded, int(IntentTTL.Seconds()))
	return nil
}

// TakeConsent removes and returns the pending consent choice. Like the
// intent slot, it is consumed on the first attempt regardless of whether the
// attempt later succeeds.
func (s *Store) TakeConsent(w http.ResponseWriter, r *http.Request) (bool, bool) {
	c, err := r.Cookie(consentCookie)
	if err != nil {
		return false, false
	}
	var consent bool
	if err := s.codec.Decode(consentCookie, c.Value, &consent); err != nil {
		s.clear(w, consentCookie)
		return false, false
	}
	s.clear(w, consentCookie)
	return consent, true
}

// OpenLedger is the set of day indices this client has opened for one
// calendar.
type OpenLedger struct {
	days map[int]struct{}
}

// Contains reports whether the day was already opened by this client.
func (l *OpenLedger) Contains(dayIndex int) bool {
	_, ok := l.days[dayIndex]
	return ok
}

// Add records a day as opened. It returns true if the day was new.
func (l *OpenLedger) Add(dayIndex int) bool {
	if l.days == nil {
		l.days = make(map[int]struct{})
	}
	if _, ok := l.days[dayIndex]; ok {
		return false
	}
	l.days[dayIndex] = struct{}{}
	return true
}

// Days returns the opened indices in ascending order.
func (l *OpenLedger) Days() []int {
	out := make([]int, 0, len(l.days))
	for d := range l.days {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// Ledger loads the visitor open ledger for a calendar. A missing or
// unreadable cookie yields an empty ledger.
func (s *Store) Ledger(r *http.Request, calendarID uuid.UUID) *OpenLedger {
	return s.loadLedger(r, ledgerPrefix+calendarID.String())
}

// SaveLedger persists the visitor open ledger for a calendar.
func (s *Store) SaveLedger(w http.ResponseWriter, calendarID uuid.UUID, ledger *OpenLedger) error {
	return s.saveLedger(w, ledgerPrefix+calendarID.String(), ledger)
}

// PreviewLedger loads the owner-preview ledger, kept apart from the visitor
// ledger so preview opens never leak into visitor state.
func (s *Store) PreviewLedger(r *http.Request, calendarID uuid.UUID) *OpenLedger {
	return s.loadLedger(r, previewPrefix+calendarID.String())
}

// SavePreviewLedger persists the owner-preview ledger.
func (s *Store) SavePreviewLedger(w http.ResponseWriter, calendarID uuid.UUID, ledger *OpenLedger) error {
	return s.saveLedger(w, previewPrefix+calendarID.String(), ledger)
}

// GrantAccess marks a private calendar's password as verified for this
// client.
func (s *Store) GrantAccess(w http.ResponseWriter, calendarID uuid.UUID) error {
	name := accessPrefix + calendarID.String()
	encoded, err := s.codec.Encode(name, true)
	if err != nil {
		return err
	}
	s.set(w, name, encoded, ledgerMaxAge)
	return nil
}

// HasAccess reports whether this client already passed the calendar's
// password check.
func (s *Store) HasAccess(r *http.Request, calendarID uuid.UUID) bool {
	name := accessPrefix + calendarID.String()
	c, err := r.Cookie(name)
	if err != nil {
		return false
	}
	var granted bool
	if err := s.codec.Decode(name, c.Value, &granted); err != nil {
		return false
	}
	return granted
}

func (s *Store) loadLedger(r *http.Request, name string) *OpenLedger {
	ledger := &OpenLedger{}
	c, err := r.Cookie(name)
	if err != nil {
		return ledger
	}
	var days []int
	if err := s.codec.Decode(name, c.Value, &days); err != nil {
		return ledger
	}
	for _, d := range days {
		ledger.Add(d)
	}
	return ledger
}

func (s *Store) saveLedger(w http.ResponseWriter, name string, ledger *OpenLedger) error {
	encoded, err := s.codec.Encode(name, ledger.Days())
	if err != nil {
		return err
	}
	s.set(w, name, encoded, ledgerMaxAge)
	return nil
}

func (s *Store) set(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Store) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
