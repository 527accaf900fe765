// Package creation turns a pre-authentication creation intent into a
// persisted calendar exactly once after sign-in completes.
package creation

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/surpresalabs/surpresa/internal/clientstore"
	httperrors "github.com/surpresalabs/surpresa/internal/http/errors"
	"github.com/surpresalabs/surpresa/internal/metrics"
	"github.com/surpresalabs/surpresa/internal/store"
	"github.com/surpresalabs/surpresa/internal/theme"
)

// DeferredDurationDays is the fixed door count for calendars created from a
// drained intent. Deferred creations always land on the free tier.
const DeferredDurationDays = 7

// Outcome classifies one drain attempt.
type Outcome string

const (
	// OutcomeNone means no intent was pending; the drain was a no-op.
	OutcomeNone Outcome = "none"
	// OutcomeBusy means another request from the same user is already
	// draining; this attempt took no action.
	OutcomeBusy Outcome = "busy"
	// OutcomeExpired means the intent was past its window and was discarded
	// silently.
	OutcomeExpired Outcome = "expired"
	// OutcomeCreated means exactly one calendar was created.
	OutcomeCreated Outcome = "created"
	// OutcomeFailed means the creation call failed after the intent was
	// already consumed; the intent is gone and is not retried.
	OutcomeFailed Outcome = "failed"
)

// Result reports what a drain attempt did.
type Result struct {
	Outcome  Outcome
	Calendar *store.Calendar
	Err      error
}

// CalendarCreator is the repository slice the processor needs.
type CalendarCreator interface {
	Create(ctx context.Context, cal store.Calendar) (*store.Calendar, error)
}

// ConsentUpdater applies a deferred marketing-consent choice.
type ConsentUpdater interface {
	SetMarketingConsent(ctx context.Context, id int64, consent bool) error
}

// Processor drains pending creation intents. Per user it is a two-state
// machine, Idle or Locked: a drain that finds the user Locked leaves without
// touching the intent, and the intent cookie is removed synchronously before
// the creation call starts, so duplicate triggers (double-submitted requests,
// retried redirects) can never create a second calendar from one intent.
type Processor struct {
	intents   *clientstore.Store
	calendars CalendarCreator
	users     ConsentUpdater

	mu      sync.Mutex
	locked  map[int64]struct{}
	nowFunc func() time.Time
}

func NewProcessor(intents *clientstore.Store, calendars CalendarCreator, users ConsentUpdater) *Processor {
	return &Processor{
		intents:   intents,
		calendars: calendars,
		users:     users,
		locked:    make(map[int64]struct{}),
		nowFunc:   time.Now,
	}
}

// Drain consumes a pending intent for the authenticated user, if one exists.
// It is safe to call on every authenticated page load: with no intent cookie
// it does nothing.
func (p *Processor) Drain(w http.ResponseWriter, r *http.Request, user *store.User) Result {
	if !p.acquire(user.ID) {
		return Result{Outcome: OutcomeBusy}
	}
	defer p.release(user.ID)

	// Remove-before-process: the cookie is expired on this response before
	// the repository is touched. If the creation below fails, the captured
	// preferences are lost rather than retried.
	intent, ok := p.intents.TakeIntent(w, r)
	if !ok {
		return Result{Outcome: OutcomeNone}
	}

	now := p.nowFunc()
	if intent.Expired(now) {
		metrics.RecordDeferredCreation(string(OutcomeExpired))
		return Result{Outcome: OutcomeExpired}
	}

	p.applyPendingConsent(w, r, user)

	themeID := intent.ThemeHint
	if !theme.IsValid(themeID) {
		themeID = theme.Infer(intent.RecipientHint, intent.OccasionHint)
	}

	cal, err := p.calendars.Create(r.Context(), store.Calendar{
		OwnerID:      user.ID,
		Title:        titleFor(themeID),
		ThemeID:      themeID,
		DurationDays: DeferredDurationDays,
		StartDate:    truncateToDay(now),
		Privacy:      store.PrivacyPrivate,
		Status:       store.StatusAtivo,
		IsPremium:    false,
	})
	if err != nil {
		metrics.RecordDeferredCreation(string(OutcomeFailed))
		httperrors.LogError(r, fmt.Sprintf("deferred calendar creation failed for user %d", user.ID), err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	metrics.RecordDeferredCreation(string(OutcomeCreated))
	return Result{Outcome: OutcomeCreated, Calendar: cal}
}

// applyPendingConsent applies a deferred marketing-consent choice, if one was
// captured. The slot is consumed on the first attempt; failures are logged
// and never block the creation.
func (p *Processor) applyPendingConsent(w http.ResponseWriter, r *http.Request, user *store.User) {
	consent, ok := p.intents.TakeConsent(w, r)
	if !ok {
		return
	}
	if err := p.users.SetMarketingConsent(r.Context(), user.ID, consent); err != nil {
		httperrors.LogError(r, fmt.Sprintf("deferred consent update failed for user %d", user.ID), err)
	}
}

func (p *Processor) acquire(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.locked[userID]; busy {
		return false
	}
	p.locked[userID] = struct{}{}
	return true
}

func (p *Processor) release(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.locked, userID)
}

func titleFor(themeID string) string {
	switch themeID {
	case theme.Namoro:
		return "Uma surpresa para você"
	case theme.Natal:
		return "Contagem regressiva para o Natal"
	case theme.Aniversario:
		return "Feliz aniversário!"
	default:
		return "Calendário surpresa"
	}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
