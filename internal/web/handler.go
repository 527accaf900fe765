// Package web serves the product's JSON endpoints: the public visitor
// surface under /c/{id}, the funnel intent capture, and the authenticated
// owner surface under /calendars.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/surpresalabs/surpresa/internal/auth"
	"github.com/surpresalabs/surpresa/internal/clientstore"
	"github.com/surpresalabs/surpresa/internal/config"
	"github.com/surpresalabs/surpresa/internal/creation"
	"github.com/surpresalabs/surpresa/internal/engagement"
	httperrors "github.com/surpresalabs/surpresa/internal/http/errors"
	"github.com/surpresalabs/surpresa/internal/reminder"
	"github.com/surpresalabs/surpresa/internal/store"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 * 1024

// Handler carries the wired components behind the HTTP surface.
type Handler struct {
	cfg         *config.Config
	store       *store.Store
	authService *auth.Service
	client      *clientstore.Store
	processor   *creation.Processor
	tracker     *engagement.Tracker
	scheduler   *reminder.Scheduler
}

func NewHandler(cfg *config.Config, stor *store.Store, authService *auth.Service, client *clientstore.Store, processor *creation.Processor, tracker *engagement.Tracker, scheduler *reminder.Scheduler) *Handler {
	return &Handler{
		cfg:         cfg,
		store:       stor,
		authService: authService,
		client:      client,
		processor:   processor,
		tracker:     tracker,
		scheduler:   scheduler,
	}
}

// Logout terminates the session and sends the user back to the login page.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearSession(w)
	http.Redirect(w, r, "/auth/login", http.StatusFound)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		httperrors.BadRequestError(w, r, err, "invalid request body")
		return false
	}
	return true
}

// calendarID parses the {id} route parameter.
func (h *Handler) calendarID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.BadRequestError(w, r, err, "invalid calendar id")
		return uuid.Nil, false
	}
	return id, true
}
