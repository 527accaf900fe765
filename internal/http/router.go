package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/surpresalabs/surpresa/internal/auth"
	"github.com/surpresalabs/surpresa/internal/config"
	"github.com/surpresalabs/surpresa/internal/http/csrf"
	"github.com/surpresalabs/surpresa/internal/http/ratelimit"
	"github.com/surpresalabs/surpresa/internal/metrics"
	"github.com/surpresalabs/surpresa/internal/store"
	"github.com/surpresalabs/surpresa/internal/web"
)

// NewRouter wires the public visitor surface, the funnel, and the
// authenticated owner surface.
func NewRouter(cfg *config.Config, stor *store.Store, authService *auth.Service, handler *web.Handler) http.Handler {
	r := chi.NewRouter()

	// Auth endpoints: 5 requests per second, burst of 10
	authRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(5), 10, 5*time.Minute, cfg.TrustedProxies)
	// Visitor endpoints: 20 requests per second, burst of 50 (shared links
	// get bursts of opens around midnight)
	visitorRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(overrideMethod)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := stor.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	// Public visitor surface. The session is optional: an owner following
	// their own share link is recognized and kept out of the counters.
	r.Route("/c/{id}", func(r chi.Router) {
		r.Use(visitorRateLimiter.Middleware())
		r.Use(authService.OptionalSession)
		r.Get("/", handler.ViewCalendar)
		r.Post("/unlock", handler.UnlockPrivate)
		r.Post("/like", handler.Like)
		r.Post("/share", handler.Share)
		r.Post("/days/{index}/open", handler.OpenDay)
		r.Post("/days/{index}/remind", handler.Remind)
		r.Get("/days/{index}/countdown", handler.Countdown)
	})

	r.With(visitorRateLimiter.Middleware()).Post("/funnel/intent", handler.CaptureIntent)

	r.Route("/auth", func(r chi.Router) {
		r.Use(authRateLimiter.Middleware())
		r.Get("/login", authService.BeginOAuth)
		r.Get("/callback", authService.HandleOAuthCallback)
	})

	r.With(authService.RequireSession, csrf.Middleware(cfg)).Post("/auth/logout", handler.Logout)

	r.Group(func(r chi.Router) {
		r.Use(authService.RequireSession)
		r.Use(csrf.Middleware(cfg))
		r.Get("/calendars", handler.ListCalendars)
		r.Post("/calendars", handler.CreateCalendar)
		r.Get("/calendars/{id}", handler.GetCalendar)
		r.Put("/calendars/{id}", handler.UpdateCalendar)
		r.Delete("/calendars/{id}", handler.DeleteCalendar)
		r.Put("/calendars/{id}/days/{index}", handler.UpdateDayContent)
		r.Post("/calendars/{id}/days/{index}/preview-open", handler.PreviewOpen)
		r.Post("/calendars/{id}/confirm-payment", handler.ConfirmPayment)
	})

	return r
}

func overrideMethod(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method
		if r.Method == http.MethodPost {
			if m := strings.TrimSpace(r.PostFormValue("_method")); m != "" {
				method = m
			} else if m := strings.TrimSpace(r.URL.Query().Get("_method")); m != "" {
				method = m
			}
		}
		switch strings.ToUpper(method) {
		case http.MethodPut, http.MethodDelete:
			r.Method = strings.ToUpper(method)
		}
		next.ServeHTTP(w, r)
	})
}
