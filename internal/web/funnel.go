package web

import (
	"net/http"
	"net/url"
	"time"

	"github.com/surpresalabs/surpresa/internal/clientstore"
	httperrors "github.com/surpresalabs/surpresa/internal/http/errors"
)

// CaptureIntent persists the quiz answers before the sign-in hand-off. The
// response tells the client where to send the user; the intent survives the
// redirect in its cookie and is drained on the first authenticated page.
func (h *Handler) CaptureIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ThemeHint        string `json:"theme_hint"`
		RecipientHint    string `json:"recipient_hint"`
		OccasionHint     string `json:"occasion_hint"`
		MarketingConsent *bool  `json:"marketing_consent"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	intent := clientstore.Intent{
		ThemeHint:     req.ThemeHint,
		RecipientHint: req.RecipientHint,
		OccasionHint:  req.OccasionHint,
		CapturedAt:    time.Now().UnixMilli(),
	}
	if err := h.client.PutIntent(w, intent); err != nil {
		httperrors.InternalError(w, r, err, "failed to store creation intent")
		return
	}
	if req.MarketingConsent != nil {
		if err := h.client.PutConsent(w, *req.MarketingConsent); err != nil {
			httperrors.LogError(r, "failed to store consent choice", err)
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"sign_in_url": "/auth/login?" + url.Values{"next": {"/calendars"}}.Encode(),
	})
}
