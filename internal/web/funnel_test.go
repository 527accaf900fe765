package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCaptureIntent(t *testing.T) {
	env := newTestEnv(t)

	req := map[string]any{
		"recipient_hint":    "minha mãe",
		"occasion_hint":     "dia das mães",
		"marketing_consent": true,
	}
	w := httptest.NewRecorder()
	env.handler.CaptureIntent(w, newRequest(t, http.MethodPost, "/funnel/intent", req, nil, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("CaptureIntent() status = %d, want 200", w.Code)
	}
	body := decodeBody[map[string]string](t, w)
	if !strings.HasPrefix(body["sign_in_url"], "/auth/login?") {
		t.Errorf("sign_in_url = %q, want a login redirect", body["sign_in_url"])
	}

	// Both the intent and the consent cookies survive to the next request.
	r := carryCookies(newRequest(t, http.MethodGet, "/calendars", nil, nil, nil), w)
	intent, ok := env.client.PeekIntent(r)
	if !ok {
		t.Fatal("intent cookie missing after capture")
	}
	if intent.RecipientHint != "minha mãe" {
		t.Errorf("recipient hint = %q, want preserved", intent.RecipientHint)
	}

	consentW := httptest.NewRecorder()
	consent, ok := env.client.TakeConsent(consentW, r)
	if !ok || !consent {
		t.Errorf("consent = %v/%v, want true/true", consent, ok)
	}
}

func TestCaptureIntentRejectsBadBody(t *testing.T) {
	env := newTestEnv(t)

	r := httptest.NewRequest(http.MethodPost, "/funnel/intent", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	env.handler.CaptureIntent(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("CaptureIntent() status = %d, want 400", w.Code)
	}
}
