package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/surpresalabs/surpresa/internal/config"
)

func testHandler() http.Handler {
	mw := Middleware(&config.Config{BaseURL: "http://localhost:8080"})
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestMiddlewareIssuesToken(t *testing.T) {
	w := httptest.NewRecorder()
	testHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", w.Code)
	}
	token := w.Header().Get("X-CSRF-Token")
	if token == "" {
		t.Fatal("expected token in response header")
	}
	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName && c.Value == token {
			found = true
		}
	}
	if !found {
		t.Error("cookie does not carry the issued token")
	}
}

func TestMiddlewareValidatesMutations(t *testing.T) {
	h := testHandler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	token := w.Header().Get("X-CSRF-Token")
	cookie := w.Result().Cookies()[0]

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Errorf("POST without header = %d, want 403", w.Code)
	}

	r = httptest.NewRequest(http.MethodPost, "/", nil)
	r.AddCookie(cookie)
	r.Header.Set("X-CSRF-Token", token)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("POST with mirrored token = %d, want 200", w.Code)
	}
}
