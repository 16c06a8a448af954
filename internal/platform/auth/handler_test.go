package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type fakeProfiles struct {
	ensured []Identity
	err     error
}

func (f *fakeProfiles) EnsureProfile(_ context.Context, who Identity) error {
	if f.err != nil {
		return f.err
	}
	f.ensured = append(f.ensured, who)
	return nil
}

func newTestHandler() (*Handler, *fakeClient, *fakeProfiles, *echo.Echo) {
	fc := newFakeClient()
	fp := &fakeProfiles{}
	h := NewHandler(fc, testStore(), NewResolver(nil, fc), fp, zerolog.Nop())
	return h, fc, fp, echo.New()
}

func formRequest(path string, vals url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(vals.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return req
}

func TestHandler_Login(t *testing.T) {
	h, fc, _, e := newTestHandler()
	fc.accounts["ana@example.com"] = Identity{UserID: uuid.New(), Email: "ana@example.com"}
	fc.passwords["ana@example.com"] = "secret1"

	rec := httptest.NewRecorder()
	c := e.NewContext(formRequest("/login", url.Values{"email": {"ana@example.com"}, "password": {"secret1"}}), rec)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("expected redirect to /dashboard, got %s", loc)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected session cookie")
	}
}

func TestHandler_Login_BadCredentials(t *testing.T) {
	h, _, _, e := newTestHandler()
	req := formRequest("/login", url.Values{"email": {"ana@example.com"}, "password": {"wrong"}})
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Login(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var page FormPage
	json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Error != "Invalid login credentials" {
		t.Errorf("expected collaborator message, got %q", page.Error)
	}
}

func TestHandler_Login_Validation(t *testing.T) {
	h, _, _, e := newTestHandler()
	req := formRequest("/login", url.Values{"email": {"not-an-email"}, "password": {"x"}})
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	h.Login(e.NewContext(req, rec))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "email must be a valid email address") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Signup(t *testing.T) {
	h, _, fp, e := newTestHandler()
	vals := url.Values{"email": {"new@example.com"}, "password": {"secret1"}, "full_name": {"New User"}}
	rec := httptest.NewRecorder()
	if err := h.Signup(e.NewContext(formRequest("/signup", vals), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/onboarding" {
		t.Fatalf("expected redirect to /onboarding, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
	if len(fp.ensured) != 1 || fp.ensured[0].FullName != "New User" {
		t.Errorf("expected profile to be ensured with full name, got %+v", fp.ensured)
	}
}

func TestHandler_Signup_ProfileFailure(t *testing.T) {
	h, _, fp, e := newTestHandler()
	fp.err = errors.New("db down")
	vals := url.Values{"email": {"new@example.com"}, "password": {"secret1"}, "full_name": {"New User"}}
	err := h.Signup(e.NewContext(formRequest("/signup", vals), httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError || he.Message != "Failed to sign up" {
		t.Fatalf("expected 500 Failed to sign up, got %v", err)
	}
}

func TestHandler_Signup_Rejected(t *testing.T) {
	h, fc, _, e := newTestHandler()
	fc.signUpErr = &APIError{Status: http.StatusUnprocessableEntity, Message: "User already registered"}
	vals := url.Values{"email": {"dup@example.com"}, "password": {"secret1"}, "full_name": {"Dup"}}
	req := formRequest("/signup", vals)
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	h.Signup(e.NewContext(req, rec))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "User already registered") {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Logout(t *testing.T) {
	h, fc, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	for _, ck := range sessionCookies(t, h.store, Tokens{AccessToken: "at", RefreshToken: "rt"}) {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	if err := h.Logout(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("expected redirect to /, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
	if len(fc.signedOut) != 1 || fc.signedOut[0] != "at" {
		t.Errorf("expected sign out of access token, got %v", fc.signedOut)
	}
}

func TestHandler_Landing_RedirectsSignedIn(t *testing.T) {
	h, _, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: uuid.New()}))
	rec := httptest.NewRecorder()
	if err := h.Landing(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Errorf("expected redirect to /dashboard, got %d", rec.Code)
	}
}
