package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/helix/phr/internal/domain/profile"
	"github.com/helix/phr/internal/domain/provider"
	"github.com/helix/phr/internal/domain/record"
	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/viewcache"
)

type stubRecords struct {
	record.Repository
	calls int
	data  []*record.HealthRecord
}

func (s *stubRecords) ListByUser(context.Context, uuid.UUID) ([]*record.HealthRecord, error) {
	s.calls++
	return s.data, nil
}

type stubProviders struct {
	provider.Repository
	count int
	err   error
}

func (s *stubProviders) CountByUser(context.Context, uuid.UUID) (int, error) {
	return s.count, s.err
}

type stubProfiles struct {
	profile.Repository
	p *profile.Profile
}

func (s *stubProfiles) GetByID(context.Context, uuid.UUID) (*profile.Profile, error) {
	if s.p == nil {
		return nil, profile.ErrNotFound
	}
	return s.p, nil
}

func newIdentity() auth.Identity {
	return auth.Identity{UserID: uuid.New(), Email: "ana@example.com"}
}

func history() []*record.HealthRecord {
	mk := func(typ, status, title string) *record.HealthRecord {
		return &record.HealthRecord{ID: uuid.New(), Type: typ, Status: status, Title: title}
	}
	return []*record.HealthRecord{
		mk(record.TypeVisit, record.StatusActive, "Checkup"),
		mk(record.TypeCondition, record.StatusActive, "Asthma"),
		mk(record.TypeMedication, record.StatusActive, "Albuterol"),
		mk(record.TypeMedication, record.StatusDiscontinued, "Prednisone"),
		mk(record.TypeCondition, record.StatusResolved, "Flu"),
		mk(record.TypeLab, record.StatusActive, "CBC"),
		mk(record.TypeCondition, record.StatusActive, "Eczema"),
	}
}

func TestService_Page(t *testing.T) {
	name := "Ana Silva"
	svc := NewService(&stubRecords{data: history()}, &stubProviders{count: 3}, &stubProfiles{p: &profile.Profile{FullName: &name}})

	page, err := svc.Page(context.Background(), newIdentity())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Stats{ActiveConditions: 2, ActiveMedications: 1, Providers: 3, Records: 7}
	if page.Stats != want {
		t.Errorf("expected stats %+v, got %+v", want, page.Stats)
	}
	if len(page.RecentRecords) != RecentLimit || page.RecentRecords[0].Title != "Checkup" {
		t.Errorf("unexpected recent records %d", len(page.RecentRecords))
	}
	if page.Name != "Ana Silva" {
		t.Errorf("expected profile name, got %q", page.Name)
	}
	if page.CurrentMedications[0].Title != "Albuterol" {
		t.Errorf("unexpected medications %+v", page.CurrentMedications)
	}
}

func TestService_Page_EmptyAccount(t *testing.T) {
	svc := NewService(&stubRecords{}, &stubProviders{}, &stubProfiles{})
	who := newIdentity()

	page, err := svc.Page(context.Background(), who)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Stats != (Stats{}) {
		t.Errorf("expected zero stats, got %+v", page.Stats)
	}
	if page.RecentRecords == nil || page.ActiveConditions == nil {
		t.Error("expected empty, non-nil lists")
	}
	if page.Name != who.Email {
		t.Errorf("expected email fallback, got %q", page.Name)
	}
}

func TestService_Page_StorageError(t *testing.T) {
	svc := NewService(&stubRecords{}, &stubProviders{err: errors.New("timeout")}, &stubProfiles{})
	if _, err := svc.Page(context.Background(), newIdentity()); err == nil {
		t.Fatal("expected error")
	}
}

func TestService_Page_Unauthenticated(t *testing.T) {
	svc := NewService(&stubRecords{}, &stubProviders{}, &stubProfiles{})
	if _, err := svc.Page(context.Background(), auth.Identity{}); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestService_Page_Cached(t *testing.T) {
	records := &stubRecords{data: history()}
	svc := NewService(records, &stubProviders{}, &stubProfiles{})
	cache := viewcache.New(viewcache.NewMemoryStore(), time.Minute, zerolog.Nop())
	svc.SetViewCache(cache)
	who := newIdentity()
	ctx := context.Background()

	svc.Page(ctx, who)
	svc.Page(ctx, who)
	if records.calls != 1 {
		t.Fatalf("expected one load, got %d", records.calls)
	}

	cache.Invalidate(ctx, who.UserID, viewcache.PageDashboard)
	page, err := svc.Page(ctx, who)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records.calls != 2 {
		t.Errorf("expected reload after invalidation, got %d loads", records.calls)
	}
	if page.Stats.Records != 7 {
		t.Errorf("unexpected cached stats %+v", page.Stats)
	}
}

func TestHandler_Overview_JSON(t *testing.T) {
	h := NewHandler(NewService(&stubRecords{data: history()}, &stubProviders{}, &stubProfiles{}))
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(req.Context(), newIdentity()))
	rec := httptest.NewRecorder()

	if err := h.Overview(echo.New().NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_Overview_Unauthenticated(t *testing.T) {
	h := NewHandler(NewService(&stubRecords{}, &stubProviders{}, &stubProfiles{}))
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	err := h.Overview(echo.New().NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}
