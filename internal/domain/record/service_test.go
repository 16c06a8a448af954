package record

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/viewcache"
	"github.com/helix/phr/pkg/pagination"
)

// ── Mock Repository ──

type mockRecordRepo struct {
	data    map[uuid.UUID]*HealthRecord
	failAll error
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{data: make(map[uuid.UUID]*HealthRecord)}
}

func (m *mockRecordRepo) Create(_ context.Context, r *HealthRecord) error {
	if m.failAll != nil {
		return m.failAll
	}
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	m.data[r.ID] = r
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, userID, id uuid.UUID) (*HealthRecord, error) {
	if r, ok := m.data[id]; ok && r.UserID == userID {
		return r, nil
	}
	return nil, ErrNotFound
}

func (m *mockRecordRepo) Update(_ context.Context, userID, id uuid.UUID, p Patch) (*HealthRecord, error) {
	r, ok := m.data[id]
	if !ok || r.UserID != userID {
		return nil, ErrNotFound
	}
	for col, v := range p.Set {
		switch col {
		case "type":
			r.Type = v.(string)
		case "title":
			r.Title = v.(string)
		case "status":
			r.Status = v.(string)
		case "date":
			r.Date = v.(time.Time)
		case "end_date":
			r.EndDate = v.(*time.Time)
		case "description":
			r.Description = v.(*string)
		case "provider_name":
			r.ProviderName = v.(*string)
		case "specialty":
			r.Specialty = v.(*string)
		case "notes":
			r.Notes = v.(*string)
		}
	}
	if p.Metadata != nil {
		r.Metadata = p.Metadata
	}
	return r, nil
}

func (m *mockRecordRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	if m.failAll != nil {
		return m.failAll
	}
	if r, ok := m.data[id]; ok && r.UserID == userID {
		delete(m.data, id)
	}
	return nil
}

func (m *mockRecordRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*HealthRecord, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	out := []*HealthRecord{}
	for _, r := range m.data {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *mockRecordRepo) ListByType(ctx context.Context, userID uuid.UUID, recordType, status string) ([]*HealthRecord, error) {
	all, _ := m.ListByUser(ctx, userID)
	out := []*HealthRecord{}
	for _, r := range all {
		if r.Type == recordType && (status == "" || r.Status == status) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRecordRepo) ListBySpecialties(ctx context.Context, userID uuid.UUID, specialties []string) ([]*HealthRecord, error) {
	all, _ := m.ListByUser(ctx, userID)
	out := []*HealthRecord{}
	for _, r := range all {
		for _, sp := range specialties {
			if r.Specialty != nil && *r.Specialty == sp {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (m *mockRecordRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	all, _ := m.ListByUser(ctx, userID)
	return len(all), nil
}

type recordingInvalidator struct {
	pages []viewcache.Page
}

func (r *recordingInvalidator) Invalidate(_ context.Context, _ uuid.UUID, pages ...viewcache.Page) {
	r.pages = append(r.pages, pages...)
}

func newTestService() (*Service, *mockRecordRepo) {
	repo := newMockRecordRepo()
	return NewService(repo), repo
}

func newIdentity() auth.Identity {
	return auth.Identity{UserID: uuid.New(), Email: "ana@example.com"}
}

func medicationForm() url.Values {
	return url.Values{
		"type":      {"medication"},
		"title":     {"Metformin"},
		"date":      {"2024-02-10"},
		"dosage":    {"500mg"},
		"frequency": {"twice daily"},
		"specialty": {"Endocrinology"},
	}
}

// ── Create ──

func TestService_Create(t *testing.T) {
	svc, repo := newTestService()
	who := newIdentity()

	r, err := svc.Create(context.Background(), who, medicationForm())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.UserID != who.UserID {
		t.Error("expected record owned by caller")
	}
	if r.Status != StatusActive {
		t.Errorf("expected default status active, got %s", r.Status)
	}
	if r.Description != nil {
		t.Error("expected absent description to be nil")
	}
	med, ok := r.Medication()
	if !ok || *med.Dosage != "500mg" {
		t.Errorf("unexpected metadata %+v", r.Metadata)
	}
	if len(repo.data) != 1 {
		t.Errorf("expected 1 stored record, got %d", len(repo.data))
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, _ := newTestService()
	who := newIdentity()

	tests := []struct {
		name   string
		mutate func(url.Values)
	}{
		{"missing type", func(f url.Values) { f.Del("type") }},
		{"bad type", func(f url.Values) { f.Set("type", "surgery") }},
		{"missing title", func(f url.Values) { f.Set("title", "  ") }},
		{"missing date", func(f url.Values) { f.Del("date") }},
		{"bad date", func(f url.Values) { f.Set("date", "02/10/2024") }},
		{"bad end date", func(f url.Values) { f.Set("end_date", "soon") }},
		{"bad status", func(f url.Values) { f.Set("status", "paused") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := medicationForm()
			tt.mutate(f)
			_, err := svc.Create(context.Background(), who, f)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestService_Create_NotAuthenticated(t *testing.T) {
	svc, repo := newTestService()
	_, err := svc.Create(context.Background(), auth.Identity{}, medicationForm())
	if !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if len(repo.data) != 0 {
		t.Error("expected nothing stored")
	}
}

func TestService_Create_StorageError(t *testing.T) {
	svc, repo := newTestService()
	repo.failAll = errors.New("connection refused")
	_, err := svc.Create(context.Background(), newIdentity(), medicationForm())
	if err == nil || errors.Is(err, ErrValidation) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestService_Create_Invalidates(t *testing.T) {
	svc, _ := newTestService()
	inv := &recordingInvalidator{}
	svc.inv = inv

	if _, err := svc.Create(context.Background(), newIdentity(), medicationForm()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[viewcache.Page]bool{
		viewcache.PageDashboard: true, viewcache.PageRecords: true,
		viewcache.PageTimeline: true, viewcache.PageShare: true,
	}
	if len(inv.pages) != len(want) {
		t.Fatalf("expected %d pages invalidated, got %v", len(want), inv.pages)
	}
	for _, p := range inv.pages {
		if !want[p] {
			t.Errorf("unexpected page invalidated: %s", p)
		}
	}
}

// ── Update ──

func TestService_Update_TypeSwitchReplacesMetadata(t *testing.T) {
	svc, _ := newTestService()
	who := newIdentity()
	ctx := context.Background()

	r, err := svc.Create(ctx, who, medicationForm())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(ctx, who, r.ID, url.Values{
		"type":      {"lab"},
		"lab_name":  {"HbA1c"},
		"dosage":    {"500mg"},
		"frequency": {"twice daily"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Type != TypeLab {
		t.Errorf("expected type lab, got %s", updated.Type)
	}
	lab, ok := updated.Metadata.(LabMetadata)
	if !ok {
		t.Fatalf("expected LabMetadata, got %T", updated.Metadata)
	}
	if lab.LabName == nil || *lab.LabName != "HbA1c" {
		t.Errorf("unexpected lab metadata %+v", lab)
	}
	if _, ok := updated.Medication(); ok {
		t.Error("medication metadata must not survive a type switch")
	}
}

func TestService_Update_AllowListAndNulls(t *testing.T) {
	svc, _ := newTestService()
	who := newIdentity()
	ctx := context.Background()

	f := medicationForm()
	f.Set("notes", "take with food")
	r, _ := svc.Create(ctx, who, f)

	updated, err := svc.Update(ctx, who, r.ID, url.Values{
		"notes":   {""},
		"title":   {"Metformin XR"},
		"user_id": {uuid.New().String()},
		"dosage":  {"750mg"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Notes != nil {
		t.Errorf("expected submitted empty notes to be cleared, got %q", *updated.Notes)
	}
	if updated.Title != "Metformin XR" {
		t.Errorf("expected title updated, got %s", updated.Title)
	}
	if updated.UserID != who.UserID {
		t.Error("user_id must not be updatable")
	}
	if updated.Specialty == nil || *updated.Specialty != "Endocrinology" {
		t.Error("expected unsubmitted specialty to be kept")
	}
	med, ok := updated.Medication()
	if !ok || *med.Dosage != "750mg" || med.Frequency != nil {
		t.Errorf("expected metadata rebuilt for medication type, got %+v", updated.Metadata)
	}
}

func TestService_Update_RequiredFieldsCannotBeCleared(t *testing.T) {
	svc, _ := newTestService()
	who := newIdentity()
	r, _ := svc.Create(context.Background(), who, medicationForm())

	for _, field := range []string{"title", "date", "type", "status"} {
		_, err := svc.Update(context.Background(), who, r.ID, url.Values{field: {""}})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", field, err)
		}
	}
}

func TestService_Update_ForeignRecord(t *testing.T) {
	svc, _ := newTestService()
	owner := newIdentity()
	r, _ := svc.Create(context.Background(), owner, medicationForm())

	_, err := svc.Update(context.Background(), newIdentity(), r.ID, url.Values{"title": {"stolen"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if r.Title != "Metformin" {
		t.Error("foreign update must not change the record")
	}
}

// ── Delete ──

func TestService_Delete_ForeignIsNoop(t *testing.T) {
	svc, repo := newTestService()
	owner := newIdentity()
	r, _ := svc.Create(context.Background(), owner, medicationForm())

	if err := svc.Delete(context.Background(), newIdentity(), r.ID); err != nil {
		t.Fatalf("expected success for foreign id, got %v", err)
	}
	if _, ok := repo.data[r.ID]; !ok {
		t.Error("foreign delete must leave the record in place")
	}
	if err := svc.Delete(context.Background(), owner, uuid.New()); err != nil {
		t.Fatalf("expected success for missing id, got %v", err)
	}
	if err := svc.Delete(context.Background(), owner, r.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.data) != 0 {
		t.Error("expected record deleted by owner")
	}
}

func TestService_Delete_NotAuthenticated(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.Delete(context.Background(), auth.Identity{}, uuid.New()); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}

// ── Reads ──

func TestService_List_ScopedToUser(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	a, b := newIdentity(), newIdentity()
	svc.Create(ctx, a, medicationForm())
	svc.Create(ctx, a, medicationForm())
	svc.Create(ctx, b, medicationForm())

	records, err := svc.List(ctx, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, r := range records {
		if r.UserID != a.UserID {
			t.Error("list returned another user's record")
		}
	}
}

func TestService_RecordsPage_FilterAndPaginate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	who := newIdentity()
	for _, d := range []string{"2024-01-01", "2024-02-01", "2024-03-01"} {
		f := medicationForm()
		f.Set("date", d)
		svc.Create(ctx, who, f)
	}
	svc.Create(ctx, who, url.Values{"type": {"visit"}, "title": {"Checkup"}, "date": {"2024-04-01"}})

	base, _ := url.Parse("/dashboard/records?type=medication")
	page, err := svc.RecordsPage(ctx, who, Filter{Type: TypeMedication}, pagination.Params{Limit: 2}, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Records.Total != 3 {
		t.Errorf("expected 3 matching records, got %d", page.Records.Total)
	}
	if len(page.Records.Data) != 2 || !page.Records.HasMore {
		t.Errorf("expected first page of 2 with more, got %+v", page.Records)
	}
	if page.Records.Data[0].Date.Month() != time.March {
		t.Error("expected newest record first")
	}
}

func TestService_Timeline(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	who := newIdentity()
	for _, d := range []string{"2022-06-01", "2024-01-15", "2023-03-03"} {
		f := medicationForm()
		f.Set("date", d)
		svc.Create(ctx, who, f)
	}

	page, err := svc.Timeline(ctx, who, TimelineFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 3 || len(page.Years) != 3 || page.Years[0].Year != 2024 {
		t.Errorf("unexpected timeline %+v", page)
	}

	if _, err := svc.Timeline(ctx, auth.Identity{}, TimelineFilter{}); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestService_ViewCacheInvalidatedOnWrite(t *testing.T) {
	svc, _ := newTestService()
	svc.SetViewCache(viewcache.New(viewcache.NewMemoryStore(), time.Minute, zerolog.Nop()))
	ctx := context.Background()
	who := newIdentity()

	if records, _ := svc.List(ctx, who); len(records) != 0 {
		t.Fatalf("expected empty list, got %d", len(records))
	}
	r, err := svc.Create(ctx, who, medicationForm())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	records, err := svc.List(ctx, who)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected cached list to be refreshed after create, got %d", len(records))
	}
	if _, ok := records[0].Medication(); !ok {
		t.Errorf("expected metadata variant to survive the cache, got %T", records[0].Metadata)
	}

	svc.Delete(ctx, who, r.ID)
	if records, _ := svc.List(ctx, who); len(records) != 0 {
		t.Errorf("expected cached list to be refreshed after delete, got %d", len(records))
	}
}
