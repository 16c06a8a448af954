package web_test

import (
	"bytes"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/helix/phr/internal/domain/brief"
	"github.com/helix/phr/internal/domain/dashboard"
	"github.com/helix/phr/internal/domain/profile"
	"github.com/helix/phr/internal/domain/provider"
	"github.com/helix/phr/internal/domain/record"
	"github.com/helix/phr/internal/domain/share"
	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/web"
	"github.com/helix/phr/pkg/pagination"
)

func strPtr(s string) *string { return &s }

func sampleRecords() []*record.HealthRecord {
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []*record.HealthRecord{
		{
			ID: uuid.New(), Type: record.TypeMedication, Title: "Metformin", Status: record.StatusActive,
			Date:     time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC),
			Metadata: record.MedicationMetadata{Dosage: strPtr("500mg"), Frequency: strPtr("twice daily")},
		},
		{
			ID: uuid.New(), Type: record.TypeLab, Title: "HbA1c", Status: record.StatusActive,
			Date: time.Date(2023, 4, 2, 0, 0, 0, 0, time.UTC), EndDate: &end,
			Specialty: strPtr("Endocrinology"),
			Metadata:  record.LabMetadata{KeyValues: strPtr("6.1%")},
		},
		{
			ID: uuid.New(), Type: record.TypeImaging, Title: "Chest X-ray", Status: record.StatusResolved,
			Date:     time.Date(2022, 1, 9, 0, 0, 0, 0, time.UTC),
			Metadata: record.ImagingMetadata{BodyRegion: strPtr("Chest")},
		},
		{
			ID: uuid.New(), Type: record.TypeCondition, Title: "Type 2 diabetes <script>", Status: record.StatusActive,
			Date: time.Date(2021, 7, 9, 0, 0, 0, 0, time.UTC), Metadata: record.NoMetadata{},
		},
	}
}

func TestRenderer_Pages(t *testing.T) {
	r, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	recs := sampleRecords()
	expires := time.Now().Add(time.Hour)
	link := &share.Link{ID: uuid.New(), Token: "tok", AccessLevel: share.AccessFiltered, FilterSpecialties: []string{"Cardiology"}, ExpiresAt: &expires, IsActive: true}
	age := 41
	base, _ := url.Parse("/dashboard/records")

	pages := map[string]interface{}{
		"landing":    auth.FormPage{},
		"login":      auth.FormPage{Email: "ana@example.com", Error: "Invalid login credentials"},
		"signup":     auth.FormPage{},
		"error":      web.ErrorPage{Status: 404, Message: "Not Found"},
		"onboarding": &profile.OnboardingPage{FullName: "Ana", BloodTypes: profile.BloodTypes, RecordTypes: record.Types, Specialties: record.Specialties},
		"settings": &profile.SettingsPage{
			Profile:    &profile.Profile{FullName: strPtr("Ana"), BloodType: strPtr("O+"), Allergies: []string{"Latex"}},
			Email:      "ana@example.com",
			BloodTypes: profile.BloodTypes,
		},
		"dashboard": &dashboard.Page{
			Name:               "Ana",
			ActiveConditions:   recs[3:],
			CurrentMedications: recs[:1],
			RecentRecords:      recs,
		},
		"records": &record.RecordsPage{
			Filter:      record.Filter{Type: record.TypeLab},
			Records:     pagination.Apply(recs, pagination.Params{Limit: 2}, base),
			Types:       record.Types,
			Statuses:    record.Statuses,
			Specialties: record.Specialties,
		},
		"timeline": &record.TimelinePage{Total: len(recs), Years: record.GroupByYear(recs), Types: record.Types},
		"providers": &provider.Page{
			Providers:    []*provider.Provider{{ID: uuid.New(), Name: "Dr. Chen", Specialty: strPtr("Cardiology"), AccessLevel: provider.AccessSummaryOnly}},
			Specialties:  record.Specialties,
			AccessLevels: provider.AccessLevels,
		},
		"share": &share.Page{
			Links:        []share.LinkView{{Link: link, Status: share.StatusActive, URL: "http://localhost/share/tok"}},
			AccessLevels: share.AccessLevels,
			Specialties:  record.Specialties,
		},
		"shared": &share.SharedView{
			AccessLevel:        share.AccessFull,
			Patient:            &share.PatientSummary{FullName: strPtr("Ana"), Age: &age, Allergies: []string{}},
			ActiveConditions:   recs[3:],
			CurrentMedications: recs[:1],
			Records:            recs,
		},
		"ai_brief": &brief.Page{
			Summaries:   []*brief.Summary{{ID: uuid.New(), Specialty: "Cardiology", Summary: "## Summary", KeyConditions: []string{"Hypertension"}}},
			Result:      &brief.GenerateResult{Specialty: "Cardiology", Summary: "## Summary"},
			Specialties: brief.Specialties,
		},
	}

	for name, data := range pages {
		if !r.Has(name) {
			t.Errorf("missing template %q", name)
			continue
		}
		var buf bytes.Buffer
		if err := r.Render(&buf, name, data, nil); err != nil {
			t.Errorf("render %s: %v", name, err)
			continue
		}
		if !strings.Contains(buf.String(), "<!DOCTYPE html>") {
			t.Errorf("%s: layout not applied", name)
		}
	}
}

func TestRenderer_EscapesContent(t *testing.T) {
	r, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	recs := sampleRecords()
	var buf bytes.Buffer
	page := &record.TimelinePage{Total: len(recs), Years: record.GroupByYear(recs), Types: record.Types}
	if err := r.Render(&buf, "timeline", page, nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Error("record title was not escaped")
	}
	if !strings.Contains(buf.String(), "2023") || !strings.Contains(buf.String(), "Metformin") {
		t.Error("expected grouped records in output")
	}
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	r, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	if err := r.Render(&bytes.Buffer{}, "nope", nil, nil); err == nil {
		t.Error("expected error for unknown template")
	}
}
