package record

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	TypeCondition   = "condition"
	TypeMedication  = "medication"
	TypeVisit       = "visit"
	TypeLab         = "lab"
	TypeImaging     = "imaging"
	TypeProcedure   = "procedure"
	TypeVaccination = "vaccination"
	TypeAllergy     = "allergy"
)

const (
	StatusActive       = "active"
	StatusResolved     = "resolved"
	StatusDiscontinued = "discontinued"
)

// Types lists record types in display order.
var Types = []string{
	TypeCondition, TypeMedication, TypeVisit, TypeLab,
	TypeImaging, TypeProcedure, TypeVaccination, TypeAllergy,
}

var validTypes = map[string]bool{
	TypeCondition: true, TypeMedication: true, TypeVisit: true, TypeLab: true,
	TypeImaging: true, TypeProcedure: true, TypeVaccination: true, TypeAllergy: true,
}

var validStatuses = map[string]bool{
	StatusActive: true, StatusResolved: true, StatusDiscontinued: true,
}

// Statuses lists record statuses in display order.
var Statuses = []string{StatusActive, StatusResolved, StatusDiscontinued}

// HealthRecord maps to the health_records table.
type HealthRecord struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	UserID       uuid.UUID  `db:"user_id" json:"user_id"`
	Type         string     `db:"type" json:"type"`
	Title        string     `db:"title" json:"title"`
	Description  *string    `db:"description" json:"description,omitempty"`
	Date         time.Time  `db:"date" json:"date"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	Status       string     `db:"status" json:"status"`
	ProviderName *string    `db:"provider_name" json:"provider_name,omitempty"`
	Specialty    *string    `db:"specialty" json:"specialty,omitempty"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	Metadata     Metadata   `db:"metadata" json:"metadata"`
	DocumentURL  *string    `db:"document_url" json:"document_url,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UnmarshalJSON decodes the metadata into the variant selected by Type.
func (r *HealthRecord) UnmarshalJSON(data []byte) error {
	type alias HealthRecord
	aux := struct {
		*alias
		Metadata json.RawMessage `json:"metadata"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	md, err := ParseMetadata(r.Type, aux.Metadata)
	if err != nil {
		return err
	}
	r.Metadata = md
	return nil
}

// IsActive reports whether the record is in the active status.
func (r *HealthRecord) IsActive() bool {
	return r.Status == StatusActive
}

// Medication returns the dosage metadata of a medication record.
func (r *HealthRecord) Medication() (MedicationMetadata, bool) {
	m, ok := r.Metadata.(MedicationMetadata)
	return m, ok
}

// Metadata is the type-dependent part of a record. Each record type has at
// most one variant; types without one carry NoMetadata.
type Metadata interface {
	Kind() string
}

type MedicationMetadata struct {
	Dosage    *string `json:"dosage"`
	Frequency *string `json:"frequency"`
}

func (MedicationMetadata) Kind() string { return TypeMedication }

type LabMetadata struct {
	LabName        *string `json:"lab_name"`
	KeyValues      *string `json:"key_values"`
	ReferenceRange *string `json:"reference_range"`
}

func (LabMetadata) Kind() string { return TypeLab }

type ImagingMetadata struct {
	ImagingType *string `json:"imaging_type"`
	BodyRegion  *string `json:"body_region"`
	Findings    *string `json:"findings"`
}

func (ImagingMetadata) Kind() string { return TypeImaging }

type NoMetadata struct{}

func (NoMetadata) Kind() string { return "" }

// BuildMetadata constructs the metadata variant for recordType from form
// values. Fields that are absent or empty become nil.
func BuildMetadata(recordType string, form url.Values) Metadata {
	switch recordType {
	case TypeMedication:
		return MedicationMetadata{
			Dosage:    nullable(form.Get("dosage")),
			Frequency: nullable(form.Get("frequency")),
		}
	case TypeLab:
		return LabMetadata{
			LabName:        nullable(form.Get("lab_name")),
			KeyValues:      nullable(form.Get("key_values")),
			ReferenceRange: nullable(form.Get("reference_range")),
		}
	case TypeImaging:
		return ImagingMetadata{
			ImagingType: nullable(form.Get("imaging_type")),
			BodyRegion:  nullable(form.Get("body_region")),
			Findings:    nullable(form.Get("findings")),
		}
	default:
		return NoMetadata{}
	}
}

// ParseMetadata decodes stored metadata for a record of recordType.
// Metadata shaped for another type is dropped.
func ParseMetadata(recordType string, raw []byte) (Metadata, error) {
	var (
		md  Metadata
		err error
	)
	switch recordType {
	case TypeMedication:
		var m MedicationMetadata
		err = unmarshalLoose(raw, &m)
		md = m
	case TypeLab:
		var m LabMetadata
		err = unmarshalLoose(raw, &m)
		md = m
	case TypeImaging:
		var m ImagingMetadata
		err = unmarshalLoose(raw, &m)
		md = m
	default:
		md = NoMetadata{}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", recordType, err)
	}
	return md, nil
}

// MarshalMetadata encodes metadata for storage. NoMetadata and nil encode as {}.
func MarshalMetadata(md Metadata) ([]byte, error) {
	switch md.(type) {
	case nil, NoMetadata:
		return []byte("{}"), nil
	}
	return json.Marshal(md)
}

func unmarshalLoose(raw []byte, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Filter narrows the records page.
type Filter struct {
	Type   string `json:"type,omitempty"`
	Status string `json:"status,omitempty"`
	Query  string `json:"q,omitempty"`
}

// Match reports whether r passes the filter. Query matches title,
// description and provider name without regard to case.
func (f Filter) Match(r *HealthRecord) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	return contains(&r.Title, q) || contains(r.Description, q) || contains(r.ProviderName, q)
}

// TimelineFilter narrows the timeline. Its query ignores provider names.
type TimelineFilter struct {
	Type  string `json:"type,omitempty"`
	Query string `json:"q,omitempty"`
}

func (f TimelineFilter) Match(r *HealthRecord) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	return contains(&r.Title, q) || contains(r.Description, q)
}

func contains(s *string, lowerQuery string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), lowerQuery)
}

// YearGroup is one section of the timeline.
type YearGroup struct {
	Year    int             `json:"year"`
	Records []*HealthRecord `json:"records"`
}

// GroupByYear buckets records by the year of their date, newest year first.
// Records keep their input order within a year.
func GroupByYear(records []*HealthRecord) []YearGroup {
	var groups []YearGroup
	index := make(map[int]int)
	for _, r := range records {
		y := r.Date.Year()
		i, ok := index[y]
		if !ok {
			i = len(groups)
			index[y] = i
			groups = append(groups, YearGroup{Year: y})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Year > groups[j].Year })
	return groups
}
