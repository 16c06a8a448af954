package profile

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BloodTypes lists the accepted blood types.
var BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

var validBloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

// Profile maps to the users table. One row per account.
type Profile struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	Email                 string     `db:"email" json:"email"`
	FullName              *string    `db:"full_name" json:"full_name,omitempty"`
	DateOfBirth           *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	BloodType             *string    `db:"blood_type" json:"blood_type,omitempty"`
	Allergies             []string   `db:"allergies" json:"allergies"`
	EmergencyContactName  *string    `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string    `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	AvatarURL             *string    `db:"avatar_url" json:"avatar_url,omitempty"`
	OnboardingCompleted   bool       `db:"onboarding_completed" json:"onboarding_completed"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// Age returns whole years since the date of birth, counting 365.25-day years.
func (p *Profile) Age(now time.Time) (int, bool) {
	if p == nil || p.DateOfBirth == nil {
		return 0, false
	}
	years := now.Sub(*p.DateOfBirth).Hours() / 24 / 365.25
	return int(years), true
}

// DisplayName is the full name, or the email when no name is set.
func (p *Profile) DisplayName() string {
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	return p.Email
}

// ParseAllergies splits a comma-separated list, trimming entries and
// dropping empty ones.
func ParseAllergies(raw string) []string {
	out := []string{}
	for _, a := range strings.Split(raw, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// UpdateInput is the settings form.
type UpdateInput struct {
	FullName              string `form:"full_name" json:"full_name" validate:"max=200"`
	DateOfBirth           string `form:"date_of_birth" json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	BloodType             string `form:"blood_type" json:"blood_type" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies             string `form:"allergies" json:"allergies"`
	EmergencyContactName  string `form:"emergency_contact_name" json:"emergency_contact_name" validate:"max=200"`
	EmergencyContactPhone string `form:"emergency_contact_phone" json:"emergency_contact_phone" validate:"max=40"`
}

// OnboardingInput is the three-step onboarding form. The first record and
// first provider are optional and skipped when their title or name is empty.
type OnboardingInput struct {
	DateOfBirth    string `form:"date_of_birth" json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	BloodType      string `form:"blood_type" json:"blood_type" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies      string `form:"allergies" json:"allergies"`
	RecordTitle    string `form:"first_record_title" json:"first_record_title" validate:"max=200"`
	RecordType     string `form:"first_record_type" json:"first_record_type" validate:"omitempty,oneof=condition medication visit lab imaging procedure vaccination allergy"`
	RecordDate     string `form:"first_record_date" json:"first_record_date" validate:"omitempty,datetime=2006-01-02"`
	ProviderName   string `form:"first_provider_name" json:"first_provider_name" validate:"max=200"`
	ProviderSpec   string `form:"first_provider_specialty" json:"first_provider_specialty" validate:"max=100"`
	ProviderClinic string `form:"first_provider_clinic" json:"first_provider_clinic" validate:"max=200"`
}
