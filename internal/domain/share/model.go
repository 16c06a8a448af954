package share

import (
	"time"

	"github.com/google/uuid"

	"github.com/helix/phr/internal/domain/record"
)

const (
	AccessFull     = "full"
	AccessFiltered = "filtered"
	AccessSummary  = "summary"
)

var validAccessLevels = map[string]bool{
	AccessFull: true, AccessFiltered: true, AccessSummary: true,
}

// AccessLevels lists share access levels in display order.
var AccessLevels = []string{AccessSummary, AccessFiltered, AccessFull}

const (
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusRevoked = "revoked"
)

// ExpiryOptions maps the expiry form values to link lifetimes. Any other
// value creates a link that never expires.
var ExpiryOptions = map[string]time.Duration{
	"1day":   24 * time.Hour,
	"1week":  7 * 24 * time.Hour,
	"1month": 30 * 24 * time.Hour,
}

// Link maps to the share_links table.
type Link struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	UserID            uuid.UUID  `db:"user_id" json:"user_id"`
	Token             string     `db:"token" json:"token"`
	RecipientName     *string    `db:"recipient_name" json:"recipient_name,omitempty"`
	Purpose           *string    `db:"purpose" json:"purpose,omitempty"`
	AccessLevel       string     `db:"access_level" json:"access_level"`
	FilterSpecialties []string   `db:"filter_specialties" json:"filter_specialties"`
	ExpiresAt         *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	ViewedAt          *time.Time `db:"viewed_at" json:"viewed_at,omitempty"`
	ViewCount         int        `db:"view_count" json:"view_count"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the link's expiry is at or before now.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// Valid is the single validity rule for public resolution.
func (l *Link) Valid(now time.Time) bool {
	return l.IsActive && !l.Expired(now)
}

// Status derives the display state. Revocation wins over expiry.
func (l *Link) Status(now time.Time) string {
	switch {
	case !l.IsActive:
		return StatusRevoked
	case l.Expired(now):
		return StatusExpired
	default:
		return StatusActive
	}
}

// CreateInput is the new-link form.
type CreateInput struct {
	RecipientName     string `form:"recipient_name" json:"recipient_name" validate:"max=200"`
	Purpose           string `form:"purpose" json:"purpose" validate:"max=500"`
	AccessLevel       string `form:"access_level" json:"access_level" validate:"omitempty,oneof=full filtered summary"`
	FilterSpecialties string `form:"filter_specialties" json:"filter_specialties"`
	Expiry            string `form:"expiry" json:"expiry"`
}

// PatientSummary is the profile block shown to full and filtered links.
type PatientSummary struct {
	FullName  *string  `json:"full_name,omitempty"`
	Age       *int     `json:"age,omitempty"`
	BloodType *string  `json:"blood_type,omitempty"`
	Allergies []string `json:"allergies"`
}

// SharedView is what a valid token discloses. Summary links carry only the
// active condition and medication lists.
type SharedView struct {
	AccessLevel        string                 `json:"access_level"`
	RecipientName      *string                `json:"recipient_name,omitempty"`
	Purpose            *string                `json:"purpose,omitempty"`
	ExpiresAt          *time.Time             `json:"expires_at,omitempty"`
	Patient            *PatientSummary        `json:"patient,omitempty"`
	ActiveConditions   []*record.HealthRecord `json:"active_conditions"`
	CurrentMedications []*record.HealthRecord `json:"current_medications"`
	Records            []*record.HealthRecord `json:"records,omitempty"`
}

// LinkView pairs a link with its derived status and public URL.
type LinkView struct {
	*Link
	Status string `json:"status"`
	URL    string `json:"url"`
}
