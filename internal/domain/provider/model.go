package provider

import (
	"time"

	"github.com/google/uuid"
)

const (
	AccessFull        = "full"
	AccessRelevant    = "relevant"
	AccessSummaryOnly = "summary_only"
)

var validAccessLevels = map[string]bool{
	AccessFull: true, AccessRelevant: true, AccessSummaryOnly: true,
}

// AccessLevels lists provider access levels in display order.
var AccessLevels = []string{AccessFull, AccessRelevant, AccessSummaryOnly}

// Provider maps to the providers table. HasAccess and AccessLevel are stored
// for the owner's reference and do not gate any read path.
type Provider struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	Name        string     `db:"name" json:"name"`
	Specialty   *string    `db:"specialty" json:"specialty,omitempty"`
	ClinicName  *string    `db:"clinic_name" json:"clinic_name,omitempty"`
	Email       *string    `db:"email" json:"email,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	HasAccess   bool       `db:"has_access" json:"has_access"`
	AccessLevel string     `db:"access_level" json:"access_level"`
	InvitedAt   *time.Time `db:"invited_at" json:"invited_at,omitempty"`
	AcceptedAt  *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// CreateInput is the new-provider form.
type CreateInput struct {
	Name       string `form:"name" json:"name" validate:"required,max=200"`
	Specialty  string `form:"specialty" json:"specialty" validate:"max=100"`
	ClinicName string `form:"clinic_name" json:"clinic_name" validate:"max=200"`
	Email      string `form:"email" json:"email" validate:"omitempty,email"`
	Phone      string `form:"phone" json:"phone" validate:"max=40"`
}
