package brief

import (
	"time"

	"github.com/google/uuid"

	"github.com/helix/phr/internal/domain/record"
)

// Summary maps to the ai_summaries table. Rows are never updated.
type Summary struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	UserID             uuid.UUID `db:"user_id" json:"user_id"`
	Specialty          string    `db:"specialty" json:"specialty"`
	Summary            string    `db:"summary" json:"summary"`
	KeyConditions      []string  `db:"key_conditions" json:"key_conditions"`
	CurrentMedications []string  `db:"current_medications" json:"current_medications"`
	RecentVisits       []string  `db:"recent_visits" json:"recent_visits"`
	Cautions           []string  `db:"cautions" json:"cautions"`
	GeneratedAt        time.Time `db:"generated_at" json:"generated_at"`
}

// GenerateInput is the brief request form.
type GenerateInput struct {
	Specialty string `form:"specialty" json:"specialty"`
}

// GenerateResult is returned for every completed generation. Saved is false
// when the text was produced but could not be stored.
type GenerateResult struct {
	Specialty string     `json:"specialty"`
	Summary   string     `json:"summary"`
	Saved     bool       `json:"saved"`
	ID        *uuid.UUID `json:"id,omitempty"`
}

// Specialties are the brief targets: every record specialty except "Other".
var Specialties = func() []string {
	out := make([]string, 0, len(record.Specialties))
	for _, s := range record.Specialties {
		if s != "Other" {
			out = append(out, s)
		}
	}
	return out
}()

func isSpecialty(s string) bool {
	for _, sp := range Specialties {
		if sp == s {
			return true
		}
	}
	return false
}
