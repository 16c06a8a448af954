package brief

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/helix/phr/internal/domain/profile"
	"github.com/helix/phr/internal/domain/record"
)

const recentLimit = 5

// facts is the slice of a user's history that goes into one brief.
type facts struct {
	Specialty   string
	Age         string
	BloodType   string
	Allergies   []string
	Conditions  []*record.HealthRecord
	Medications []*record.HealthRecord
	Relevant    []*record.HealthRecord
	Labs        []*record.HealthRecord
	Visits      []*record.HealthRecord
}

// gather partitions records, which must be ordered newest first.
func gather(specialty string, p *profile.Profile, records []*record.HealthRecord, now time.Time) facts {
	f := facts{Specialty: specialty, Age: "Unknown", BloodType: "Not recorded"}
	if age, ok := p.Age(now); ok {
		f.Age = strconv.Itoa(age)
	}
	if p != nil {
		if p.BloodType != nil && *p.BloodType != "" {
			f.BloodType = *p.BloodType
		}
		f.Allergies = p.Allergies
	}

	for _, r := range records {
		switch {
		case r.Type == record.TypeCondition && r.IsActive():
			f.Conditions = append(f.Conditions, r)
		case r.Type == record.TypeMedication && r.IsActive():
			f.Medications = append(f.Medications, r)
		}
		if r.Specialty != nil && *r.Specialty == specialty {
			f.Relevant = append(f.Relevant, r)
		}
		if r.Type == record.TypeLab && len(f.Labs) < recentLimit {
			f.Labs = append(f.Labs, r)
		}
		if r.Type == record.TypeVisit && len(f.Visits) < recentLimit {
			f.Visits = append(f.Visits, r)
		}
	}
	return f
}

func (f facts) prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a medical AI assistant generating a pre-appointment health brief for a %s appointment.\n\n", f.Specialty)

	b.WriteString("Patient Overview:\n")
	fmt.Fprintf(&b, "- Age: %s\n", f.Age)
	fmt.Fprintf(&b, "- Blood Type: %s\n", f.BloodType)
	allergies := "None recorded"
	if len(f.Allergies) > 0 {
		allergies = strings.Join(f.Allergies, ", ")
	}
	fmt.Fprintf(&b, "- Known Allergies: %s\n", allergies)

	section(&b, "Active Conditions", f.Conditions, func(r *record.HealthRecord) string {
		return fmt.Sprintf("%s (since %s)%s", r.Title, day(r.Date), notes(r))
	})
	section(&b, "Current Medications", f.Medications, func(r *record.HealthRecord) string {
		line := r.Title
		if m, ok := r.Medication(); ok {
			if m.Dosage != nil {
				line += ": " + *m.Dosage
			}
			if m.Frequency != nil {
				line += ", " + *m.Frequency
			}
		}
		return line
	})
	section(&b, "Records relevant to "+f.Specialty, f.Relevant, func(r *record.HealthRecord) string {
		return fmt.Sprintf("[%s] %s (%s)%s", r.Type, r.Title, day(r.Date), notes(r))
	})
	section(&b, "Recent Lab Results", f.Labs, func(r *record.HealthRecord) string {
		line := fmt.Sprintf("%s (%s)", r.Title, day(r.Date))
		if lab, ok := r.Metadata.(record.LabMetadata); ok && lab.KeyValues != nil {
			line += ": " + *lab.KeyValues
		}
		return line
	})
	section(&b, "Recent Visits", f.Visits, func(r *record.HealthRecord) string {
		provider := "Unknown provider"
		if r.ProviderName != nil {
			provider = *r.ProviderName
		}
		return fmt.Sprintf("%s (%s) with %s", r.Title, day(r.Date), provider)
	})

	fmt.Fprintf(&b, "\nGenerate a structured, concise health brief for the %s specialist. Include:\n", f.Specialty)
	b.WriteString("1. **Patient Summary**: Age, blood type, allergies, relevant background\n")
	b.WriteString("2. **Relevant Conditions**: Conditions pertinent to this specialty\n")
	b.WriteString("3. **Current Medications**: With potential interactions or concerns for this specialty\n")
	b.WriteString("4. **Recent Activity**: Latest visits, labs, or imaging relevant to this specialty\n")
	b.WriteString("5. **Key Notes & Cautions**: Drug interactions, allergy risks, important flags\n\n")
	b.WriteString("Keep it professional, clear, and actionable. Use markdown formatting.")
	return b.String()
}

// extract builds the denormalized list columns stored with a summary.
func (f facts) extract(specialty, text string) *Summary {
	s := &Summary{
		Specialty:          specialty,
		Summary:            text,
		KeyConditions:      titles(f.Conditions),
		CurrentMedications: titles(f.Medications),
		RecentVisits:       make([]string, len(f.Visits)),
		Cautions:           nonNil(f.Allergies),
	}
	for i, v := range f.Visits {
		s.RecentVisits[i] = fmt.Sprintf("%s (%s)", v.Title, day(v.Date))
	}
	return s
}

func section(b *strings.Builder, title string, records []*record.HealthRecord, line func(*record.HealthRecord) string) {
	fmt.Fprintf(b, "\n%s:\n", title)
	if len(records) == 0 {
		b.WriteString("None\n")
		return
	}
	for _, r := range records {
		b.WriteString("- " + line(r) + "\n")
	}
}

func titles(records []*record.HealthRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func notes(r *record.HealthRecord) string {
	if r.Notes == nil || *r.Notes == "" {
		return ""
	}
	return ": " + *r.Notes
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}
