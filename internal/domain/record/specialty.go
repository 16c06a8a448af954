package record

// Specialties is the fixed list offered for records, providers, share
// filters and AI briefs.
var Specialties = []string{
	"Primary Care",
	"Cardiology",
	"Dermatology",
	"Endocrinology",
	"Gastroenterology",
	"Neurology",
	"Oncology",
	"Ophthalmology",
	"Orthopedics",
	"Psychiatry",
	"Pulmonology",
	"Rheumatology",
	"Urology",
	"Gynecology",
	"Pediatrics",
	"Emergency Medicine",
	"Surgery",
	"Radiology",
	"Pathology",
	"Anesthesiology",
	"Allergy & Immunology",
	"Physical Therapy",
	"Other",
}

// IsSpecialty reports whether s is one of Specialties.
func IsSpecialty(s string) bool {
	for _, sp := range Specialties {
		if sp == s {
			return true
		}
	}
	return false
}
