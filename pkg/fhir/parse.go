package fhir

import (
	"strings"

	"github.com/noah-isme/interpreter-booking-api/internal/models"
)

const (
	defaultLanguage = "English"
	unknownName     = "Unknown"
	bcp47System     = "urn:ietf:bcp:47"
)

// ToLocal maps a registry patient onto the local cache record. The caller
// assigns the local id and timestamps.
func ToLocal(p Patient) models.Patient {
	return models.Patient{
		FHIRID:      p.ID,
		Name:        DisplayName(p),
		Gender:      optional(p.Gender),
		Birthdate:   optional(p.BirthDate),
		PhoneNumber: optional(telecom(p, "phone")),
		Email:       optional(telecom(p, "email")),
		Address:     optional(address(p)),
		Language:    PreferredLanguage(p),
	}
}

// DisplayName joins the given and family parts of the first name entry.
func DisplayName(p Patient) string {
	if len(p.Name) == 0 {
		return unknownName
	}
	name := p.Name[0]
	full := strings.TrimSpace(strings.Join(append(append([]string{}, name.Given...), name.Family), " "))
	if full == "" {
		full = strings.TrimSpace(name.Text)
	}
	if full == "" {
		return unknownName
	}
	return full
}

// PreferredLanguage returns the display of the preferred communication
// language, defaulting to English.
func PreferredLanguage(p Patient) string {
	for _, comm := range p.Communication {
		if !comm.Preferred {
			continue
		}
		if len(comm.Language.Coding) > 0 && comm.Language.Coding[0].Display != "" {
			return comm.Language.Coding[0].Display
		}
		if comm.Language.Text != "" {
			return comm.Language.Text
		}
	}
	return defaultLanguage
}

func telecom(p Patient, system string) string {
	for _, cp := range p.Telecom {
		if cp.System == system {
			return cp.Value
		}
	}
	return ""
}

func address(p Patient) string {
	if len(p.Address) == 0 {
		return ""
	}
	addr := p.Address[0]
	if len(addr.Line) == 0 && addr.City == "" && addr.State == "" && addr.PostalCode == "" {
		return strings.TrimSpace(addr.Text)
	}
	parts := make([]string, 0, len(addr.Line)+2)
	parts = append(parts, addr.Line...)
	if addr.City != "" {
		parts = append(parts, addr.City)
	}
	if region := strings.TrimSpace(addr.State + " " + addr.PostalCode); region != "" {
		parts = append(parts, region)
	}
	return strings.Join(parts, ", ")
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// NewPatientInput carries the fields used to register a patient.
type NewPatientInput struct {
	Name        string
	Birthdate   string
	Gender      string
	Language    string
	PhoneNumber string
	Email       string
	Address     string
}

// BuildPatient converts NewPatientInput into a registry resource. The last
// word of the name is the family name.
func BuildPatient(in NewPatientInput) Patient {
	words := strings.Fields(in.Name)
	name := HumanName{Use: "official", Text: strings.TrimSpace(in.Name)}
	if len(words) > 0 {
		name.Family = words[len(words)-1]
		name.Given = words[:len(words)-1]
	}
	gender := in.Gender
	if gender == "" {
		gender = "unknown"
	}
	p := Patient{
		ResourceType: "Patient",
		Name:         []HumanName{name},
		Gender:       gender,
		BirthDate:    in.Birthdate,
	}
	if in.PhoneNumber != "" {
		p.Telecom = append(p.Telecom, ContactPoint{System: "phone", Value: in.PhoneNumber, Use: "mobile"})
	}
	if in.Email != "" {
		p.Telecom = append(p.Telecom, ContactPoint{System: "email", Value: in.Email})
	}
	if in.Address != "" {
		p.Address = []Address{{Use: "home", Type: "physical", Text: in.Address}}
	}
	if in.Language != "" {
		p.Communication = []Communication{{
			Language: CodeableConcept{
				Coding: []Coding{{System: bcp47System, Display: in.Language}},
				Text:   in.Language,
			},
			Preferred: true,
		}}
	}
	return p
}
