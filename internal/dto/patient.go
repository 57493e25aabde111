package dto

// CreatePatientPayload creates a patient in the FHIR registry and caches it locally.
type CreatePatientPayload struct {
	Name        string  `json:"name" validate:"required"`
	Language    string  `json:"language" validate:"required"`
	Birthdate   string  `json:"birthdate" validate:"required,datetime=2006-01-02"`
	Gender      string  `json:"gender" validate:"required,oneof=male female other unknown"`
	Location    *string `json:"location,omitempty"`
	Address     *string `json:"address,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
}

// PatientSearchQuery searches the FHIR registry.
type PatientSearchQuery struct {
	Name     string `form:"name"`
	Language string `form:"language"`
}

// PatientListQuery pages the local patient cache.
type PatientListQuery struct {
	Offset int `form:"skip"`
	Limit  int `form:"limit"`
}
