package dto

import "github.com/noah-isme/interpreter-booking-api/internal/models"

// CreateRequestPayload is submitted by staff to raise an interpreter request.
type CreateRequestPayload struct {
	PatientID       string                `json:"patient_id" validate:"required"`
	Language        string                `json:"language" validate:"required"`
	DeliveryMethod  models.DeliveryMethod `json:"delivery_method" validate:"required,oneof=onsite telephone telehealth"`
	LocationMethod  string                `json:"location_method" validate:"required"`
	DurationMinutes int                   `json:"duration_minutes" validate:"gt=0"`
	IsStat          bool                  `json:"is_stat"`
	PatientType     *string               `json:"patient_type,omitempty"`
	RequestNotes    *string               `json:"request_notes,omitempty"`
}

// CompleteRequestPayload closes an accepted request.
type CompleteRequestPayload struct {
	EncounterNotes string `json:"encounter_notes"`
}

// RequestListQuery filters staff request listings.
type RequestListQuery struct {
	Status string `form:"status"`
	Offset int    `form:"skip"`
	Limit  int    `form:"limit"`
}
