package dto

import "github.com/noah-isme/interpreter-booking-api/internal/models"

// CreateInterpreterPayload registers an interpreter together with its login.
type CreateInterpreterPayload struct {
	Username         string  `json:"username" validate:"required"`
	Password         string  `json:"password" validate:"required,min=6"`
	Name             string  `json:"name" validate:"required"`
	Language         string  `json:"language" validate:"required"`
	PhoneNumber      *string `json:"phone_number,omitempty"`
	Email            *string `json:"email,omitempty" validate:"omitempty,email"`
	Gender           *string `json:"gender,omitempty"`
	GenderPreference *string `json:"gender_preference,omitempty"`
}

// UpdateInterpreterContactPayload changes contact fields only; availability has
// its own endpoint.
type UpdateInterpreterContactPayload struct {
	PhoneNumber *string `json:"phone_number,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
}

// SetAvailabilityPayload toggles an interpreter between available and unavailable.
type SetAvailabilityPayload struct {
	AvailabilityStatus models.Availability `json:"availability_status" validate:"required,oneof=available unavailable"`
}

// InterpreterListQuery filters interpreter listings.
type InterpreterListQuery struct {
	Language      string `form:"language"`
	AvailableOnly bool   `form:"available_only"`
}
