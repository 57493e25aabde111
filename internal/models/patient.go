package models

import "time"

// Patient is the local cache of a patient held by the external FHIR registry.
type Patient struct {
	ID          string    `db:"id" json:"id"`
	FHIRID      string    `db:"fhir_id" json:"fhir_id"`
	Name        string    `db:"name" json:"name"`
	Location    *string   `db:"location" json:"location,omitempty"`
	Birthdate   *string   `db:"birthdate" json:"birthdate,omitempty"`
	Gender      *string   `db:"gender" json:"gender,omitempty"`
	Address     *string   `db:"address" json:"address,omitempty"`
	PhoneNumber *string   `db:"phone_number" json:"phone_number,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	Language    string    `db:"language" json:"language"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
