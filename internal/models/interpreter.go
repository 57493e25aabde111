package models

import "time"

// Availability is the interpreter's availability flag. BUSY is derived from
// owning an accepted request and is only written by the assignment engine.
type Availability string

const (
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
	AvailabilityBusy        Availability = "busy"
)

// Interpreter is a person able to perform interpretation, bound one-to-one to a login.
type Interpreter struct {
	ID                 string       `db:"id" json:"id"`
	LoginID            string       `db:"login_id" json:"login_id"`
	Name               string       `db:"name" json:"name"`
	Language           string       `db:"language" json:"language"`
	PhoneNumber        *string      `db:"phone_number" json:"phone_number,omitempty"`
	Email              *string      `db:"email" json:"email,omitempty"`
	Gender             *string      `db:"gender" json:"gender,omitempty"`
	GenderPreference   *string      `db:"gender_preference" json:"gender_preference,omitempty"`
	AvailabilityStatus Availability `db:"availability_status" json:"availability_status"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
}

// InterpreterFilter narrows interpreter listings.
type InterpreterFilter struct {
	Language      string
	AvailableOnly bool
}
