package models

import "time"

// RequestStatus is the lifecycle state of an interpreter request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// Terminal reports whether no further transition is defined from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusCancelled
}

// Valid reports whether s is one of the four known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusAccepted, RequestStatusCompleted, RequestStatusCancelled:
		return true
	}
	return false
}

// DeliveryMethod describes how the interpretation is delivered.
type DeliveryMethod string

const (
	DeliveryOnsite     DeliveryMethod = "onsite"
	DeliveryTelephone  DeliveryMethod = "telephone"
	DeliveryTelehealth DeliveryMethod = "telehealth"
)

// InterpreterRequest is one interpretation-service need raised by clinical staff.
type InterpreterRequest struct {
	ID              string         `db:"id" json:"id"`
	RequestedBy     string         `db:"requested_by" json:"requested_by"`
	PatientID       string         `db:"patient_id" json:"patient_id"`
	InterpreterID   *string        `db:"interpreter_id" json:"interpreter_id,omitempty"`
	Language        string         `db:"language" json:"language"`
	DeliveryMethod  DeliveryMethod `db:"delivery_method" json:"delivery_method"`
	LocationMethod  string         `db:"location_method" json:"location_method"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	IsStat          bool           `db:"is_stat" json:"is_stat"`
	PatientType     *string        `db:"patient_type" json:"patient_type,omitempty"`
	RequestNotes    *string        `db:"request_notes" json:"request_notes,omitempty"`
	EncounterNotes  *string        `db:"encounter_notes" json:"encounter_notes,omitempty"`
	Status          RequestStatus  `db:"status" json:"status"`
	RequestedAt     time.Time      `db:"requested_at" json:"requested_at"`
	AcceptedAt      *time.Time     `db:"accepted_at" json:"accepted_at,omitempty"`
	CompletedAt     *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt     *time.Time     `db:"cancelled_at" json:"cancelled_at,omitempty"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// AssignedTo reports whether the request is owned by interpreterID.
func (r *InterpreterRequest) AssignedTo(interpreterID string) bool {
	return r.InterpreterID != nil && *r.InterpreterID == interpreterID
}

// InterpreterRequestDetail enriches a request with its patient and interpreter.
type InterpreterRequestDetail struct {
	InterpreterRequest
	Patient     *Patient     `json:"patient,omitempty"`
	Interpreter *Interpreter `json:"interpreter,omitempty"`
}

// RequestFilter captures filtering options for staff request listings.
type RequestFilter struct {
	Status        *RequestStatus
	InterpreterID string
	Offset        int
	Limit         int
}
