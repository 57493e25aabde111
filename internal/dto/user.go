package dto

import "github.com/noah-isme/interpreter-booking-api/internal/models"

// CreateUserPayload is used by administrators to provision staff and admin
// logins. Interpreter logins are created with their profile.
type CreateUserPayload struct {
	Username string          `json:"username" validate:"required"`
	Password string          `json:"password" validate:"required,min=6"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN STAFF"`
}
