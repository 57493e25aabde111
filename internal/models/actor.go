package models

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	UserID    string
	Role      UserRole
	IP        string
	UserAgent string
}

// IsAdmin reports whether the actor holds the administrator role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
