package models

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleDriver   UserRole = "driver"
	RoleAdmin    UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// Subject is the authenticated caller of an operation.
type Subject struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}

func (s Subject) IsDriver() bool { return s.Role == RoleDriver }

func (s Subject) IsAdmin() bool { return s.Role == RoleAdmin }

// Is reports whether the subject acts as the given user.
func (s Subject) Is(userID string) bool {
	return s.UserID != "" && s.UserID == userID
}
