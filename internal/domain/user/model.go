package user

import "time"

// Recognized roles for staff accounts.
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

// User is a staff account (administrator or appointment agent). Citizens do
// not have accounts; they only appear as contact fields on appointments.
type User struct {
	ID         int64     `json:"id"`
	Nom        string    `json:"nom"`
	Email      string    `json:"email"`
	MotDePasse string    `json:"-"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"-"`
}

// ValidRole reports whether role is one of the recognized values.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleAgent
}
