package domain

import "time"

const (
	RoleAdmin      = "admin"
	RoleConsultant = "consultant"
	RoleCustomer   = "customer"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleConsultant, RoleCustomer:
		return true
	}
	return false
}

// User models an account holder. Email is unique and stored lower-cased.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Name string
	Role string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// ActorFromUser builds the Actor view of a stored user.
func ActorFromUser(u *User) Actor {
	return Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}
