package user

import (
	"time"

	"github.com/alecgard/tasker/internal/auth"
)

// User represents a registered user account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Identity returns the session identity for u.
func (u *User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Email: u.Email, Name: u.Name}
}

// RegisterInput holds the fields required to create a new user.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"username"`
}

// Registration is the result of a successful registration.
type Registration struct {
	User           *User  `json:"user"`
	GeneralGroupID string `json:"generalGroupId"`
}
