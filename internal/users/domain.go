package users

import (
	"time"

	"github.com/stockroom-hq/stockroom/internal/shared"
)

// User represents an operator account. Authentication flows live outside the
// core; this package only resolves identity and role membership.
type User struct {
	ID           int64
	Username     string
	Email        string
	FirstName    string
	LastName     string
	Role         shared.Role
	PasswordHash string
	IsActive     bool
	LastLogin    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name.
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Actor converts a user row into the shared actor shape.
func (u User) Actor() shared.Actor {
	return shared.Actor{UserID: u.ID, Name: u.FullName(), Roles: []shared.Role{u.Role}}
}
