package models

import "time"

const (
	RoleAdmin  = "admin"
	RoleDriver = "driver"
)

type User struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uint64
	Role string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

func (u *User) Ref() *UserRef {
	return &UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
