package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a resident's role in the portal.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleResident Role = "resident"
)

// User is the identity that authors messages and casts votes.
// Accounts are provisioned by the identity collaborator; the feed only reads them.
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
