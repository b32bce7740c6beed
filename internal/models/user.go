package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles asserted by the identity provider.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	DisplayName       string    `json:"display_name"`
	Role              string    `json:"role"`
	PointsBalance     int       `json:"points_balance"`
	PreferredLanguage string    `json:"preferred_language,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
