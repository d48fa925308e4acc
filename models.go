package session

import (
	"github.com/google/uuid"
)

// UserRole is the user's role as reported by the identity service
type UserRole = string

// User is an immutable snapshot of the authenticated user. A refresh
// replaces it wholesale.
type User struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	AvatarURL string   `json:"avatar_url,omitempty"`
	Role      UserRole `json:"role,omitempty"`
}

// UUID parses the user ID, for identity services that issue UUIDs
func (u User) UUID() (uuid.UUID, error) {
	return uuid.Parse(u.ID)
}

// IsZero reports whether the snapshot carries no identifier
func (u User) IsZero() bool {
	return u.ID == ""
}
