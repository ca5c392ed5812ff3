package auth

import "time"

// User represents an authenticated user account. Role is the role name
// the authorization engine resolves permissions and policies against.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
