package model

import "time"

// Roles a user may hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account as stored in the external Users table.  The
// json tags are omitted because these structs are used internally by the
// repository and service layers; handlers render PublicUser instead.
//
// Fields:
//  ID                  – opaque record identifier assigned by the store.
//  Email               – normalized address; unique case-insensitively.
//  PasswordHash        – bcrypt hash.
//  Role                – "user" or "admin".
//  IsActive            – deactivated accounts cannot log in.
//  IsEmailVerified     – login requires a verified address.
//  VerificationHash    – SHA-256 of the pending verification token.
//  ResetHash/ResetExp  – pending password reset; both set or both nil.
//  RefreshHash/RefreshExp – current refresh secret; both set or both nil.
type User struct {
	ID              string
	Name            string
	Email           string
	PasswordHash    string
	Role            string
	IsActive        bool
	IsEmailVerified bool

	VerificationHash string
	VerificationExp  *time.Time

	ResetHash string
	ResetExp  *time.Time

	RefreshHash string
	RefreshExp  *time.Time

	CreatedAt time.Time
}

// PublicUser is the subset of a user returned to API clients.
type PublicUser struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	IsActive        bool      `json:"isActive"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
}

// Public strips secrets from u.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.Role,
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
	}
}
