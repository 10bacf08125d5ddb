package domain

import "time"

// DefaultDisplayName is used when the identity provider has no display name for an account
const DefaultDisplayName = "User"

// User represents an authenticated account as seen by the session layer.
// A nil *User means there is no authenticated session.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Account is the identity provider's own view of a signed-in account
type Account struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Credential represents a user record in the identity provider's store
type Credential struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	DisplayName  string     `json:"display_name" db:"display_name"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at" db:"last_login_at"`
	IsActive     bool       `json:"is_active" db:"is_active"`
}

// Account converts the stored credential into the provider's account view
func (c *Credential) Account() *Account {
	return &Account{
		UID:         c.ID,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		CreatedAt:   c.CreatedAt,
	}
}

// Profile is the per-user document kept in the remote document store
type Profile struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"displayName" db:"display_name"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
