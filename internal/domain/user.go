package domain

import (
	"context"
	"time"
)

// Role is the access level of a user
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents a catalog user
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Bcrypt hash, never serialized
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Sanitized returns a copy without the password hash
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	return &out
}

// UserInput is the payload of a user creation
type UserInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}

// UserUpdate is a partial user update as received from callers
type UserUpdate struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *Role   `json:"role,omitempty"`
}

// UserPatch is the storage-level partial update; the password is already hashed
type UserPatch struct {
	Email        *string
	Name         *string
	PasswordHash *string
	Role         *Role
	IsActive     *bool
}

// Empty reports whether the patch changes nothing
func (p UserPatch) Empty() bool {
	return p.Email == nil && p.Name == nil && p.PasswordHash == nil && p.Role == nil && p.IsActive == nil
}

// Apply merges the supplied fields onto dst
func (p UserPatch) Apply(dst *User) {
	if p.Email != nil {
		dst.Email = *p.Email
	}
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.PasswordHash != nil {
		dst.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		dst.Role = *p.Role
	}
	if p.IsActive != nil {
		dst.IsActive = *p.IsActive
	}
}

// UserRepository defines data access for users
type UserRepository interface {
	Insert(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	UpdateByID(ctx context.Context, id string, patch UserPatch) (*User, error)
	DeleteByID(ctx context.Context, id string) (*User, error)
	CountActive(ctx context.Context) (int, error)
}
