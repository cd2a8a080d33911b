package auth

import (
	"errors"
	"time"
)

// ErrUnauthorized is returned when no identity can be resolved for a request
var ErrUnauthorized = errors.New("Unauthorized")

// User represents a platform user account
type User struct {
	ID          int64      `json:"id"`
	Subject     string     `json:"subject"` // OIDC subject (issuer-scoped)
	Email       string     `json:"email,omitempty"`
	FullName    string     `json:"full_name,omitempty"`
	Role        Role       `json:"role"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Role represents platform-wide roles
type Role string

const (
	RoleAdmin Role = "admin" // Full access to the platform
	RoleUser  Role = "user"  // Regular portal user
)

// OrgRole represents organization-level roles, distinct from the platform role
type OrgRole string

const (
	OrgRoleOwner  OrgRole = "owner"  // Full control, including billing and deletion
	OrgRoleAdmin  OrgRole = "admin"  // Manage members, projects, content
	OrgRoleMember OrgRole = "member" // Regular member access
)

// Valid reports whether the role is one of the known organization roles.
func (r OrgRole) Valid() bool {
	switch r {
	case OrgRoleOwner, OrgRoleAdmin, OrgRoleMember:
		return true
	}
	return false
}

// AuthContext holds the resolved identity for a request
type AuthContext struct {
	User *User `json:"user"`
}

// HasRole checks if the identity carries the given platform role.
// Platform admins satisfy every role check.
func (c *AuthContext) HasRole(role Role) bool {
	if c == nil || c.User == nil {
		return false
	}
	if c.User.Role == RoleAdmin {
		return true
	}
	return c.User.Role == role
}
