package orgs

import (
	"time"

	"github.com/sleads/portal/pkg/auth"
)

// OrgStatus represents organization status
type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
	OrgStatusDeleted   OrgStatus = "deleted"
)

// Organization represents an agency client organization
type Organization struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Slug      string         `json:"slug"`
	OwnerID   *int64         `json:"owner_id,omitempty"`
	Status    OrgStatus      `json:"status"`
	Settings  map[string]any `json:"settings,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Member represents an organization member with joined user details
type Member struct {
	ID             int64        `json:"id"`
	OrganizationID int64        `json:"organization_id"`
	UserID         int64        `json:"user_id"`
	Role           auth.OrgRole `json:"role"`
	InvitedBy      *int64       `json:"invited_by,omitempty"`
	JoinedAt       time.Time    `json:"joined_at"`
	CreatedAt      time.Time    `json:"created_at"`
	Email          string       `json:"email,omitempty"`
	FullName       string       `json:"full_name,omitempty"`
}

// Invitation represents an invitation to join an organization
type Invitation struct {
	ID         int64        `json:"id"`
	OrgID      int64        `json:"org_id"`
	Email      string       `json:"email"`
	Role       auth.OrgRole `json:"role"`
	Token      string       `json:"token,omitempty"`
	InvitedBy  int64        `json:"invited_by"`
	InvitedAt  time.Time    `json:"invited_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
	AcceptedAt *time.Time   `json:"accepted_at,omitempty"`
	AcceptedBy *int64       `json:"accepted_by,omitempty"`
}

// CreateOrgRequest represents request to create an organization
type CreateOrgRequest struct {
	Name     string         `json:"name"`
	Settings map[string]any `json:"settings,omitempty"`
}

// UpdateOrgRequest represents request to update an organization
type UpdateOrgRequest struct {
	Name     *string        `json:"name,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// InviteMemberRequest represents request to invite a member
type InviteMemberRequest struct {
	Email string       `json:"email"`
	Role  auth.OrgRole `json:"role"`
}

// UpdateMemberRequest represents request to update a member's role
type UpdateMemberRequest struct {
	Role auth.OrgRole `json:"role"`
}

// Service defines the interface for organization management
type Service interface {
	// Organization CRUD
	CreateOrganization(org *Organization) error
	GetOrganization(id int64) (*Organization, error)
	GetOrganizationBySlug(slug string) (*Organization, error)
	ListOrganizations(userID int64) ([]*Organization, error)
	UpdateOrganization(id int64, updates *UpdateOrgRequest) error
	DeleteOrganization(id int64) error

	// Member management
	ListMembers(orgID int64) ([]*Member, error)
	GetMember(orgID, userID int64) (*Member, error)
	AddMember(orgID, userID int64, role auth.OrgRole, invitedBy *int64) error
	UpdateMemberRole(orgID, userID int64, role auth.OrgRole) error
	RemoveMember(orgID, userID int64) error

	// Invitation management
	CreateInvitation(invitation *Invitation) error
	GetInvitation(token string) (*Invitation, error)
	ListInvitations(orgID int64) ([]*Invitation, error)
	AcceptInvitation(token string, userID int64) error
	RevokeInvitation(id int64) error
	CleanupExpiredInvitations() error
}
