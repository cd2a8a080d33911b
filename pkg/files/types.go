package files

import (
	"errors"
	"time"
)

// ErrPermissionDenied is returned when neither an ancestor folder nor the
// entry itself grants the attempted action.
var ErrPermissionDenied = errors.New("permission denied")

// ContentType classifies a file manager entry
type ContentType string

const (
	ContentTypeFile   ContentType = "file"
	ContentTypeURL    ContentType = "url"
	ContentTypeText   ContentType = "text"
	ContentTypeFolder ContentType = "folder"
)

// Valid reports whether the content type is one of the known kinds.
func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeFile, ContentTypeURL, ContentTypeText, ContentTypeFolder:
		return true
	}
	return false
}

// Action is a permissioned operation on an entry. Creation is governed by
// the edit flag.
type Action string

const (
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Entry is a file manager record. Name is a slash-delimited hierarchical
// path ("/public/images/logo.png"); a folder's name is a strict prefix of
// its children's names. An entry belongs to exactly one project or to the
// organization-wide bucket, never both.
type Entry struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	ContentType    ContentType `json:"content_type"`
	Content        string      `json:"content,omitempty"` // S3 key, URL, or inline text
	UserCanEdit    bool        `json:"user_can_edit"`
	UserCanDelete  bool        `json:"user_can_delete"`
	ProjectID      *int64      `json:"project_id,omitempty"`
	OrganizationID *int64      `json:"organization_id,omitempty"`
	CreatedBy      *int64      `json:"created_by,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Scope selects the bucket an entry lives in: a project or an organization
type Scope struct {
	ProjectID      *int64
	OrganizationID *int64
}

// ProjectScope returns a scope for a project bucket
func ProjectScope(projectID int64) Scope {
	return Scope{ProjectID: &projectID}
}

// OrgScope returns a scope for an organization-wide bucket
func OrgScope(orgID int64) Scope {
	return Scope{OrganizationID: &orgID}
}

// UpdateEntryRequest carries a partial entry update
type UpdateEntryRequest struct {
	Content       *string `json:"content,omitempty"`
	UserCanEdit   *bool   `json:"user_can_edit,omitempty"`
	UserCanDelete *bool   `json:"user_can_delete,omitempty"`
}

// Service defines the file manager operations
type Service interface {
	CreateEntry(scope Scope, entry *Entry) error
	GetEntry(scope Scope, name string) (*Entry, error)
	ListEntries(scope Scope) ([]*Entry, error)
	UpdateEntry(scope Scope, name string, updates *UpdateEntryRequest) error
	DeleteEntry(scope Scope, name string) error

	// SeedProjectFolders creates the standard folders for a new project.
	// System-level: bypasses the permission walk.
	SeedProjectFolders(projectID int64) error

	// CreateSystemEntry inserts an entry without a permission check. Used by
	// internal flows such as storing generated PDF documents.
	CreateSystemEntry(scope Scope, entry *Entry) error
}
