package projects

import "time"

// Project is a client website or application managed for an organization.
// Each project carries its own CMS key (used by the public content
// endpoints) and a listening-mode flag that lets the client site register
// pages and fields on the fly.
type Project struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	Domain         string    `json:"domain,omitempty"`
	CMSKey         string    `json:"cms_key,omitempty"`
	ListeningMode  bool      `json:"listening_mode"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UpdateProjectRequest carries a partial project update
type UpdateProjectRequest struct {
	Name          *string `json:"name,omitempty"`
	Domain        *string `json:"domain,omitempty"`
	ListeningMode *bool   `json:"listening_mode,omitempty"`
}

// FolderSeeder creates the standard file manager folders for a new project
type FolderSeeder interface {
	SeedProjectFolders(projectID int64) error
}

// Service defines project management operations
type Service interface {
	CreateProject(project *Project) error
	GetProject(id int64) (*Project, error)
	GetProjectByCMSKey(key string) (*Project, error)
	ListProjects(orgID int64) ([]*Project, error)
	ListAllProjects() ([]*Project, error)
	UpdateProject(id int64, updates *UpdateProjectRequest) error
	DeleteProject(id int64) error
	SetListeningMode(id int64, enabled bool) error
}
