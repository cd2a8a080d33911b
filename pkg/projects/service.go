package projects

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
)

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db     *sql.DB
	seeder FolderSeeder
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB, seeder FolderSeeder) *PostgresService {
	return &PostgresService{db: db, seeder: seeder}
}

// CreateProject creates a project, generates its CMS key and seeds the
// standard file manager folders (/public, /quotes, /invoices).
func (s *PostgresService) CreateProject(project *Project) error {
	if project.Name == "" {
		return fmt.Errorf("project name is required")
	}

	key, err := generateCMSKey()
	if err != nil {
		return fmt.Errorf("failed to generate cms key: %w", err)
	}
	project.CMSKey = key

	query := `
		INSERT INTO projects (organization_id, name, domain, cms_key, listening_mode)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRow(query, project.OrganizationID, project.Name, project.Domain,
		project.CMSKey, project.ListeningMode).
		Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	if s.seeder != nil {
		if err := s.seeder.SeedProjectFolders(project.ID); err != nil {
			return fmt.Errorf("failed to seed project folders: %w", err)
		}
	}

	return nil
}

// GetProject retrieves a project by ID
func (s *PostgresService) GetProject(id int64) (*Project, error) {
	query := `
		SELECT id, organization_id, name, domain, cms_key, listening_mode, created_at, updated_at
		FROM projects
		WHERE id = $1
	`
	return scanProject(s.db.QueryRow(query, id))
}

// GetProjectByCMSKey retrieves a project by its CMS key. Used by the public
// content endpoints.
func (s *PostgresService) GetProjectByCMSKey(key string) (*Project, error) {
	query := `
		SELECT id, organization_id, name, domain, cms_key, listening_mode, created_at, updated_at
		FROM projects
		WHERE cms_key = $1
	`
	return scanProject(s.db.QueryRow(query, key))
}

// ListProjects lists all projects of an organization
func (s *PostgresService) ListProjects(orgID int64) ([]*Project, error) {
	query := `
		SELECT id, organization_id, name, domain, cms_key, listening_mode, created_at, updated_at
		FROM projects
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}

	return projects, nil
}

// ListAllProjects lists projects across every organization. Reserved for
// platform admins.
func (s *PostgresService) ListAllProjects() ([]*Project, error) {
	query := `
		SELECT id, organization_id, name, domain, cms_key, listening_mode, created_at, updated_at
		FROM projects
		ORDER BY organization_id ASC, created_at ASC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}

	return projects, nil
}

// UpdateProject updates a project
func (s *PostgresService) UpdateProject(id int64, updates *UpdateProjectRequest) error {
	setClauses := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argPos := 1

	if updates.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *updates.Name)
		argPos++
	}
	if updates.Domain != nil {
		setClauses = append(setClauses, fmt.Sprintf("domain = $%d", argPos))
		args = append(args, *updates.Domain)
		argPos++
	}
	if updates.ListeningMode != nil {
		setClauses = append(setClauses, fmt.Sprintf("listening_mode = $%d", argPos))
		args = append(args, *updates.ListeningMode)
		argPos++
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE projects SET %s WHERE id = $%d",
		strings.Join(setClauses, ", "), argPos)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("project not found")
	}

	return nil
}

// DeleteProject deletes a project
func (s *PostgresService) DeleteProject(id int64) error {
	result, err := s.db.Exec(`DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("project not found")
	}

	return nil
}

// SetListeningMode toggles listening mode for a project
func (s *PostgresService) SetListeningMode(id int64, enabled bool) error {
	result, err := s.db.Exec(`UPDATE projects SET listening_mode = $1, updated_at = NOW() WHERE id = $2`, enabled, id)
	if err != nil {
		return fmt.Errorf("failed to set listening mode: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("project not found")
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*Project, error) {
	project := &Project{}
	var domain sql.NullString
	err := row.Scan(
		&project.ID, &project.OrganizationID, &project.Name, &domain,
		&project.CMSKey, &project.ListeningMode, &project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	if domain.Valid {
		project.Domain = domain.String
	}
	return project, nil
}

// generateCMSKey creates a random key identifying the project to the public
// content endpoints
func generateCMSKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
