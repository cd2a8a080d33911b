package orgs

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// CreateOrganization creates a new organization
func (s *PostgresService) CreateOrganization(org *Organization) error {
	if org.Slug == "" {
		org.Slug = generateSlug(org.Name)
	}
	if org.Status == "" {
		org.Status = OrgStatusActive
	}

	settingsJSON, err := json.Marshal(org.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := `
		INSERT INTO organizations (name, slug, owner_id, status, settings)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRow(query, org.Name, org.Slug, org.OwnerID, org.Status, settingsJSON).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

// GetOrganization retrieves an organization by ID
func (s *PostgresService) GetOrganization(id int64) (*Organization, error) {
	query := `
		SELECT id, name, slug, owner_id, status, settings, created_at, updated_at
		FROM organizations
		WHERE id = $1 AND status <> 'deleted'
	`
	return s.scanOrganization(s.db.QueryRow(query, id))
}

// GetOrganizationBySlug retrieves an organization by slug
func (s *PostgresService) GetOrganizationBySlug(slug string) (*Organization, error) {
	query := `
		SELECT id, name, slug, owner_id, status, settings, created_at, updated_at
		FROM organizations
		WHERE slug = $1 AND status <> 'deleted'
	`
	return s.scanOrganization(s.db.QueryRow(query, slug))
}

// ListOrganizations lists organizations the user is a member of
func (s *PostgresService) ListOrganizations(userID int64) ([]*Organization, error) {
	query := `
		SELECT o.id, o.name, o.slug, o.owner_id, o.status, o.settings, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = $1 AND o.status <> 'deleted'
		ORDER BY o.created_at ASC
	`
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var result []*Organization
	for rows.Next() {
		org, err := s.scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, org)
	}

	return result, nil
}

// UpdateOrganization updates an organization
func (s *PostgresService) UpdateOrganization(id int64, updates *UpdateOrgRequest) error {
	setClauses := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argPos := 1

	if updates.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *updates.Name)
		argPos++
	}
	if updates.Settings != nil {
		settingsJSON, err := json.Marshal(updates.Settings)
		if err != nil {
			return fmt.Errorf("failed to marshal settings: %w", err)
		}
		setClauses = append(setClauses, fmt.Sprintf("settings = $%d", argPos))
		args = append(args, settingsJSON)
		argPos++
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE organizations SET %s WHERE id = $%d AND status <> 'deleted'",
		strings.Join(setClauses, ", "), argPos)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("organization not found")
	}

	return nil
}

// DeleteOrganization soft-deletes an organization
func (s *PostgresService) DeleteOrganization(id int64) error {
	query := `UPDATE organizations SET status = 'deleted', updated_at = NOW() WHERE id = $1 AND status <> 'deleted'`
	result, err := s.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("organization not found")
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresService) scanOrganization(row rowScanner) (*Organization, error) {
	org := &Organization{}
	var settingsJSON []byte
	err := row.Scan(
		&org.ID, &org.Name, &org.Slug, &org.OwnerID, &org.Status,
		&settingsJSON, &org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("organization not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &org.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}

	return org, nil
}

// generateSlug derives a URL-safe slug from an organization name
func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "org"
	}
	return slug
}

// generateToken creates a random invitation token
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// BillingRecipient resolves the address billing documents are mailed to:
// the billing_email organization setting when present, otherwise the email
// of the organization owner.
func (s *PostgresService) BillingRecipient(orgID int64) (string, string, error) {
	org, err := s.GetOrganization(orgID)
	if err != nil {
		return "", "", err
	}

	if v, ok := org.Settings["billing_email"]; ok {
		if email, ok := v.(string); ok && email != "" {
			return email, org.Name, nil
		}
	}

	query := `
		SELECT email, COALESCE(full_name, '')
		FROM org_members_view
		WHERE organization_id = $1 AND role = 'owner'
		ORDER BY joined_at ASC
		LIMIT 1
	`
	var email, fullName string
	err = s.db.QueryRow(query, orgID).Scan(&email, &fullName)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("organization has no billing recipient")
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve billing recipient: %w", err)
	}
	if fullName == "" {
		fullName = org.Name
	}
	return email, fullName, nil
}
