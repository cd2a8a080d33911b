package files

import (
	"database/sql"
	"fmt"
)

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// CreateEntry inserts an entry after the live ancestor-walk permission check
func (s *PostgresService) CreateEntry(scope Scope, entry *Entry) error {
	entry.Name = normalizePath(entry.Name)
	if entry.Name == "" {
		return fmt.Errorf("entry name is required")
	}
	if !entry.ContentType.Valid() {
		return fmt.Errorf("invalid content type: %s", entry.ContentType)
	}

	records, err := s.ListEntries(scope)
	if err != nil {
		return err
	}
	if !permittedAt(records, entry.Name, ActionEdit, nil) {
		return ErrPermissionDenied
	}

	return s.insert(scope, entry)
}

// CreateSystemEntry inserts an entry without a permission check
func (s *PostgresService) CreateSystemEntry(scope Scope, entry *Entry) error {
	entry.Name = normalizePath(entry.Name)
	if entry.Name == "" {
		return fmt.Errorf("entry name is required")
	}
	return s.insert(scope, entry)
}

func (s *PostgresService) insert(scope Scope, entry *Entry) error {
	entry.ProjectID = scope.ProjectID
	entry.OrganizationID = scope.OrganizationID

	query := `
		INSERT INTO file_entries (project_id, organization_id, name, content_type, content,
		                          user_can_edit, user_can_delete, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query, entry.ProjectID, entry.OrganizationID, entry.Name,
		entry.ContentType, entry.Content, entry.UserCanEdit, entry.UserCanDelete, entry.CreatedBy).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return nil
}

// GetEntry retrieves a single entry by path
func (s *PostgresService) GetEntry(scope Scope, name string) (*Entry, error) {
	name = normalizePath(name)
	query := `
		SELECT id, project_id, organization_id, name, content_type, content,
		       user_can_edit, user_can_delete, created_by, created_at, updated_at
		FROM file_entries
		WHERE ` + scopeClause(scope, 2) + ` AND name = $1
	`
	entry, err := scanEntry(s.db.QueryRow(query, name, scopeArg(scope)))
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntries lists every entry in the scope
func (s *PostgresService) ListEntries(scope Scope) ([]*Entry, error) {
	query := `
		SELECT id, project_id, organization_id, name, content_type, content,
		       user_can_edit, user_can_delete, created_by, created_at, updated_at
		FROM file_entries
		WHERE ` + scopeClause(scope, 1) + `
		ORDER BY name ASC
	`
	rows, err := s.db.Query(query, scopeArg(scope))
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// UpdateEntry patches an entry's content and permission flags after the live
// permission check. Updating a folder's permission flag eagerly writes that
// flag onto every existing descendant; entries created afterwards rely on
// the ancestor walk alone.
func (s *PostgresService) UpdateEntry(scope Scope, name string, updates *UpdateEntryRequest) error {
	name = normalizePath(name)

	records, err := s.ListEntries(scope)
	if err != nil {
		return err
	}

	var target *Entry
	for _, r := range records {
		if r.Name == name {
			target = r
			break
		}
	}
	if target == nil {
		return fmt.Errorf("entry not found")
	}

	if !permittedAt(records, name, ActionEdit, target) {
		return ErrPermissionDenied
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	newCanEdit := target.UserCanEdit
	newCanDelete := target.UserCanDelete
	newContent := target.Content
	if updates.UserCanEdit != nil {
		newCanEdit = *updates.UserCanEdit
	}
	if updates.UserCanDelete != nil {
		newCanDelete = *updates.UserCanDelete
	}
	if updates.Content != nil {
		newContent = *updates.Content
	}

	query := `
		UPDATE file_entries
		SET content = $1, user_can_edit = $2, user_can_delete = $3, updated_at = NOW()
		WHERE id = $4
	`
	if _, err := tx.Exec(query, newContent, newCanEdit, newCanDelete, target.ID); err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}

	permissionsChanged := updates.UserCanEdit != nil || updates.UserCanDelete != nil
	if target.ContentType == ContentTypeFolder && permissionsChanged {
		// Only the submitted flag propagates; a descendant keeps its own
		// value for the other one.
		var set string
		var args []interface{}
		if updates.UserCanEdit != nil {
			args = append(args, *updates.UserCanEdit)
			set = fmt.Sprintf("user_can_edit = $%d", len(args))
		}
		if updates.UserCanDelete != nil {
			args = append(args, *updates.UserCanDelete)
			if set != "" {
				set += ", "
			}
			set += fmt.Sprintf("user_can_delete = $%d", len(args))
		}
		args = append(args, target.Name+"/%")
		likePos := len(args)
		args = append(args, scopeArg(scope))
		fanout := fmt.Sprintf(`
			UPDATE file_entries
			SET %s, updated_at = NOW()
			WHERE %s AND name LIKE $%d
		`, set, scopeClause(scope, len(args)), likePos)
		if _, err := tx.Exec(fanout, args...); err != nil {
			return fmt.Errorf("failed to propagate folder permissions: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteEntry removes an entry after the live permission check. Deleting a
// folder cascades to every descendant sharing the path prefix in the same
// operation.
func (s *PostgresService) DeleteEntry(scope Scope, name string) error {
	name = normalizePath(name)

	records, err := s.ListEntries(scope)
	if err != nil {
		return err
	}

	var target *Entry
	for _, r := range records {
		if r.Name == name {
			target = r
			break
		}
	}
	if target == nil {
		return fmt.Errorf("entry not found")
	}

	if !permittedAt(records, name, ActionDelete, target) {
		return ErrPermissionDenied
	}

	query := `
		DELETE FROM file_entries
		WHERE ` + scopeClause(scope, 3) + ` AND (name = $1 OR name LIKE $2)
	`
	result, err := s.db.Exec(query, target.Name, target.Name+"/%", scopeArg(scope))
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("entry not found")
	}

	return nil
}

// SeedProjectFolders creates the standard project folders. Permission flags
// start closed; the agency opens them per client as needed.
func (s *PostgresService) SeedProjectFolders(projectID int64) error {
	scope := ProjectScope(projectID)
	for _, name := range []string{"/public", "/quotes", "/invoices"} {
		entry := &Entry{
			Name:        name,
			ContentType: ContentTypeFolder,
		}
		if err := s.CreateSystemEntry(scope, entry); err != nil {
			return fmt.Errorf("failed to seed %s: %w", name, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	entry := &Entry{}
	var content sql.NullString
	err := row.Scan(
		&entry.ID, &entry.ProjectID, &entry.OrganizationID, &entry.Name,
		&entry.ContentType, &content, &entry.UserCanEdit, &entry.UserCanDelete,
		&entry.CreatedBy, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entry not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}
	if content.Valid {
		entry.Content = content.String
	}
	return entry, nil
}

// scopeClause builds the WHERE fragment selecting the scope's bucket. argPos
// is the placeholder index of the scope id argument.
func scopeClause(scope Scope, argPos int) string {
	if scope.ProjectID != nil {
		return fmt.Sprintf("project_id = $%d", argPos)
	}
	return fmt.Sprintf("organization_id = $%d", argPos)
}

func scopeArg(scope Scope) int64 {
	if scope.ProjectID != nil {
		return *scope.ProjectID
	}
	if scope.OrganizationID != nil {
		return *scope.OrganizationID
	}
	return 0
}
