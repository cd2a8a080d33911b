package cms

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresService implements the Service interface using PostgreSQL with an
// optional two-tier cache in front of content resolution.
type PostgresService struct {
	db    *sql.DB
	cache *Cache
}

// NewPostgresService creates a new PostgresService. cache may be nil.
func NewPostgresService(db *sql.DB, cache *Cache) *PostgresService {
	return &PostgresService{db: db, cache: cache}
}

// CreatePage creates a new page
func (s *PostgresService) CreatePage(page *Page) error {
	query := `
		INSERT INTO cms_pages (project_id, name, slug)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query, page.ProjectID, page.Name, page.Slug).
		Scan(&page.ID, &page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	return nil
}

// GetPage retrieves a page by ID
func (s *PostgresService) GetPage(id int64) (*Page, error) {
	query := `SELECT id, project_id, name, slug, created_at, updated_at FROM cms_pages WHERE id = $1`
	return scanPage(s.db.QueryRow(query, id))
}

// GetPageBySlug retrieves a page by project and slug
func (s *PostgresService) GetPageBySlug(projectID int64, slug string) (*Page, error) {
	query := `SELECT id, project_id, name, slug, created_at, updated_at FROM cms_pages WHERE project_id = $1 AND slug = $2`
	return scanPage(s.db.QueryRow(query, projectID, slug))
}

// ListPages lists all pages of a project
func (s *PostgresService) ListPages(projectID int64) ([]*Page, error) {
	query := `SELECT id, project_id, name, slug, created_at, updated_at FROM cms_pages WHERE project_id = $1 ORDER BY slug ASC`
	rows, err := s.db.Query(query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// DeletePage deletes a page and its fields and values
func (s *PostgresService) DeletePage(id int64) error {
	page, err := s.GetPage(id)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(`DELETE FROM cms_pages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete page: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("page not found")
	}

	s.invalidateProject(page.ProjectID)
	return nil
}

// ListFields lists all fields of a page
func (s *PostgresService) ListFields(pageID int64) ([]*Field, error) {
	query := `SELECT id, page_id, key, default_value, created_at FROM cms_fields WHERE page_id = $1 ORDER BY id ASC`
	rows, err := s.db.Query(query, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	defer rows.Close()

	var fields []*Field
	for rows.Next() {
		field := &Field{}
		if err := rows.Scan(&field.ID, &field.PageID, &field.Key, &field.DefaultValue, &field.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// RegisterPage creates the page if it does not exist and inserts any fields
// not yet present. Existing fields keep their default value; registration
// never overwrites content.
func (s *PostgresService) RegisterPage(projectID int64, req *RegisterPageRequest) (*Page, error) {
	if req.Slug == "" {
		return nil, fmt.Errorf("page slug is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	page := &Page{}
	query := `
		INSERT INTO cms_pages (project_id, name, slug)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, slug) DO UPDATE SET updated_at = NOW()
		RETURNING id, project_id, name, slug, created_at, updated_at
	`
	err = tx.QueryRow(query, projectID, req.Name, req.Slug).
		Scan(&page.ID, &page.ProjectID, &page.Name, &page.Slug, &page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to register page: %w", err)
	}

	for _, f := range req.Fields {
		if f.Key == "" {
			continue
		}
		query := `
			INSERT INTO cms_fields (page_id, key, default_value)
			VALUES ($1, $2, $3)
			ON CONFLICT (page_id, key) DO NOTHING
		`
		if _, err := tx.Exec(query, page.ID, f.Key, f.DefaultValue); err != nil {
			return nil, fmt.Errorf("failed to register field %s: %w", f.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	s.invalidateProject(projectID)
	return page, nil
}

// CreateSplit creates a new A/B variant for a project
func (s *PostgresService) CreateSplit(split *Split) error {
	query := `
		INSERT INTO cms_splits (project_id, name)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(query, split.ProjectID, split.Name).Scan(&split.ID, &split.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create split: %w", err)
	}
	return nil
}

// ListSplits lists all splits of a project
func (s *PostgresService) ListSplits(projectID int64) ([]*Split, error) {
	query := `SELECT id, project_id, name, created_at FROM cms_splits WHERE project_id = $1 ORDER BY name ASC`
	rows, err := s.db.Query(query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer rows.Close()

	var splits []*Split
	for rows.Next() {
		split := &Split{}
		if err := rows.Scan(&split.ID, &split.ProjectID, &split.Name, &split.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, split)
	}
	return splits, nil
}

// DeleteSplit deletes a split and its override rows
func (s *PostgresService) DeleteSplit(id int64) error {
	var projectID int64
	err := s.db.QueryRow(`SELECT project_id FROM cms_splits WHERE id = $1`, id).Scan(&projectID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("split not found")
	}
	if err != nil {
		return fmt.Errorf("failed to get split: %w", err)
	}

	if _, err := s.db.Exec(`DELETE FROM cms_splits WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete split: %w", err)
	}

	s.invalidateProject(projectID)
	return nil
}

// ResolveFieldValues produces the effective content of every field on a
// page: the defaults, with the requested split's sparse overrides layered
// on top per field and language.
func (s *PostgresService) ResolveFieldValues(pageID int64, splitID *int64) ([]*ResolvedField, error) {
	page, err := s.GetPage(pageID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if resolved, ok := s.cache.Get(context.Background(), page.ProjectID, pageID, splitID); ok {
			return resolved, nil
		}
	}

	fields, err := s.ListFields(pageID)
	if err != nil {
		return nil, err
	}

	defaults, err := s.loadValueRows(pageID, nil)
	if err != nil {
		return nil, err
	}

	overrides := map[int64]map[string]*string{}
	if splitID != nil {
		overrides, err = s.loadValueRows(pageID, splitID)
		if err != nil {
			return nil, err
		}
	}

	resolved := make([]*ResolvedField, 0, len(fields))
	for _, f := range fields {
		resolved = append(resolved, &ResolvedField{
			FieldID:      f.ID,
			Key:          f.Key,
			DefaultValue: f.DefaultValue,
			Values:       mergeValues(defaults[f.ID], overrides[f.ID]),
		})
	}

	if s.cache != nil {
		s.cache.Set(context.Background(), page.ProjectID, pageID, splitID, resolved)
	}

	return resolved, nil
}

// SaveFieldValues persists submitted language values for the given fields.
// Default rows (splitID nil) are replaced wholesale. Split rows are stored
// as sparse diffs against the defaults: a row that collapses to no
// differing languages is deleted rather than written.
func (s *PostgresService) SaveFieldValues(pageID int64, splitID *int64, values map[int64]map[string]*string) error {
	page, err := s.GetPage(pageID)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if splitID == nil {
		for fieldID, submitted := range values {
			if err := upsertValueRow(tx, fieldID, pageID, nil, submitted); err != nil {
				return err
			}
		}
	} else {
		defaults, err := s.loadValueRows(pageID, nil)
		if err != nil {
			return err
		}
		existing, err := s.loadValueRows(pageID, splitID)
		if err != nil {
			return err
		}

		for fieldID, submitted := range values {
			diff := diffAgainstDefault(existing[fieldID], submitted, defaults[fieldID])
			_, hasRow := existing[fieldID]

			switch {
			case len(diff) == 0 && hasRow:
				query := `DELETE FROM cms_field_values WHERE field_id = $1 AND page_id = $2 AND split_id = $3`
				if _, err := tx.Exec(query, fieldID, pageID, *splitID); err != nil {
					return fmt.Errorf("failed to delete collapsed split row: %w", err)
				}
			case len(diff) == 0:
				// Nothing differs and no row exists: no write
			default:
				if err := upsertValueRow(tx, fieldID, pageID, splitID, diff); err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.invalidateProject(page.ProjectID)
	return nil
}

// ListLanguages returns the language codes configured for a project
func (s *PostgresService) ListLanguages(projectID int64) ([]string, error) {
	query := `SELECT lang_code FROM project_languages WHERE project_id = $1 ORDER BY position ASC`
	rows, err := s.db.Query(query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list languages: %w", err)
	}
	defer rows.Close()

	var langs []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, fmt.Errorf("failed to scan language: %w", err)
		}
		langs = append(langs, lang)
	}
	return langs, nil
}

// SetLanguages replaces the language list of a project
func (s *PostgresService) SetLanguages(projectID int64, langs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM project_languages WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to clear languages: %w", err)
	}

	for i, lang := range langs {
		if _, err := tx.Exec(`INSERT INTO project_languages (project_id, lang_code, position) VALUES ($1, $2, $3)`,
			projectID, lang, i); err != nil {
			return fmt.Errorf("failed to insert language %s: %w", lang, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.invalidateProject(projectID)
	return nil
}

// loadValueRows returns the value maps of a page keyed by field id, for the
// default rows (splitID nil) or a specific split.
func (s *PostgresService) loadValueRows(pageID int64, splitID *int64) (map[int64]map[string]*string, error) {
	var rows *sql.Rows
	var err error
	if splitID == nil {
		rows, err = s.db.Query(`SELECT field_id, value FROM cms_field_values WHERE page_id = $1 AND split_id IS NULL`, pageID)
	} else {
		rows, err = s.db.Query(`SELECT field_id, value FROM cms_field_values WHERE page_id = $1 AND split_id = $2`, pageID, *splitID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load field values: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]map[string]*string)
	for rows.Next() {
		var fieldID int64
		var raw []byte
		if err := rows.Scan(&fieldID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan field value: %w", err)
		}
		value := make(map[string]*string)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &value); err != nil {
				return nil, fmt.Errorf("failed to unmarshal field value: %w", err)
			}
		}
		result[fieldID] = value
	}
	return result, nil
}

func upsertValueRow(tx *sql.Tx, fieldID, pageID int64, splitID *int64, value map[string]*string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal field value: %w", err)
	}

	if splitID == nil {
		query := `
			INSERT INTO cms_field_values (field_id, page_id, split_id, value)
			VALUES ($1, $2, NULL, $3)
			ON CONFLICT (field_id, page_id) WHERE split_id IS NULL
			DO UPDATE SET value = EXCLUDED.value
		`
		if _, err := tx.Exec(query, fieldID, pageID, raw); err != nil {
			return fmt.Errorf("failed to upsert default row: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO cms_field_values (field_id, page_id, split_id, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (field_id, page_id, split_id)
		DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := tx.Exec(query, fieldID, pageID, *splitID, raw); err != nil {
		return fmt.Errorf("failed to upsert split row: %w", err)
	}
	return nil
}

func (s *PostgresService) invalidateProject(projectID int64) {
	if s.cache != nil {
		s.cache.InvalidateProject(context.Background(), projectID)
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPage(row rowScanner) (*Page, error) {
	page := &Page{}
	err := row.Scan(&page.ID, &page.ProjectID, &page.Name, &page.Slug, &page.CreatedAt, &page.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("page not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan page: %w", err)
	}
	return page, nil
}
