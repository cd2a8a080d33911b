package dynamic

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Object is one row of a dynamic table, a schemaless JSON document
type Object struct {
	ID        int64                  `json:"id"`
	Table     string                 `json:"table"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// TableSchema describes one dynamic table: its name, row count, and the
// fields observed on its most recent object.
type TableSchema struct {
	Name   string   `json:"name"`
	Count  int64    `json:"count"`
	Fields []string `json:"fields"`
}

// Page is one page of a paginated table read
type Page struct {
	Items      []*Object `json:"items"`
	NextCursor int64     `json:"next_cursor"`
	HasMore    bool      `json:"has_more"`
}

// Service defines the dynamic object operations
type Service interface {
	GetSchema() ([]*TableSchema, error)
	ListObjects(table string, cursor int64, numItems int) (*Page, error)
	GetObject(id int64) (*Object, error)
	CreateObject(table string, data map[string]interface{}) (*Object, error)
	UpdateObject(id int64, data map[string]interface{}) (*Object, error)
	DeleteObject(id int64) error
}

const defaultPageSize = 50

// PostgresService implements the Service interface over a single jsonb
// objects table partitioned by table name.
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// GetSchema dumps every dynamic table with its row count and the field
// names of its newest object.
func (s *PostgresService) GetSchema() ([]*TableSchema, error) {
	query := `SELECT table_name, COUNT(*) FROM dynamic_objects GROUP BY table_name ORDER BY table_name ASC`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	defer rows.Close()

	var tables []*TableSchema
	for rows.Next() {
		table := &TableSchema{}
		if err := rows.Scan(&table.Name, &table.Count); err != nil {
			return nil, fmt.Errorf("failed to scan schema row: %w", err)
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	for _, table := range tables {
		fields, err := s.latestFields(table.Name)
		if err != nil {
			return nil, err
		}
		table.Fields = fields
	}
	return tables, nil
}

func (s *PostgresService) latestFields(table string) ([]string, error) {
	var raw []byte
	err := s.db.QueryRow(`SELECT data FROM dynamic_objects WHERE table_name = $1 ORDER BY id DESC LIMIT 1`, table).
		Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to sample table %s: %w", table, err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal object data: %w", err)
	}

	fields := make([]string, 0, len(data))
	for k := range data {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields, nil
}

// ListObjects returns a page of objects from a table, keyed by an id
// cursor. The next cursor is the last returned id; HasMore signals whether
// another page exists.
func (s *PostgresService) ListObjects(table string, cursor int64, numItems int) (*Page, error) {
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if numItems <= 0 || numItems > 500 {
		numItems = defaultPageSize
	}

	query := `
		SELECT id, table_name, data, created_at, updated_at
		FROM dynamic_objects
		WHERE table_name = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`
	// Fetch one extra row to detect a following page
	rows, err := s.db.Query(query, table, cursor, numItems+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer rows.Close()

	var items []*Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	page := &Page{Items: items}
	if len(items) > numItems {
		page.Items = items[:numItems]
		page.HasMore = true
	}
	if len(page.Items) > 0 {
		page.NextCursor = page.Items[len(page.Items)-1].ID
	} else {
		page.NextCursor = cursor
	}
	return page, nil
}

// GetObject retrieves an object by ID
func (s *PostgresService) GetObject(id int64) (*Object, error) {
	query := `SELECT id, table_name, data, created_at, updated_at FROM dynamic_objects WHERE id = $1`
	obj, err := scanObject(s.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// CreateObject inserts a new object into a table
func (s *PostgresService) CreateObject(table string, data map[string]interface{}) (*Object, error) {
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal object data: %w", err)
	}

	obj := &Object{Table: table, Data: data}
	query := `
		INSERT INTO dynamic_objects (table_name, data)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRow(query, table, raw).Scan(&obj.ID, &obj.CreatedAt, &obj.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create object: %w", err)
	}
	return obj, nil
}

// UpdateObject replaces an object's data wholesale
func (s *PostgresService) UpdateObject(id int64, data map[string]interface{}) (*Object, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal object data: %w", err)
	}

	query := `
		UPDATE dynamic_objects SET data = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, table_name, data, created_at, updated_at
	`
	obj, err := scanObject(s.db.QueryRow(query, raw, id))
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// DeleteObject deletes an object by ID
func (s *PostgresService) DeleteObject(id int64) error {
	result, err := s.db.Exec(`DELETE FROM dynamic_objects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("object not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanObject(row rowScanner) (*Object, error) {
	obj := &Object{}
	var raw []byte
	err := row.Scan(&obj.ID, &obj.Table, &raw, &obj.CreatedAt, &obj.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("object not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan object: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &obj.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal object data: %w", err)
		}
	}
	return obj, nil
}
