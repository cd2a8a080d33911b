package cms

import "time"

// Page groups the content fields of one page on a client site
type Page struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Field is a single content slot on a page. Key is unique per page;
// DefaultValue is the free-text fallback when no localized value exists.
type Field struct {
	ID           int64     `json:"id"`
	PageID       int64     `json:"page_id"`
	Key          string    `json:"key"`
	DefaultValue string    `json:"default_value"`
	CreatedAt    time.Time `json:"created_at"`
}

// Split is an A/B variant scoped to a project; it applies across all pages
type Split struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// FieldValue holds the localized values of one field, either the baseline
// (SplitID nil) or a sparse per-split diff. At most one row exists per
// (field, page, split) triple. A nil language value means "explicitly
// empty" as opposed to absent.
type FieldValue struct {
	ID      int64              `json:"id"`
	FieldID int64              `json:"field_id"`
	PageID  int64              `json:"page_id"`
	SplitID *int64             `json:"split_id,omitempty"`
	Values  map[string]*string `json:"values"`
}

// ResolvedField is the effective content of one field after layering a
// split's overrides over the defaults
type ResolvedField struct {
	FieldID      int64              `json:"field_id"`
	Key          string             `json:"key"`
	DefaultValue string             `json:"default_value"`
	Values       map[string]*string `json:"values"`
}

// RegisterFieldRequest describes one field in a page registration
type RegisterFieldRequest struct {
	Key          string `json:"key"`
	DefaultValue string `json:"default_value"`
}

// RegisterPageRequest is sent by a client site in listening mode
type RegisterPageRequest struct {
	Name   string                 `json:"name"`
	Slug   string                 `json:"slug"`
	Fields []RegisterFieldRequest `json:"fields"`
}

// Service defines the CMS operations
type Service interface {
	// Pages and fields
	CreatePage(page *Page) error
	GetPage(id int64) (*Page, error)
	GetPageBySlug(projectID int64, slug string) (*Page, error)
	ListPages(projectID int64) ([]*Page, error)
	DeletePage(id int64) error
	ListFields(pageID int64) ([]*Field, error)

	// RegisterPage creates or extends a page with its fields; used by client
	// sites in listening mode, keyed by the project CMS key.
	RegisterPage(projectID int64, req *RegisterPageRequest) (*Page, error)

	// Splits
	CreateSplit(split *Split) error
	ListSplits(projectID int64) ([]*Split, error)
	DeleteSplit(id int64) error

	// Content resolution
	ResolveFieldValues(pageID int64, splitID *int64) ([]*ResolvedField, error)
	SaveFieldValues(pageID int64, splitID *int64, values map[int64]map[string]*string) error

	// Languages
	ListLanguages(projectID int64) ([]string, error)
	SetLanguages(projectID int64, langs []string) error
}
