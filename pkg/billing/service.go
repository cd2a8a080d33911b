package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/sleads/portal/pkg/observability"
)

// Task kinds enqueued by billing mutations
const (
	TaskGeneratePDFAndUpload = "generate_pdf_and_upload"
	TaskInvoiceStatusEmail   = "invoice_status_email"
)

// SendDocumentPayload is the payload of a generate_pdf_and_upload task
type SendDocumentPayload struct {
	DocumentType string `json:"document_type"` // quote or invoice
	DocumentID   int64  `json:"document_id"`
}

// StatusEmailPayload is the payload of an invoice_status_email task
type StatusEmailPayload struct {
	InvoiceID int64  `json:"invoice_id"`
	Status    string `json:"status"`
}

// allocRetries bounds the unique-constraint retry loop of the number
// allocator. Conflicts only occur when two creations race, so a couple of
// attempts is plenty.
const allocRetries = 3

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db     *sql.DB
	queue  TaskQueue
	audit  AuditRecorder
	logger *observability.Logger
}

// NewPostgresService creates a new PostgresService. queue, audit, and
// logger may be nil.
func NewPostgresService(db *sql.DB, queue TaskQueue, audit AuditRecorder, logger *observability.Logger) *PostgresService {
	return &PostgresService{db: db, queue: queue, audit: audit, logger: logger}
}

var validTaxRates = map[int]bool{0: true, 9: true, 21: true}

func validateItems(items []LineItem) error {
	if len(items) == 0 {
		return fmt.Errorf("at least one line item is required")
	}
	for i, item := range items {
		if item.Name == "" {
			return fmt.Errorf("line item %d: name is required", i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("line item %d: quantity must be positive", i)
		}
		if item.PriceExclTax < 0 {
			return fmt.Errorf("line item %d: price must not be negative", i)
		}
		if !validTaxRates[item.Tax] {
			return fmt.Errorf("line item %d: tax rate must be 0, 9 or 21", i)
		}
	}
	return nil
}

// validateDates enforces date sanity on editable documents: the document
// date may not lie in the past, and the deadline may not precede it.
func validateDates(date, deadline time.Time, deadlineLabel string) error {
	today := time.Now().Truncate(24 * time.Hour)
	if date.Before(today) {
		return fmt.Errorf("date must not be in the past")
	}
	if deadline.Before(date) {
		return fmt.Errorf("%s must not be before the document date", deadlineLabel)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func marshalItems(items []LineItem) ([]byte, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal line items: %w", err)
	}
	return raw, nil
}

func unmarshalItems(raw []byte) ([]LineItem, error) {
	var items []LineItem
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal line items: %w", err)
		}
	}
	return items, nil
}

func (s *PostgresService) recordTransition(ctx context.Context, entity string, entityID int64, from, to string) {
	if s.audit != nil {
		s.audit.RecordTransition(ctx, entity, entityID, from, to)
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}
