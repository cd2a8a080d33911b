package billing

import (
	"context"
	"time"
)

// QuoteStatus represents the lifecycle state of a quote
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRejected QuoteStatus = "rejected"
	// Expired is never set automatically; it is applied through the explicit
	// status mutation only.
	QuoteStatusExpired QuoteStatus = "expired"
)

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// quoteTransitions lists the allowed forward moves; there is no way back to
// draft once a quote is sent.
var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusDraft: {QuoteStatusSent},
	QuoteStatusSent:  {QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired},
}

// ValidQuoteTransition reports whether a quote may move from one status to
// another
func ValidQuoteTransition(from, to QuoteStatus) bool {
	for _, s := range quoteTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// LineItem is one billable line on a quote or invoice. Tax is a percentage
// and must be 0, 9, or 21.
type LineItem struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Quantity     float64 `json:"quantity"`
	PriceExclTax float64 `json:"price_excl_tax"`
	Tax          int     `json:"tax"`
}

// Quote is a sequential business document offered to a client
type Quote struct {
	ID             int64       `json:"id"`
	OrganizationID int64       `json:"organization_id"`
	ProjectID      *int64      `json:"project_id,omitempty"`
	Number         int64       `json:"number"`
	Code           string      `json:"code"`
	Status         QuoteStatus `json:"status"`
	Items          []LineItem  `json:"items"`
	Date           time.Time   `json:"date"`
	ValidUntil     time.Time   `json:"valid_until"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Invoice is a sequential business document billed to a client
type Invoice struct {
	ID             int64         `json:"id"`
	OrganizationID int64         `json:"organization_id"`
	ProjectID      *int64        `json:"project_id,omitempty"`
	QuoteID        *int64        `json:"quote_id,omitempty"`
	Number         int64         `json:"number"`
	Code           string        `json:"code"`
	Status         InvoiceStatus `json:"status"`
	Items          []LineItem    `json:"items"`
	Date           time.Time     `json:"date"`
	DueDate        time.Time     `json:"due_date"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// UpdateQuoteRequest carries the editable fields of a draft quote
type UpdateQuoteRequest struct {
	Items      []LineItem `json:"items"`
	Date       *time.Time `json:"date,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// UpdateInvoiceRequest carries the editable fields of a draft invoice
type UpdateInvoiceRequest struct {
	Items   []LineItem `json:"items"`
	Date    *time.Time `json:"date,omitempty"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// TaskQueue enqueues deferred work triggered by billing mutations
type TaskQueue interface {
	Enqueue(ctx context.Context, kind string, payload interface{}, runAfter time.Duration) (int64, error)
}

// AuditRecorder records billing status transitions; implementations are
// best effort
type AuditRecorder interface {
	RecordTransition(ctx context.Context, entity string, entityID int64, from, to string)
}

// Service defines the billing operations
type Service interface {
	// Quotes
	CreateQuote(ctx context.Context, quote *Quote) error
	GetQuote(id int64) (*Quote, error)
	ListQuotes(orgID int64) ([]*Quote, error)
	UpdateQuote(id int64, req *UpdateQuoteRequest) (*Quote, error)
	UpdateQuoteStatus(ctx context.Context, id int64, status QuoteStatus) (*Quote, error)
	SendQuote(ctx context.Context, id int64) error

	// Invoices
	CreateInvoice(ctx context.Context, invoice *Invoice) error
	GetInvoice(id int64) (*Invoice, error)
	ListInvoices(orgID int64) ([]*Invoice, error)
	UpdateInvoice(id int64, req *UpdateInvoiceRequest) (*Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) (*Invoice, error)
	SendInvoice(ctx context.Context, id int64) error
	AddInvoicesBasedOnQuote(ctx context.Context, quoteID int64, invoiceSplit []int) ([]*Invoice, error)

	// MarkSent flips status to sent after the deferred send pipeline has
	// rendered, stored, and mailed the document.
	MarkQuoteSent(id int64) error
	MarkInvoiceSent(id int64) error
}
