package billing

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"
)

// CreateInvoice creates a new draft invoice with the next sequential
// number, using the same allocate-in-insert scheme as quotes.
func (s *PostgresService) CreateInvoice(ctx context.Context, invoice *Invoice) error {
	if err := validateItems(invoice.Items); err != nil {
		return err
	}
	if invoice.Date.IsZero() {
		invoice.Date = time.Now()
	}
	if invoice.DueDate.IsZero() {
		invoice.DueDate = invoice.Date.AddDate(0, 0, 30)
	}
	if err := validateDates(invoice.Date, invoice.DueDate, "due date"); err != nil {
		return err
	}

	items, err := marshalItems(invoice.Items)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO invoices (organization_id, project_id, quote_id, number, code, status, invoice_date, due_date, items)
		SELECT $1, $2, $3,
			COALESCE(MAX(number), 0) + 1,
			'I-' || $4 || '-' || LPAD((COALESCE(MAX(number), 0) + 1)::text, 6, '0'),
			'draft', $5, $6, $7
		FROM invoices
		RETURNING id, number, code, created_at, updated_at
	`
	year := fmt.Sprintf("%d", invoice.Date.Year())

	var lastErr error
	for attempt := 0; attempt < allocRetries; attempt++ {
		err := s.db.QueryRowContext(ctx, query,
			invoice.OrganizationID, invoice.ProjectID, invoice.QuoteID, year, invoice.Date, invoice.DueDate, items).
			Scan(&invoice.ID, &invoice.Number, &invoice.Code, &invoice.CreatedAt, &invoice.UpdatedAt)
		if err == nil {
			invoice.Status = InvoiceStatusDraft
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		lastErr = err
	}
	return fmt.Errorf("failed to allocate invoice number: %w", lastErr)
}

// GetInvoice retrieves an invoice by ID
func (s *PostgresService) GetInvoice(id int64) (*Invoice, error) {
	query := `
		SELECT id, organization_id, project_id, quote_id, number, code, status, invoice_date, due_date, items, created_at, updated_at
		FROM invoices WHERE id = $1
	`
	return scanInvoice(s.db.QueryRow(query, id))
}

// ListInvoices lists all invoices of an organization, newest number first
func (s *PostgresService) ListInvoices(orgID int64) ([]*Invoice, error) {
	query := `
		SELECT id, organization_id, project_id, quote_id, number, code, status, invoice_date, due_date, items, created_at, updated_at
		FROM invoices WHERE organization_id = $1 ORDER BY number DESC
	`
	rows, err := s.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, nil
}

// UpdateInvoice edits the line items and dates of an invoice. Only draft
// invoices are editable.
func (s *PostgresService) UpdateInvoice(id int64, req *UpdateInvoiceRequest) (*Invoice, error) {
	invoice, err := s.GetInvoice(id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != InvoiceStatusDraft {
		return nil, fmt.Errorf("invoice %s is not editable in status %s", invoice.Code, invoice.Status)
	}

	if req.Items != nil {
		if err := validateItems(req.Items); err != nil {
			return nil, err
		}
		invoice.Items = req.Items
	}
	if req.Date != nil {
		invoice.Date = *req.Date
	}
	if req.DueDate != nil {
		invoice.DueDate = *req.DueDate
	}
	if err := validateDates(invoice.Date, invoice.DueDate, "due date"); err != nil {
		return nil, err
	}

	items, err := marshalItems(invoice.Items)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE invoices SET invoice_date = $1, due_date = $2, items = $3, updated_at = NOW()
		WHERE id = $4 AND status = 'draft'
		RETURNING updated_at
	`
	err = s.db.QueryRow(query, invoice.Date, invoice.DueDate, items, id).Scan(&invoice.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invoice is no longer editable")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}
	return invoice, nil
}

// UpdateInvoiceStatus sets an invoice to paid, overdue, or cancelled. The
// status patch always succeeds; the notification email is enqueued best
// effort and its failure is logged, not surfaced. A direct draft to paid
// move through this mutation is allowed on purpose: invoices settled
// outside the portal never pass through sent.
func (s *PostgresService) UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) (*Invoice, error) {
	switch status {
	case InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
	default:
		return nil, fmt.Errorf("status %s cannot be set directly", status)
	}

	invoice, err := s.GetInvoice(id)
	if err != nil {
		return nil, err
	}

	query := `UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, query, status, id); err != nil {
		return nil, fmt.Errorf("failed to update invoice status: %w", err)
	}

	s.recordTransition(ctx, "invoice", id, string(invoice.Status), string(status))
	invoice.Status = status

	if s.queue != nil {
		_, err := s.queue.Enqueue(ctx, TaskInvoiceStatusEmail, &StatusEmailPayload{
			InvoiceID: id,
			Status:    string(status),
		}, 0)
		if err != nil && s.logger != nil {
			s.logger.WithError(err).WithField("invoice_id", id).Warn("failed to enqueue invoice status email")
		}
	}

	return invoice, nil
}

// SendInvoice enqueues the deferred pipeline that renders the invoice PDF,
// stores it, and mails it; the counterpart of SendQuote.
func (s *PostgresService) SendInvoice(ctx context.Context, id int64) error {
	invoice, err := s.GetInvoice(id)
	if err != nil {
		return err
	}
	if invoice.Status != InvoiceStatusDraft {
		return fmt.Errorf("invoice %s has already been sent", invoice.Code)
	}
	if s.queue == nil {
		return fmt.Errorf("task queue is not configured")
	}

	_, err = s.queue.Enqueue(ctx, TaskGeneratePDFAndUpload, &SendDocumentPayload{
		DocumentType: "invoice",
		DocumentID:   id,
	}, 0)
	if err != nil {
		return fmt.Errorf("failed to enqueue invoice send: %w", err)
	}
	return nil
}

// MarkInvoiceSent flips an invoice to sent after the send pipeline succeeds
func (s *PostgresService) MarkInvoiceSent(id int64) error {
	result, err := s.db.Exec(`UPDATE invoices SET status = 'sent', updated_at = NOW() WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return fmt.Errorf("failed to mark invoice sent: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("invoice not found or not in draft")
	}
	s.recordTransition(context.Background(), "invoice", id, string(InvoiceStatusDraft), string(InvoiceStatusSent))
	return nil
}

// AddInvoicesBasedOnQuote creates one draft invoice per split percentage
// from an accepted quote's line items. The split must sum to exactly 100;
// item quantities are scaled per percentage, truncating fractions.
func (s *PostgresService) AddInvoicesBasedOnQuote(ctx context.Context, quoteID int64, invoiceSplit []int) ([]*Invoice, error) {
	if len(invoiceSplit) == 0 {
		return nil, fmt.Errorf("invoice split is required")
	}
	sum := 0
	for _, pct := range invoiceSplit {
		if pct <= 0 {
			return nil, fmt.Errorf("invoice split percentages must be positive")
		}
		sum += pct
	}
	if sum != 100 {
		return nil, fmt.Errorf("invoice split must sum to 100, got %d", sum)
	}

	quote, err := s.GetQuote(quoteID)
	if err != nil {
		return nil, err
	}

	invoices := make([]*Invoice, 0, len(invoiceSplit))
	for _, pct := range invoiceSplit {
		items := make([]LineItem, len(quote.Items))
		for i, item := range quote.Items {
			scaled := item
			scaled.Quantity = math.Floor(item.Quantity * float64(pct) / 100)
			items[i] = scaled
		}

		invoice := &Invoice{
			OrganizationID: quote.OrganizationID,
			ProjectID:      quote.ProjectID,
			QuoteID:        &quote.ID,
			Items:          items,
		}
		if err := s.CreateInvoice(ctx, invoice); err != nil {
			return nil, fmt.Errorf("failed to create invoice for %d%% split: %w", pct, err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, nil
}

func scanInvoice(row rowScanner) (*Invoice, error) {
	invoice := &Invoice{}
	var projectID, quoteID sql.NullInt64
	var items []byte
	err := row.Scan(&invoice.ID, &invoice.OrganizationID, &projectID, &quoteID, &invoice.Number, &invoice.Code,
		&invoice.Status, &invoice.Date, &invoice.DueDate, &items, &invoice.CreatedAt, &invoice.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invoice not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}
	if projectID.Valid {
		invoice.ProjectID = &projectID.Int64
	}
	if quoteID.Valid {
		invoice.QuoteID = &quoteID.Int64
	}
	invoice.Items, err = unmarshalItems(items)
	if err != nil {
		return nil, err
	}
	return invoice, nil
}
