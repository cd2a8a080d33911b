package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateQuote creates a new draft quote with the next sequential number.
// The number and its display code are allocated in the insert statement
// itself; a unique constraint on the number column turns a concurrent
// allocation into a conflict, which is retried.
func (s *PostgresService) CreateQuote(ctx context.Context, quote *Quote) error {
	if err := validateItems(quote.Items); err != nil {
		return err
	}
	if quote.Date.IsZero() {
		quote.Date = time.Now()
	}
	if quote.ValidUntil.IsZero() {
		quote.ValidUntil = quote.Date.AddDate(0, 1, 0)
	}
	if err := validateDates(quote.Date, quote.ValidUntil, "valid until"); err != nil {
		return err
	}

	items, err := marshalItems(quote.Items)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO quotes (organization_id, project_id, number, code, status, quote_date, valid_until, items)
		SELECT $1, $2,
			COALESCE(MAX(number), 0) + 1,
			'Q-' || $3 || '-' || LPAD((COALESCE(MAX(number), 0) + 1)::text, 6, '0'),
			'draft', $4, $5, $6
		FROM quotes
		RETURNING id, number, code, created_at, updated_at
	`
	year := fmt.Sprintf("%d", quote.Date.Year())

	var lastErr error
	for attempt := 0; attempt < allocRetries; attempt++ {
		err := s.db.QueryRowContext(ctx, query,
			quote.OrganizationID, quote.ProjectID, year, quote.Date, quote.ValidUntil, items).
			Scan(&quote.ID, &quote.Number, &quote.Code, &quote.CreatedAt, &quote.UpdatedAt)
		if err == nil {
			quote.Status = QuoteStatusDraft
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("failed to create quote: %w", err)
		}
		lastErr = err
	}
	return fmt.Errorf("failed to allocate quote number: %w", lastErr)
}

// GetQuote retrieves a quote by ID
func (s *PostgresService) GetQuote(id int64) (*Quote, error) {
	query := `
		SELECT id, organization_id, project_id, number, code, status, quote_date, valid_until, items, created_at, updated_at
		FROM quotes WHERE id = $1
	`
	return scanQuote(s.db.QueryRow(query, id))
}

// ListQuotes lists all quotes of an organization, newest number first
func (s *PostgresService) ListQuotes(orgID int64) ([]*Quote, error) {
	query := `
		SELECT id, organization_id, project_id, number, code, status, quote_date, valid_until, items, created_at, updated_at
		FROM quotes WHERE organization_id = $1 ORDER BY number DESC
	`
	rows, err := s.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []*Quote
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

// UpdateQuote edits the line items and dates of a quote. Only draft quotes
// are editable.
func (s *PostgresService) UpdateQuote(id int64, req *UpdateQuoteRequest) (*Quote, error) {
	quote, err := s.GetQuote(id)
	if err != nil {
		return nil, err
	}
	if quote.Status != QuoteStatusDraft {
		return nil, fmt.Errorf("quote %s is not editable in status %s", quote.Code, quote.Status)
	}

	if req.Items != nil {
		if err := validateItems(req.Items); err != nil {
			return nil, err
		}
		quote.Items = req.Items
	}
	if req.Date != nil {
		quote.Date = *req.Date
	}
	if req.ValidUntil != nil {
		quote.ValidUntil = *req.ValidUntil
	}
	if err := validateDates(quote.Date, quote.ValidUntil, "valid until"); err != nil {
		return nil, err
	}

	items, err := marshalItems(quote.Items)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE quotes SET quote_date = $1, valid_until = $2, items = $3, updated_at = NOW()
		WHERE id = $4 AND status = 'draft'
		RETURNING updated_at
	`
	err = s.db.QueryRow(query, quote.Date, quote.ValidUntil, items, id).Scan(&quote.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("quote is no longer editable")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update quote: %w", err)
	}
	return quote, nil
}

// UpdateQuoteStatus moves a quote through its lifecycle. Transitions are
// one-directional; expired is only ever set here, never automatically.
func (s *PostgresService) UpdateQuoteStatus(ctx context.Context, id int64, status QuoteStatus) (*Quote, error) {
	quote, err := s.GetQuote(id)
	if err != nil {
		return nil, err
	}
	if !ValidQuoteTransition(quote.Status, status) {
		return nil, fmt.Errorf("cannot transition quote %s from %s to %s", quote.Code, quote.Status, status)
	}

	query := `UPDATE quotes SET status = $1, updated_at = NOW() WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, query, status, id); err != nil {
		return nil, fmt.Errorf("failed to update quote status: %w", err)
	}

	s.recordTransition(ctx, "quote", id, string(quote.Status), string(status))
	quote.Status = status
	return quote, nil
}

// SendQuote enqueues the deferred pipeline that renders the quote PDF,
// stores it, and mails it. Status flips to sent only after that pipeline
// succeeds; the quote stays draft if rendering fails.
func (s *PostgresService) SendQuote(ctx context.Context, id int64) error {
	quote, err := s.GetQuote(id)
	if err != nil {
		return err
	}
	if quote.Status != QuoteStatusDraft {
		return fmt.Errorf("quote %s has already been sent", quote.Code)
	}
	if s.queue == nil {
		return fmt.Errorf("task queue is not configured")
	}

	_, err = s.queue.Enqueue(ctx, TaskGeneratePDFAndUpload, &SendDocumentPayload{
		DocumentType: "quote",
		DocumentID:   id,
	}, 0)
	if err != nil {
		return fmt.Errorf("failed to enqueue quote send: %w", err)
	}
	return nil
}

// MarkQuoteSent flips a quote to sent; called by the send pipeline once
// the PDF is rendered, stored, and mailed.
func (s *PostgresService) MarkQuoteSent(id int64) error {
	result, err := s.db.Exec(`UPDATE quotes SET status = 'sent', updated_at = NOW() WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return fmt.Errorf("failed to mark quote sent: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("quote not found or not in draft")
	}
	s.recordTransition(context.Background(), "quote", id, string(QuoteStatusDraft), string(QuoteStatusSent))
	return nil
}

func scanQuote(row rowScanner) (*Quote, error) {
	quote := &Quote{}
	var projectID sql.NullInt64
	var items []byte
	err := row.Scan(&quote.ID, &quote.OrganizationID, &projectID, &quote.Number, &quote.Code,
		&quote.Status, &quote.Date, &quote.ValidUntil, &items, &quote.CreatedAt, &quote.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("quote not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan quote: %w", err)
	}
	if projectID.Valid {
		quote.ProjectID = &projectID.Int64
	}
	quote.Items, err = unmarshalItems(items)
	if err != nil {
		return nil, err
	}
	return quote, nil
}
