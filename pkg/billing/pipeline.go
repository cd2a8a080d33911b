package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sleads/portal/pkg/email"
	"github.com/sleads/portal/pkg/files"
	"github.com/sleads/portal/pkg/observability"
	"github.com/sleads/portal/pkg/pdf"
	"github.com/sleads/portal/pkg/tasks"
)

// RecipientLookup resolves the address billing documents are mailed to
type RecipientLookup interface {
	BillingRecipient(orgID int64) (address string, name string, err error)
}

// SendPipeline implements the deferred side effects of sending and
// settling billing documents: render the PDF, upload it, store the file
// pointer, mail it, and only then flip the document to sent.
type SendPipeline struct {
	billing    *PostgresService
	renderer   pdf.Renderer
	uploader   pdf.Uploader
	files      files.Service
	sender     email.Sender
	recipients RecipientLookup
	logger     *observability.Logger
}

// NewSendPipeline wires the send pipeline
func NewSendPipeline(billing *PostgresService, renderer pdf.Renderer, uploader pdf.Uploader,
	fileStore files.Service, sender email.Sender, recipients RecipientLookup,
	logger *observability.Logger) *SendPipeline {
	return &SendPipeline{
		billing:    billing,
		renderer:   renderer,
		uploader:   uploader,
		files:      fileStore,
		sender:     sender,
		recipients: recipients,
		logger:     logger,
	}
}

// Register binds the pipeline's handlers to the worker
func (p *SendPipeline) Register(worker *tasks.Worker) {
	worker.Register(TaskGeneratePDFAndUpload, p.HandleGeneratePDFAndUpload)
	worker.Register(TaskInvoiceStatusEmail, p.HandleInvoiceStatusEmail)
}

// HandleGeneratePDFAndUpload runs the full send pipeline for one document.
// Any failure propagates so the task layer retries it; the document status
// is only patched after everything else succeeded.
func (p *SendPipeline) HandleGeneratePDFAndUpload(ctx context.Context, raw json.RawMessage) error {
	var payload SendDocumentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal send payload: %w", err)
	}

	switch payload.DocumentType {
	case "quote":
		return p.sendQuote(ctx, payload.DocumentID)
	case "invoice":
		return p.sendInvoice(ctx, payload.DocumentID)
	default:
		return fmt.Errorf("unknown document type %q", payload.DocumentType)
	}
}

func (p *SendPipeline) sendQuote(ctx context.Context, id int64) error {
	quote, err := p.billing.GetQuote(id)
	if err != nil {
		return err
	}

	pdfBytes, err := p.renderer.Render(ctx, "quote", quote)
	if err != nil {
		return fmt.Errorf("failed to render quote %s: %w", quote.Code, err)
	}

	key, err := p.uploader.Upload(ctx, fmt.Sprintf("documents/quotes/%s.pdf", quote.Code), pdfBytes)
	if err != nil {
		return err
	}

	if err := p.storePointer(quote.OrganizationID, quote.ProjectID, "/quotes", quote.Code, key); err != nil {
		return err
	}

	if err := p.mailDocument(ctx, quote.OrganizationID,
		fmt.Sprintf("Quote %s", quote.Code),
		fmt.Sprintf("<p>Please find quote %s attached.</p>", quote.Code),
		quote.Code, pdfBytes); err != nil {
		return err
	}

	return p.billing.MarkQuoteSent(id)
}

func (p *SendPipeline) sendInvoice(ctx context.Context, id int64) error {
	invoice, err := p.billing.GetInvoice(id)
	if err != nil {
		return err
	}

	pdfBytes, err := p.renderer.Render(ctx, "invoice", invoice)
	if err != nil {
		return fmt.Errorf("failed to render invoice %s: %w", invoice.Code, err)
	}

	key, err := p.uploader.Upload(ctx, fmt.Sprintf("documents/invoices/%s.pdf", invoice.Code), pdfBytes)
	if err != nil {
		return err
	}

	if err := p.storePointer(invoice.OrganizationID, invoice.ProjectID, "/invoices", invoice.Code, key); err != nil {
		return err
	}

	if err := p.mailDocument(ctx, invoice.OrganizationID,
		fmt.Sprintf("Invoice %s", invoice.Code),
		fmt.Sprintf("<p>Please find invoice %s attached.</p>", invoice.Code),
		invoice.Code, pdfBytes); err != nil {
		return err
	}

	return p.billing.MarkInvoiceSent(id)
}

// storePointer records the uploaded PDF in the file manager. Documents of
// a project land in its seeded folder; organization-level documents go to
// the organization bucket.
func (p *SendPipeline) storePointer(orgID int64, projectID *int64, folder, code, key string) error {
	scope := files.OrgScope(orgID)
	if projectID != nil {
		scope = files.ProjectScope(*projectID)
	}

	entry := &files.Entry{
		Name:        fmt.Sprintf("%s/%s.pdf", folder, code),
		ContentType: files.ContentTypeFile,
		Content:     key,
	}
	if err := p.files.CreateSystemEntry(scope, entry); err != nil {
		return fmt.Errorf("failed to store document pointer: %w", err)
	}
	return nil
}

func (p *SendPipeline) mailDocument(ctx context.Context, orgID int64, subject, body, code string, pdfBytes []byte) error {
	address, name, err := p.recipients.BillingRecipient(orgID)
	if err != nil {
		return err
	}

	err = p.sender.Send(ctx, &email.Message{
		To:       address,
		ToName:   name,
		Subject:  subject,
		HTMLBody: body,
		Attachments: []email.Attachment{
			{Name: code + ".pdf", Content: pdfBytes},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mail document %s: %w", code, err)
	}
	return nil
}

// HandleInvoiceStatusEmail sends the notification for a settled invoice.
// Best effort: failures are logged and the task completes, matching the
// always-succeeds contract of the status mutation.
func (p *SendPipeline) HandleInvoiceStatusEmail(ctx context.Context, raw json.RawMessage) error {
	var payload StatusEmailPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal status payload: %w", err)
	}

	invoice, err := p.billing.GetInvoice(payload.InvoiceID)
	if err != nil {
		p.logWarn(err, payload.InvoiceID, "invoice lookup failed for status email")
		return nil
	}

	address, name, err := p.recipients.BillingRecipient(invoice.OrganizationID)
	if err != nil {
		p.logWarn(err, payload.InvoiceID, "recipient lookup failed for status email")
		return nil
	}

	err = p.sender.Send(ctx, &email.Message{
		To:       address,
		ToName:   name,
		Subject:  fmt.Sprintf("Invoice %s is now %s", invoice.Code, payload.Status),
		HTMLBody: fmt.Sprintf("<p>Invoice %s has been marked %s.</p>", invoice.Code, payload.Status),
	})
	if err != nil {
		p.logWarn(err, payload.InvoiceID, "failed to send status email")
	}
	return nil
}

func (p *SendPipeline) logWarn(err error, invoiceID int64, message string) {
	if p.logger != nil {
		p.logger.WithError(err).WithField("invoice_id", invoiceID).Warn(message)
	}
}
