package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleads/portal/pkg/email"
	"github.com/sleads/portal/pkg/files"
)

type stubRenderer struct {
	pdf []byte
	err error
}

func (r *stubRenderer) Render(ctx context.Context, documentType string, document interface{}) ([]byte, error) {
	return r.pdf, r.err
}

type stubUploader struct {
	keys []string
	err  error
}

func (u *stubUploader) Upload(ctx context.Context, key string, pdf []byte) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.keys = append(u.keys, key)
	return key, nil
}

type stubFiles struct {
	files.Service
	entries []*files.Entry
}

func (f *stubFiles) CreateSystemEntry(scope files.Scope, entry *files.Entry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type stubSender struct {
	sent []*email.Message
	err  error
}

func (s *stubSender) Send(ctx context.Context, msg *email.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type stubRecipients struct{ err error }

func (s *stubRecipients) BillingRecipient(orgID int64) (string, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	return "client@example.com", "Acme", nil
}

func sendPayload(t *testing.T, docType string, id int64) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(&SendDocumentPayload{DocumentType: docType, DocumentID: id})
	require.NoError(t, err)
	return raw
}

func TestPipelineSendsQuote(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, nil, nil, nil)
	renderer := &stubRenderer{pdf: []byte("%PDF-1.4")}
	uploader := &stubUploader{}
	fileStore := &stubFiles{}
	sender := &stubSender{}

	pipeline := NewSendPipeline(service, renderer, uploader, fileStore, sender, &stubRecipients{}, nil)

	mock.ExpectQuery(`SELECT id, organization_id`).WithArgs(int64(1)).
		WillReturnRows(quoteRow(t, 1, 1, "Q-2026-000001", QuoteStatusDraft))
	mock.ExpectExec(`UPDATE quotes SET status = 'sent'`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = pipeline.HandleGeneratePDFAndUpload(context.Background(), sendPayload(t, "quote", 1))
	require.NoError(t, err)

	assert.Equal(t, []string{"documents/quotes/Q-2026-000001.pdf"}, uploader.keys)
	require.Len(t, fileStore.entries, 1)
	assert.Equal(t, "/quotes/Q-2026-000001.pdf", fileStore.entries[0].Name)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Quote Q-2026-000001", sender.sent[0].Subject)
	require.Len(t, sender.sent[0].Attachments, 1)
}

func TestPipelineRenderFailureLeavesStatusUntouched(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, nil, nil, nil)
	renderer := &stubRenderer{err: errors.New("render endpoint down")}
	uploader := &stubUploader{}
	sender := &stubSender{}

	pipeline := NewSendPipeline(service, renderer, uploader, &stubFiles{}, sender, &stubRecipients{}, nil)

	mock.ExpectQuery(`SELECT id, organization_id`).WithArgs(int64(2)).
		WillReturnRows(invoiceRow(t, 2, 1, "I-2026-000001", InvoiceStatusDraft))

	err = pipeline.HandleGeneratePDFAndUpload(context.Background(), sendPayload(t, "invoice", 2))
	assert.Error(t, err)
	assert.Empty(t, uploader.keys)
	assert.Empty(t, sender.sent)
	// No UPDATE was expected; the status patch never ran
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPipelineEmailFailureLeavesStatusUntouched(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, nil, nil, nil)
	pipeline := NewSendPipeline(service, &stubRenderer{pdf: []byte("%PDF")}, &stubUploader{},
		&stubFiles{}, &stubSender{err: errors.New("provider down")}, &stubRecipients{}, nil)

	mock.ExpectQuery(`SELECT id, organization_id`).WithArgs(int64(1)).
		WillReturnRows(quoteRow(t, 1, 1, "Q-2026-000001", QuoteStatusDraft))

	err = pipeline.HandleGeneratePDFAndUpload(context.Background(), sendPayload(t, "quote", 1))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPipelineStatusEmailIsBestEffort(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, nil, nil, nil)
	sender := &stubSender{err: errors.New("provider down")}
	pipeline := NewSendPipeline(service, &stubRenderer{}, &stubUploader{}, &stubFiles{}, sender, &stubRecipients{}, nil)

	mock.ExpectQuery(`SELECT id, organization_id`).WithArgs(int64(1)).
		WillReturnRows(invoiceRow(t, 1, 1, "I-2026-000001", InvoiceStatusPaid))

	raw, err := json.Marshal(&StatusEmailPayload{InvoiceID: 1, Status: "paid"})
	require.NoError(t, err)

	// Failure is swallowed so the task completes
	assert.NoError(t, pipeline.HandleInvoiceStatusEmail(context.Background(), raw))
}

func TestPipelineUnknownDocumentType(t *testing.T) {
	pipeline := NewSendPipeline(nil, nil, nil, nil, nil, nil, nil)
	err := pipeline.HandleGeneratePDFAndUpload(context.Background(), sendPayload(t, "receipt", 1))
	assert.Error(t, err)
}
