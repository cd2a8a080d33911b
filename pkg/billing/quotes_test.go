package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQueue struct {
	enqueued []string
	err      error
}

func (q *stubQueue) Enqueue(ctx context.Context, kind string, payload interface{}, runAfter time.Duration) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	q.enqueued = append(q.enqueued, kind)
	return int64(len(q.enqueued)), nil
}

func testItems() []LineItem {
	return []LineItem{{Name: "Design work", Quantity: 10, PriceExclTax: 95, Tax: 21}}
}

func quoteColumns() []string {
	return []string{"id", "organization_id", "project_id", "number", "code", "status",
		"quote_date", "valid_until", "items", "created_at", "updated_at"}
}

func quoteRow(t *testing.T, id, number int64, code string, status QuoteStatus) *sqlmock.Rows {
	t.Helper()
	items, err := json.Marshal(testItems())
	require.NoError(t, err)
	now := time.Now()
	return sqlmock.NewRows(quoteColumns()).
		AddRow(id, 1, nil, number, code, string(status), now, now.AddDate(0, 1, 0), items, now, now)
}

func TestCreateQuote(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, nil, nil, nil)

	t.Run("allocates number and code in one statement", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO quotes[\s\S]*COALESCE\(MAX\(number\), 0\) \+ 1`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "number", "code", "created_at", "updated_at"}).
				AddRow(1, 1, "Q-2026-000001", time.Now(), time.Now()))

		quote := &Quote{OrganizationID: 1, Items: testItems()}
		require.NoError(t, service.CreateQuote(context.Background(), quote))

		assert.Equal(t, int64(1), quote.Number)
		assert.Equal(t, "Q-2026-000001", quote.Code)
		assert.Equal(t, QuoteStatusDraft, quote.Status)
	})

	t.Run("retries on number conflict", func(t *testing.T) {
		conflict := &pq.Error{Code: "23505"}
		mock.ExpectQuery(`INSERT INTO quotes`).WillReturnError(conflict)
		mock.ExpectQuery(`INSERT INTO quotes`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "number", "code", "created_at", "updated_at"}).
				AddRow(2, 2, "Q-2026-000002", time.Now(), time.Now()))

		quote := &Quote{OrganizationID: 1, Items: testItems()}
		require.NoError(t, service.CreateQuote(context.Background(), quote))
		assert.Equal(t, int64(2), quote.Number)
	})

	t.Run("gives up after bounded retries", func(t *testing.T) {
		conflict := &pq.Error{Code: "23505"}
		for i := 0; i < allocRetries; i++ {
			mock.ExpectQuery(`INSERT INTO quotes`).WillReturnError(conflict)
		}

		err := service.CreateQuote(context.Background(), &Quote{OrganizationID: 1, Items: testItems()})
		assert.Error(t, err)
	})

	t.Run("rejects invalid tax rate", func(t *testing.T) {
		err := service.CreateQuote(context.Background(), &Quote{
			OrganizationID: 1,
			Items:          []LineItem{{Name: "Work", Quantity: 1, Tax: 15}},
		})
		assert.Error(t, err)
	})

	t.Run("rejects valid-until before document date", func(t *testing.T) {
		date := time.Now().AddDate(0, 0, 7)
		until := date.AddDate(0, 0, -1)
		err := service.CreateQuote(context.Background(), &Quote{
			OrganizationID: 1,
			Items:          testItems(),
			Date:           date,
			ValidUntil:     until,
		})
		assert.Error(t, err)
	})
}

func TestUpdateQuote(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, nil, nil, nil)

	t.Run("only draft quotes are editable", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, organization_id`).WithArgs(int64(1)).
			WillReturnRows(quoteRow(t, 1, 1, "Q-2026-000001", QuoteStatusSent))

		_, err := service.UpdateQuote(1, &UpdateQuoteRequest{Items: testItems()})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not editable")
	})

	t.Run("rejects past document date", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, organization_id`).WithArgs(int64(1)).
			WillReturnRows(quoteRow(t, 1, 1, "Q-2026-000001", QuoteStatusDraft))

		past := time.Now().AddDate(0, 0, -2)
		_, err := service.UpdateQuote(1, &UpdateQuoteRequest{Date: &past})
		assert.Error(t, err)
	})
}

func TestUpdateQuoteStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, nil, nil, nil)

	t.Run("sent can be accepted", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, organization_id`).WithArgs(int64(1)).
			WillReturnRows(quoteRow(t, 1, 1, "Q-2026-000001", QuoteStatusSent))
		mock.ExpectExec(`UPDATE quotes SET status`).
			WithArgs(QuoteStatusAccepted, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		quote, err := service.UpdateQuoteStatus(context.Background(), 1, QuoteStatusAccepted)
		require.NoError(t, err)
		assert.Equal(t, QuoteStatusAccepted, quote.Status)
	})

	t.Run("draft cannot be accepted", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, organization_id`).WithArgs(int64(1)).
			WillReturnRows(quoteRow(t, 1, 1, "Q-2026-000001", QuoteStatusDraft))

		_, err := service.UpdateQuoteStatus(context.Background(), 1, QuoteStatusAccepted)
		assert.Error(t, err)
	})

	t.Run("no way back to draft", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, organization_id`).WithArgs(int64(1)).
			WillReturnRows(quoteRow(t, 1, 1, "Q-2026-000001", QuoteStatusAccepted))

		_, err := service.UpdateQuoteStatus(context.Background(), 1, QuoteStatusDraft)
		assert.Error(t, err)
	})
}

func TestSendQuote(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	t.Run("enqueues pdf pipeline without flipping status", func(t *testing.T) {
		queue := &stubQueue{}
		service := NewPostgresService(db, queue, nil, nil)

		mock.ExpectQuery(`SELECT id, organization_id`).WithArgs(int64(1)).
			WillReturnRows(quoteRow(t, 1, 1, "Q-2026-000001", QuoteStatusDraft))

		require.NoError(t, service.SendQuote(context.Background(), 1))
		assert.Equal(t, []string{TaskGeneratePDFAndUpload}, queue.enqueued)
	})

	t.Run("already sent quotes are rejected", func(t *testing.T) {
		queue := &stubQueue{}
		service := NewPostgresService(db, queue, nil, nil)

		mock.ExpectQuery(`SELECT id, organization_id`).WithArgs(int64(1)).
			WillReturnRows(quoteRow(t, 1, 1, "Q-2026-000001", QuoteStatusSent))

		assert.Error(t, service.SendQuote(context.Background(), 1))
		assert.Empty(t, queue.enqueued)
	})
}

func TestValidQuoteTransition(t *testing.T) {
	cases := []struct {
		from, to QuoteStatus
		ok       bool
	}{
		{QuoteStatusDraft, QuoteStatusSent, true},
		{QuoteStatusSent, QuoteStatusAccepted, true},
		{QuoteStatusSent, QuoteStatusRejected, true},
		{QuoteStatusSent, QuoteStatusExpired, true},
		{QuoteStatusDraft, QuoteStatusAccepted, false},
		{QuoteStatusAccepted, QuoteStatusDraft, false},
		{QuoteStatusExpired, QuoteStatusSent, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, ValidQuoteTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
