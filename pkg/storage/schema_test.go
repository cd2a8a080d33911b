package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, EnsureSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The billing allocator and the CMS default-value upsert rely on specific
// constraints existing; the schema must declare them.
func TestSchemaDeclaresLoadBearingConstraints(t *testing.T) {
	assert.Contains(t, Schema, "CREATE UNIQUE INDEX IF NOT EXISTS idx_quotes_number ON quotes(number)")
	assert.Contains(t, Schema, "CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_number ON invoices(number)")
	assert.Contains(t, Schema, "ON cms_field_values(field_id, page_id) WHERE split_id IS NULL")
	assert.Contains(t, Schema, "ON cms_field_values(field_id, page_id, split_id)")
	assert.Contains(t, Schema, "UNIQUE (project_id, slug)")
	assert.Contains(t, Schema, "UNIQUE (page_id, key)")
	assert.Contains(t, Schema, "idx_users_subject ON users(subject)")
}
