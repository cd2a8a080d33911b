package orgs

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrganization(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	t.Run("creates organization with generated slug", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO organizations`).
			WithArgs("Acme Studio", "acme-studio", sqlmock.AnyArg(), "active", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(1, time.Now(), time.Now()))

		org := &Organization{Name: "Acme Studio"}
		err := service.CreateOrganization(org)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), org.ID)
		assert.Equal(t, "acme-studio", org.Slug)
		assert.Equal(t, OrgStatusActive, org.Status)
	})

	t.Run("keeps explicit slug", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO organizations`).
			WithArgs("Acme Studio", "custom", sqlmock.AnyArg(), "active", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(2, time.Now(), time.Now()))

		org := &Organization{Name: "Acme Studio", Slug: "custom"}
		err := service.CreateOrganization(org)
		assert.NoError(t, err)
		assert.Equal(t, "custom", org.Slug)
	})
}

func TestGetOrganization(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, name, slug`).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "owner_id", "status", "settings", "created_at", "updated_at"}))

		org, err := service.GetOrganization(99)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
		assert.Nil(t, org)
	})
}

func TestUpdateOrganization(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	t.Run("updates name", func(t *testing.T) {
		mock.ExpectExec(`UPDATE organizations SET`).
			WithArgs("New Name", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		name := "New Name"
		err := service.UpdateOrganization(1, &UpdateOrgRequest{Name: &name})
		assert.NoError(t, err)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE organizations SET`).
			WithArgs("New Name", int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		name := "New Name"
		err := service.UpdateOrganization(42, &UpdateOrgRequest{Name: &name})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestDeleteOrganization(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	t.Run("soft deletes", func(t *testing.T) {
		mock.ExpectExec(`UPDATE organizations SET status = 'deleted'`).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.DeleteOrganization(1)
		assert.NoError(t, err)
	})

	t.Run("already deleted", func(t *testing.T) {
		mock.ExpectExec(`UPDATE organizations SET status = 'deleted'`).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.DeleteOrganization(1)
		assert.Error(t, err)
	})
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "Acme", "acme"},
		{"spaces", "Acme Studio", "acme-studio"},
		{"special chars stripped", "Acme & Co.", "acme--co"},
		{"empty falls back", "!!!", "org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, generateSlug(tt.input))
		})
	}
}
