package projects

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSeeder struct {
	seeded []int64
}

func (s *stubSeeder) SeedProjectFolders(projectID int64) error {
	s.seeded = append(s.seeded, projectID)
	return nil
}

func TestCreateProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	seeder := &stubSeeder{}
	service := NewPostgresService(db, seeder)

	t.Run("creates project and seeds folders", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO projects`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(42, time.Now(), time.Now()))

		project := &Project{OrganizationID: 1, Name: "Client Site"}
		err := service.CreateProject(project)
		require.NoError(t, err)

		assert.Equal(t, int64(42), project.ID)
		assert.NotEmpty(t, project.CMSKey)
		assert.Equal(t, []int64{42}, seeder.seeded)
	})

	t.Run("requires name", func(t *testing.T) {
		err := service.CreateProject(&Project{OrganizationID: 1})
		assert.Error(t, err)
	})
}

func TestGetProjectByCMSKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, nil)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, organization_id`).
			WithArgs("key123").
			WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "domain", "cms_key", "listening_mode", "created_at", "updated_at"}).
				AddRow(1, 2, "Client Site", "client.example", "key123", true, time.Now(), time.Now()))

		project, err := service.GetProjectByCMSKey("key123")
		require.NoError(t, err)
		assert.Equal(t, int64(1), project.ID)
		assert.True(t, project.ListeningMode)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, organization_id`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "domain", "cms_key", "listening_mode", "created_at", "updated_at"}))

		_, err := service.GetProjectByCMSKey("missing")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestListAllProjects(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, nil)

	mock.ExpectQuery(`SELECT id, organization_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "domain", "cms_key", "listening_mode", "created_at", "updated_at"}).
			AddRow(1, 1, "First", nil, "k1", false, time.Now(), time.Now()).
			AddRow(2, 3, "Second", nil, "k2", true, time.Now(), time.Now()))

	list, err := service.ListAllProjects()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[1].OrganizationID)
}

func TestSetListeningMode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db, nil)

	mock.ExpectExec(`UPDATE projects SET listening_mode`).
		WithArgs(true, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, service.SetListeningMode(1, true))

	mock.ExpectExec(`UPDATE projects SET listening_mode`).
		WithArgs(false, int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Error(t, service.SetListeningMode(99, false))
}
