package orgs

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleads/portal/pkg/auth"
)

func TestAddMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	t.Run("adds member", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO organization_members`).
			WithArgs(int64(1), int64(2), auth.OrgRoleMember, nil).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := service.AddMember(1, 2, auth.OrgRoleMember, nil)
		assert.NoError(t, err)
	})

	t.Run("duplicate member", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO organization_members`).
			WithArgs(int64(1), int64(2), auth.OrgRoleMember, nil).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.AddMember(1, 2, auth.OrgRoleMember, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})
}

func TestUpdateMemberRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE organization_members SET role`).
			WithArgs(auth.OrgRoleAdmin, int64(1), int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.UpdateMemberRole(1, 99, auth.OrgRoleAdmin)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestCreateInvitation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	t.Run("generates token and default expiry", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO org_invitations`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		inv := &Invitation{OrgID: 1, Email: "client@example.com", Role: auth.OrgRoleMember, InvitedBy: 5}
		err := service.CreateInvitation(inv)
		require.NoError(t, err)
		assert.NotEmpty(t, inv.Token)
		assert.False(t, inv.ExpiresAt.IsZero())
		assert.True(t, inv.ExpiresAt.After(time.Now()))
	})
}

func TestAcceptInvitation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	t.Run("accepts valid invitation", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id, org_id, email, role, expires_at, accepted_at`).
			WithArgs("tok").
			WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "email", "role", "expires_at", "accepted_at"}).
				AddRow(1, 10, "client@example.com", "member", time.Now().Add(time.Hour), nil))
		mock.ExpectExec(`INSERT INTO organization_members`).
			WithArgs(int64(10), int64(7), auth.OrgRoleMember).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`UPDATE org_invitations SET accepted_at`).
			WithArgs(int64(7), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.AcceptInvitation("tok", 7)
		assert.NoError(t, err)
	})

	t.Run("rejects expired invitation", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id, org_id, email, role, expires_at, accepted_at`).
			WithArgs("tok").
			WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "email", "role", "expires_at", "accepted_at"}).
				AddRow(1, 10, "client@example.com", "member", time.Now().Add(-time.Hour), nil))
		mock.ExpectRollback()

		err := service.AcceptInvitation("tok", 7)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("rejects already accepted invitation", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id, org_id, email, role, expires_at, accepted_at`).
			WithArgs("tok").
			WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "email", "role", "expires_at", "accepted_at"}).
				AddRow(1, 10, "client@example.com", "member", time.Now().Add(time.Hour), time.Now()))
		mock.ExpectRollback()

		err := service.AcceptInvitation("tok", 7)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already accepted")
	})
}
