package auth

import (
	"database/sql"
	"fmt"
)

// Store defines persistence for user accounts
type Store interface {
	GetUser(id int64) (*User, error)
	GetUserBySubject(subject string) (*User, error)
	UpsertUser(user *User) (*User, error)
	SetUserRole(id int64, role Role) error
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetUser retrieves a user by ID
func (s *PostgresStore) GetUser(id int64) (*User, error) {
	query := `
		SELECT id, subject, email, full_name, role, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE id = $1
	`
	return s.scanUser(s.db.QueryRow(query, id))
}

// GetUserBySubject retrieves a user by OIDC subject
func (s *PostgresStore) GetUserBySubject(subject string) (*User, error) {
	query := `
		SELECT id, subject, email, full_name, role, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE subject = $1
	`
	return s.scanUser(s.db.QueryRow(query, subject))
}

// UpsertUser inserts a user on first login or refreshes profile fields on
// subsequent logins, keyed by the OIDC subject.
func (s *PostgresStore) UpsertUser(user *User) (*User, error) {
	query := `
		INSERT INTO users (subject, email, full_name, role, is_active, last_login_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (subject) DO UPDATE
		SET email = EXCLUDED.email, full_name = EXCLUDED.full_name, last_login_at = NOW()
		RETURNING id, subject, email, full_name, role, is_active, created_at, updated_at, last_login_at
	`
	return s.scanUser(s.db.QueryRow(query, user.Subject, user.Email, user.FullName, user.Role, user.IsActive))
}

// SetUserRole updates a user's platform role
func (s *PostgresStore) SetUserRole(id int64, role Role) error {
	result, err := s.db.Exec(`UPDATE users SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStore) scanUser(row rowScanner) (*User, error) {
	user := &User{}
	var email, fullName sql.NullString
	var lastLogin sql.NullTime
	err := row.Scan(
		&user.ID, &user.Subject, &email, &fullName, &user.Role,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt, &lastLogin,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if email.Valid {
		user.Email = email.String
	}
	if fullName.Valid {
		user.FullName = fullName.String
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}

	return user, nil
}
