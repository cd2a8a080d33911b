package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the portal database schema, applied idempotently at startup.
//
// Two constraints here are load-bearing for correctness, not just lookups:
// the unique indexes on quotes(number) and invoices(number) turn a concurrent
// document-number allocation into a 23505 conflict that the billing service
// retries, and the partial unique index on cms_field_values backs the
// ON CONFLICT (field_id, page_id) WHERE split_id IS NULL upsert of default
// content rows.
const Schema = `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		subject VARCHAR(255) NOT NULL,
		email VARCHAR(255),
		full_name VARCHAR(255),
		role VARCHAR(20) NOT NULL DEFAULT 'user',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		last_login_at TIMESTAMP WITH TIME ZONE
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_subject ON users(subject);

	CREATE TABLE IF NOT EXISTS organizations (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL,
		owner_id BIGINT REFERENCES users(id),
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		settings JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_organizations_slug ON organizations(slug);

	CREATE TABLE IF NOT EXISTS organization_members (
		id BIGSERIAL PRIMARY KEY,
		organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role VARCHAR(20) NOT NULL DEFAULT 'member',
		invited_by BIGINT REFERENCES users(id),
		joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE (organization_id, user_id)
	);

	CREATE OR REPLACE VIEW org_members_view AS
		SELECT m.id, m.organization_id, m.user_id, m.role, m.invited_by,
		       m.joined_at, m.created_at, u.email, u.full_name
		FROM organization_members m
		JOIN users u ON u.id = m.user_id;

	CREATE TABLE IF NOT EXISTS org_invitations (
		id BIGSERIAL PRIMARY KEY,
		org_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		email VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'member',
		token VARCHAR(64) NOT NULL,
		invited_by BIGINT REFERENCES users(id),
		invited_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		accepted_at TIMESTAMP WITH TIME ZONE,
		accepted_by BIGINT REFERENCES users(id),
		UNIQUE (org_id, email)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_org_invitations_token ON org_invitations(token);

	CREATE TABLE IF NOT EXISTS projects (
		id BIGSERIAL PRIMARY KEY,
		organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		domain VARCHAR(255),
		cms_key VARCHAR(64) NOT NULL,
		listening_mode BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_cms_key ON projects(cms_key);

	CREATE TABLE IF NOT EXISTS project_languages (
		project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		lang_code VARCHAR(10) NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project_id, lang_code)
	);

	CREATE TABLE IF NOT EXISTS file_entries (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT REFERENCES projects(id) ON DELETE CASCADE,
		organization_id BIGINT REFERENCES organizations(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		content_type VARCHAR(20) NOT NULL,
		content TEXT,
		user_can_edit BOOLEAN NOT NULL DEFAULT FALSE,
		user_can_delete BOOLEAN NOT NULL DEFAULT FALSE,
		created_by BIGINT REFERENCES users(id),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		CHECK (project_id IS NOT NULL OR organization_id IS NOT NULL)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_file_entries_project_name
		ON file_entries(project_id, name) WHERE project_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_file_entries_org_name
		ON file_entries(organization_id, name) WHERE organization_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS cms_pages (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE (project_id, slug)
	);

	CREATE TABLE IF NOT EXISTS cms_fields (
		id BIGSERIAL PRIMARY KEY,
		page_id BIGINT NOT NULL REFERENCES cms_pages(id) ON DELETE CASCADE,
		key VARCHAR(255) NOT NULL,
		default_value TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE (page_id, key)
	);

	CREATE TABLE IF NOT EXISTS cms_splits (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS cms_field_values (
		id BIGSERIAL PRIMARY KEY,
		field_id BIGINT NOT NULL REFERENCES cms_fields(id) ON DELETE CASCADE,
		page_id BIGINT NOT NULL REFERENCES cms_pages(id) ON DELETE CASCADE,
		split_id BIGINT REFERENCES cms_splits(id) ON DELETE CASCADE,
		value JSONB NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_cms_field_values_default
		ON cms_field_values(field_id, page_id) WHERE split_id IS NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_cms_field_values_split
		ON cms_field_values(field_id, page_id, split_id);

	CREATE TABLE IF NOT EXISTS quotes (
		id BIGSERIAL PRIMARY KEY,
		organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		project_id BIGINT REFERENCES projects(id) ON DELETE SET NULL,
		number BIGINT NOT NULL,
		code VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'draft',
		quote_date TIMESTAMP WITH TIME ZONE NOT NULL,
		valid_until TIMESTAMP WITH TIME ZONE NOT NULL,
		items JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_quotes_number ON quotes(number);
	CREATE INDEX IF NOT EXISTS idx_quotes_organization_id ON quotes(organization_id);

	CREATE TABLE IF NOT EXISTS invoices (
		id BIGSERIAL PRIMARY KEY,
		organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		project_id BIGINT REFERENCES projects(id) ON DELETE SET NULL,
		quote_id BIGINT REFERENCES quotes(id) ON DELETE SET NULL,
		number BIGINT NOT NULL,
		code VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'draft',
		invoice_date TIMESTAMP WITH TIME ZONE NOT NULL,
		due_date TIMESTAMP WITH TIME ZONE NOT NULL,
		items JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_number ON invoices(number);
	CREATE INDEX IF NOT EXISTS idx_invoices_organization_id ON invoices(organization_id);

	CREATE TABLE IF NOT EXISTS tasks (
		id BIGSERIAL PRIMARY KEY,
		kind VARCHAR(100) NOT NULL,
		payload JSONB NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 5,
		run_after TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		last_error TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_claim ON tasks(status, run_after);

	CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		event VARCHAR(100) NOT NULL,
		entity VARCHAR(50),
		entity_id BIGINT,
		user_id BIGINT,
		detail TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_event ON audit_log(event);

	CREATE TABLE IF NOT EXISTS dynamic_objects (
		id BIGSERIAL PRIMARY KEY,
		table_name VARCHAR(255) NOT NULL,
		data JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_dynamic_objects_table ON dynamic_objects(table_name);
`

// EnsureSchema applies the schema. Every statement is idempotent, so it runs
// unconditionally at startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
