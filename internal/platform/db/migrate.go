package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements is additive and idempotent: tables and indices are created
// if missing, new columns are added if missing. Never destructive, safe to
// run on every start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'generating',
		comment TEXT,
		metadata JSONB,
		files_count INTEGER NOT NULL DEFAULT 0,
		files_data JSONB,
		report_text TEXT,
		report_structured JSONB,
		openai_status TEXT,
		openai_response_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ
	)`,
	`ALTER TABLE sessions ADD COLUMN IF NOT EXISTS tax_report JSONB`,
	`ALTER TABLE sessions ADD COLUMN IF NOT EXISTS financial_report JSONB`,
	`ALTER TABLE sessions ADD COLUMN IF NOT EXISTS openai_response_id TEXT`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions (created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS session_files (
		id BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL,
		external_file_id TEXT,
		original_name TEXT NOT NULL,
		size_bytes BIGINT NOT NULL,
		mime_type TEXT,
		category TEXT NOT NULL DEFAULT 'uncategorized',
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_files_session ON session_files (session_id)`,

	`CREATE TABLE IF NOT EXISTS session_messages (
		id BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content JSONB NOT NULL,
		message_order INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (session_id, message_order)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_messages_session ON session_messages (session_id)`,
}

// EnsureSchema applies the additive schema.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("platform/db: ensure schema: %w", err)
		}
	}
	return nil
}
