package repository

import (
	"context"
	"fmt"
)

// IDs are TEXT so that a malformed id in a URL is a plain miss rather than a cast error.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      TEXT,
	timezone   TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS qr_codes (
	id         TEXT PRIMARY KEY,
	user_id    TEXT,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL,
	target_url TEXT NOT NULL,
	size       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'active',
	scan_count BIGINT NOT NULL DEFAULT 0,
	max_scans  BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_qr_codes_user_id ON qr_codes (user_id);

CREATE TABLE IF NOT EXISTS scans (
	id         TEXT PRIMARY KEY,
	qr_code_id TEXT NOT NULL REFERENCES qr_codes (id),
	ip_address TEXT,
	user_agent TEXT,
	referer    TEXT,
	country    TEXT,
	city       TEXT,
	device     TEXT NOT NULL,
	browser    TEXT NOT NULL,
	os         TEXT NOT NULL,
	scan_date  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_qr_code_scan_date ON scans (qr_code_id, scan_date);
`

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *PostgresDB) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
