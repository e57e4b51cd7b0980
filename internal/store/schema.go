package store

import (
	"context"
	"fmt"
)

// SchemaVersion is the current schema generation. Bumped on breaking
// changes; additive columns are handled by RepairSchema without a bump.
const SchemaVersion = 3

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

-- Single-row credential storage. key is always 'default'.
CREATE TABLE IF NOT EXISTS auth (
    key TEXT PRIMARY KEY,
    access_token TEXT NOT NULL DEFAULT '',
    refresh_token TEXT NOT NULL DEFAULT '',
    token_type TEXT NOT NULL DEFAULT 'bearer',
    expires_at TEXT NOT NULL DEFAULT '',
    manual INTEGER NOT NULL DEFAULT 0
);

-- User-chosen defaults (default org/project, preferred output mode).
CREATE TABLE IF NOT EXISTS defaults (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT ''
);

-- Resolution cache for identifiers that embed an org id.
CREATE TABLE IF NOT EXISTS project_cache (
    org_id TEXT NOT NULL,
    project_id TEXT NOT NULL,
    org_slug TEXT NOT NULL DEFAULT '',
    project_slug TEXT NOT NULL DEFAULT '',
    org_name TEXT NOT NULL DEFAULT '',
    project_name TEXT NOT NULL DEFAULT '',
    cached_at TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (org_id, project_id)
);

-- Resolution cache for public-key-only identifiers.
CREATE TABLE IF NOT EXISTS dsn_cache (
    public_key TEXT PRIMARY KEY,
    org_slug TEXT NOT NULL DEFAULT '',
    project_slug TEXT NOT NULL DEFAULT '',
    org_name TEXT NOT NULL DEFAULT '',
    project_name TEXT NOT NULL DEFAULT '',
    cached_at TEXT NOT NULL DEFAULT ''
);

-- Short aliases assigned to projects in a multi-target listing. The table is
-- replaced wholesale on each assignment; the gating fingerprint lives in
-- metadata under 'project_aliases_fingerprint'.
CREATE TABLE IF NOT EXISTS project_aliases (
    alias TEXT PRIMARY KEY,
    org_slug TEXT NOT NULL DEFAULT '',
    project_slug TEXT NOT NULL DEFAULT ''
);

-- Same shape for transaction listings.
CREATE TABLE IF NOT EXISTS transaction_aliases (
    alias TEXT PRIMARY KEY,
    org_slug TEXT NOT NULL DEFAULT '',
    project_slug TEXT NOT NULL DEFAULT '',
    transaction_name TEXT NOT NULL DEFAULT ''
);

-- Free-form key/value state: pagination cursors, alias fingerprints,
-- schema repair reports.
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT ''
);

-- org slug -> regional API root. Cleared together with auth.
CREATE TABLE IF NOT EXISTS org_regions (
    org_slug TEXT PRIMARY KEY,
    region_url TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS instance_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT ''
);

-- Per-project-root detection cache: identifiers found under a working tree,
-- invalidated on directory mtime change or TTL expiry.
CREATE TABLE IF NOT EXISTS project_root_cache (
    root TEXT PRIMARY KEY,
    identifiers TEXT NOT NULL DEFAULT '[]',
    dir_mtime TEXT NOT NULL DEFAULT '',
    cached_at TEXT NOT NULL DEFAULT ''
);
`

// InitSchema creates all tables against an empty (or partial) store. It is
// idempotent; existing tables and rows are left alone.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	// Seed the version row exactly once.
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&n); err != nil {
		return fmt.Errorf("failed to read schema_version: %w", err)
	}
	if n == 0 {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
			return fmt.Errorf("failed to seed schema_version: %w", err)
		}
	}
	return nil
}

// CurrentSchemaVersion returns the stored schema version, zero when unset.
func (s *Store) CurrentSchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&v)
	if err != nil {
		return 0, err
	}
	return v, nil
}
