package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CachedResolution is a cached identifier -> project mapping.
type CachedResolution struct {
	OrgSlug     string
	ProjectSlug string
	OrgName     string
	ProjectName string
	CachedAt    time.Time
}

// GetProjectCache looks up the resolution for an identifier that embeds org
// and project ids.
func (s *Store) GetProjectCache(ctx context.Context, orgID, projectID string) (*CachedResolution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT org_slug, project_slug, org_name, project_name, cached_at
		FROM project_cache WHERE org_id = ? AND project_id = ?`, orgID, projectID)
	return scanResolution(row)
}

// SetProjectCache upserts the resolution for (orgID, projectID).
func (s *Store) SetProjectCache(ctx context.Context, orgID, projectID string, r CachedResolution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_cache (org_id, project_id, org_slug, project_slug, org_name, project_name, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id, project_id) DO UPDATE SET
			org_slug = excluded.org_slug,
			project_slug = excluded.project_slug,
			org_name = excluded.org_name,
			project_name = excluded.project_name,
			cached_at = excluded.cached_at`,
		orgID, projectID, r.OrgSlug, r.ProjectSlug, r.OrgName, r.ProjectName, nowUTC())
	if err != nil {
		return fmt.Errorf("failed to cache project %s/%s: %w", orgID, projectID, err)
	}
	return nil
}

// GetDSNCache looks up the resolution for a public-key-only identifier.
func (s *Store) GetDSNCache(ctx context.Context, publicKey string) (*CachedResolution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT org_slug, project_slug, org_name, project_name, cached_at
		FROM dsn_cache WHERE public_key = ?`, publicKey)
	return scanResolution(row)
}

// SetDSNCache upserts the resolution for publicKey.
func (s *Store) SetDSNCache(ctx context.Context, publicKey string, r CachedResolution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dsn_cache (public_key, org_slug, project_slug, org_name, project_name, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(public_key) DO UPDATE SET
			org_slug = excluded.org_slug,
			project_slug = excluded.project_slug,
			org_name = excluded.org_name,
			project_name = excluded.project_name,
			cached_at = excluded.cached_at`,
		publicKey, r.OrgSlug, r.ProjectSlug, r.OrgName, r.ProjectName, nowUTC())
	if err != nil {
		return fmt.Errorf("failed to cache dsn %s: %w", publicKey, err)
	}
	return nil
}

func scanResolution(row *sql.Row) (*CachedResolution, error) {
	var r CachedResolution
	var cachedAt string
	err := row.Scan(&r.OrgSlug, &r.ProjectSlug, &r.OrgName, &r.ProjectName, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t, perr := time.Parse(time.RFC3339, cachedAt); perr == nil {
		r.CachedAt = t
	}
	return &r, nil
}

// RootCacheEntry is the per-project-root detection cache: every identifier
// found under the root, plus the directory mtime at scan time so edits
// invalidate the entry.
type RootCacheEntry struct {
	Root        string
	Identifiers []string
	DirMtime    string
	CachedAt    time.Time
}

// GetRootCache returns the cached scan for root, or nil on a miss.
func (s *Store) GetRootCache(ctx context.Context, root string) (*RootCacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identifiers, dir_mtime, cached_at FROM project_root_cache WHERE root = ?`, root)
	var idsJSON, mtime, cachedAt string
	err := row.Scan(&idsJSON, &mtime, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read root cache for %s: %w", root, err)
	}
	e := &RootCacheEntry{Root: root, DirMtime: mtime}
	if err := json.Unmarshal([]byte(idsJSON), &e.Identifiers); err != nil {
		// Corrupt entry; treat as a miss rather than failing detection.
		return nil, nil
	}
	if t, perr := time.Parse(time.RFC3339, cachedAt); perr == nil {
		e.CachedAt = t
	}
	return e, nil
}

// SetRootCache upserts the scan result for root.
func (s *Store) SetRootCache(ctx context.Context, e RootCacheEntry) error {
	idsJSON, err := json.Marshal(e.Identifiers)
	if err != nil {
		return fmt.Errorf("failed to encode identifiers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO project_root_cache (root, identifiers, dir_mtime, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(root) DO UPDATE SET
			identifiers = excluded.identifiers,
			dir_mtime = excluded.dir_mtime,
			cached_at = excluded.cached_at`,
		e.Root, string(idsJSON), e.DirMtime, nowUTC())
	if err != nil {
		return fmt.Errorf("failed to cache root %s: %w", e.Root, err)
	}
	return nil
}

// DeleteRootCache removes the cached scan for root.
func (s *Store) DeleteRootCache(ctx context.Context, root string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM project_root_cache WHERE root = ?`, root)
	if err != nil {
		return fmt.Errorf("failed to delete root cache for %s: %w", root, err)
	}
	return nil
}
