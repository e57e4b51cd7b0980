package store

import (
	"context"
	"database/sql"
	"fmt"
)

// OrgRegion maps an org slug to its regional API root.
type OrgRegion struct {
	OrgSlug   string
	RegionURL string
}

// GetOrgRegion returns the cached region URL for org, with ok false on a
// cache miss.
func (s *Store) GetOrgRegion(ctx context.Context, org string) (string, bool, error) {
	return s.queryRowString(ctx, `SELECT region_url FROM org_regions WHERE org_slug = ?`, org)
}

// SetOrgRegions bulk-upserts the org -> region mapping in one transaction.
func (s *Store) SetOrgRegions(ctx context.Context, pairs []OrgRegion) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO org_regions (org_slug, region_url) VALUES (?, ?)
			ON CONFLICT(org_slug) DO UPDATE SET region_url = excluded.region_url`)
		if err != nil {
			return fmt.Errorf("failed to prepare region upsert: %w", err)
		}
		defer func() { _ = stmt.Close() }()
		for _, p := range pairs {
			if _, err := stmt.ExecContext(ctx, p.OrgSlug, p.RegionURL); err != nil {
				return fmt.Errorf("failed to upsert region for %s: %w", p.OrgSlug, err)
			}
		}
		return nil
	})
}

// ClearOrgRegions drops the whole region map. Invoked directly and
// transitively by ClearAuth.
func (s *Store) ClearOrgRegions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM org_regions`)
	if err != nil {
		return fmt.Errorf("failed to clear org regions: %w", err)
	}
	return nil
}

// ListOrgRegions returns the full mapping, ordered by org slug.
func (s *Store) ListOrgRegions(ctx context.Context) ([]OrgRegion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT org_slug, region_url FROM org_regions ORDER BY org_slug`)
	if err != nil {
		return nil, fmt.Errorf("failed to list org regions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []OrgRegion
	for rows.Next() {
		var r OrgRegion
		if err := rows.Scan(&r.OrgSlug, &r.RegionURL); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
