// Package region maintains the org -> regional API root directory.
//
// Hosted deployments shard organizations across regional silos; an
// org-scoped request must go to the org's region or it 404s. The directory
// is populated eagerly when listing orgs and lazily on first use of a named
// org, persisted in the store, and cleared together with auth.
package region

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/spyglass-cli/spyglass/internal/api"
	"github.com/spyglass-cli/spyglass/internal/store"
)

// apiPath is the path suffix every regional origin serves the API under,
// identical to the control plane's.
const apiPath = "/api/0"

// Directory resolves and caches org regions. It implements api.RegionRouter.
type Directory struct {
	store  *store.Store
	client *api.Client
	sf     singleflight.Group
}

// New builds a directory over the given store and client. Install it on the
// client with SetRouter afterward.
func New(s *store.Store, c *api.Client) *Directory {
	return &Directory{store: s, client: c}
}

// APIRootForOrg returns the regional API root for org, or "" when the
// deployment has no region discovery and the control plane serves everything.
func (d *Directory) APIRootForOrg(ctx context.Context, org string) (string, error) {
	if url, ok, err := d.store.GetOrgRegion(ctx, org); err != nil {
		return "", err
	} else if ok {
		return rootFromOrigin(url), nil
	}

	// Collapse concurrent lookups of the same org (the coordinator fans
	// out per-target requests that often share one org).
	v, err, _ := d.sf.Do(org, func() (any, error) {
		return d.discoverOrg(ctx, org)
	})
	if err != nil {
		return "", err
	}
	origin := v.(string)
	if origin == "" {
		return "", nil
	}
	return rootFromOrigin(origin), nil
}

// discoverOrg finds org's region by fanning out to every region's org list,
// persisting everything it learns along the way.
func (d *Directory) discoverOrg(ctx context.Context, org string) (string, error) {
	regions, err := d.client.ListRegions(ctx)
	if errors.Is(err, api.ErrNoRegionDiscovery) {
		// Self-hosted single-region deployment: everything lives on the
		// control plane.
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var found string
	var pairs []store.OrgRegion
	for _, r := range regions {
		orgs, err := d.listOrgsAt(ctx, r.URL)
		if err != nil {
			// A degraded region must not break resolution through the
			// others; the org may well live elsewhere.
			continue
		}
		for _, o := range orgs {
			pairs = append(pairs, store.OrgRegion{OrgSlug: o.Slug, RegionURL: r.URL})
			if o.Slug == org {
				found = r.URL
			}
		}
	}
	if len(pairs) > 0 {
		if err := d.store.SetOrgRegions(ctx, pairs); err != nil {
			return "", err
		}
	}
	if found == "" {
		return "", fmt.Errorf("organization %q not found in any region", org)
	}
	return found, nil
}

// Refresh eagerly rebuilds the whole directory and returns every org seen,
// grouped under its region. Used by org listing so a later org-scoped call
// never pays the discovery fan-out.
func (d *Directory) Refresh(ctx context.Context) (map[string][]api.Organization, error) {
	regions, err := d.client.ListRegions(ctx)
	if errors.Is(err, api.ErrNoRegionDiscovery) {
		orgs, err := d.client.ListOrganizations(ctx)
		if err != nil {
			return nil, err
		}
		return map[string][]api.Organization{"": orgs}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string][]api.Organization, len(regions))
	var pairs []store.OrgRegion
	for _, r := range regions {
		orgs, err := d.listOrgsAt(ctx, r.URL)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", r.Name, err)
		}
		out[r.Name] = orgs
		for _, o := range orgs {
			pairs = append(pairs, store.OrgRegion{OrgSlug: o.Slug, RegionURL: r.URL})
		}
	}
	if err := d.store.SetOrgRegions(ctx, pairs); err != nil {
		return nil, err
	}
	return out, nil
}

// Clear drops the persisted directory. Logout calls this transitively
// through the store's ClearAuth.
func (d *Directory) Clear(ctx context.Context) error {
	return d.store.ClearOrgRegions(ctx)
}

func (d *Directory) listOrgsAt(ctx context.Context, origin string) ([]api.Organization, error) {
	var orgs []api.Organization
	_, err := d.client.GetAt(ctx, rootFromOrigin(origin), "/organizations/", nil, &orgs)
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

func rootFromOrigin(origin string) string {
	origin = strings.TrimRight(origin, "/")
	if strings.HasSuffix(origin, apiPath) {
		return origin
	}
	return origin + apiPath
}
