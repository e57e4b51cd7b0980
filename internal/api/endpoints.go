package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spyglass-cli/spyglass/internal/types"
)

// Organization is the subset of the org payload the CLI uses.
type Organization struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Project is the subset of the project payload the CLI uses.
type Project struct {
	ID           string        `json:"id"`
	Slug         string        `json:"slug"`
	Name         string        `json:"name"`
	Organization *Organization `json:"organization,omitempty"`
}

// ProjectKey is one client key (DSN) of a project.
type ProjectKey struct {
	ID     string `json:"id"`
	Public string `json:"public"`
	DSN    struct {
		Public string `json:"public"`
	} `json:"dsn"`
}

// Region is one regional API silo.
type Region struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ErrNoRegionDiscovery means the deployment has no "my regions" endpoint
// (self-hosted single-region install); all requests belong on the control
// plane.
var ErrNoRegionDiscovery = errors.New("region discovery not available")

// maxPageSize is the server's per-page cap.
const maxPageSize = 100

// ListRegions returns the account's regions from the control plane.
func (c *Client) ListRegions(ctx context.Context) ([]Region, error) {
	var payload struct {
		Regions []Region `json:"regions"`
	}
	_, err := c.Get(ctx, "/users/me/regions/", nil, &payload)
	var apiErr *types.ApiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, ErrNoRegionDiscovery
	}
	if err != nil {
		return nil, err
	}
	return payload.Regions, nil
}

// ListOrganizations returns every org visible to the token, following
// pagination to the end.
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	return listAll[Organization](ctx, c, "/organizations/", nil)
}

// GetOrganization fetches one org by slug.
func (c *Client) GetOrganization(ctx context.Context, org string) (*Organization, error) {
	var out Organization
	if _, err := c.Get(ctx, "/organizations/"+url.PathEscape(org)+"/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOrgProjects returns all projects in an org.
func (c *Client) ListOrgProjects(ctx context.Context, org string) ([]Project, error) {
	return listAll[Project](ctx, c, "/organizations/"+url.PathEscape(org)+"/projects/", nil)
}

// ListAccessibleProjects returns every project the token can see across all
// orgs; used by project-search targets.
func (c *Client) ListAccessibleProjects(ctx context.Context) ([]Project, error) {
	params := url.Values{}
	// The cross-org listing embeds the owning organization.
	params.Set("expand", "organization")
	return listAll[Project](ctx, c, "/projects/", params)
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, org, project string) (*Project, error) {
	var out Project
	endpoint := "/projects/" + url.PathEscape(org) + "/" + url.PathEscape(project) + "/"
	if _, err := c.Get(ctx, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProjectKeys returns the client keys of a project.
func (c *Client) ListProjectKeys(ctx context.Context, org, project string) ([]ProjectKey, error) {
	endpoint := "/projects/" + url.PathEscape(org) + "/" + url.PathEscape(project) + "/keys/"
	return listAll[ProjectKey](ctx, c, endpoint, nil)
}

// IssueListOptions are the shared query parameters of an issue listing.
type IssueListOptions struct {
	Query  string
	Sort   string // date | new | freq | user
	Period string // e.g. 90d
	Cursor string
	Limit  int // per-page size, capped at maxPageSize
}

func (o IssueListOptions) values() url.Values {
	params := url.Values{}
	if o.Query != "" {
		params.Set("query", o.Query)
	}
	if o.Sort != "" {
		params.Set("sort", o.Sort)
	}
	if o.Period != "" {
		params.Set("statsPeriod", o.Period)
	}
	if o.Cursor != "" {
		params.Set("cursor", o.Cursor)
	}
	limit := o.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	params.Set("limit", strconv.Itoa(limit))
	return params
}

// ListProjectIssues fetches one page of a project's issues.
func (c *Client) ListProjectIssues(ctx context.Context, org, project string, opts IssueListOptions) (*types.IssuesPage, error) {
	endpoint := "/projects/" + url.PathEscape(org) + "/" + url.PathEscape(project) + "/issues/"
	return c.issuesPage(ctx, endpoint, opts)
}

// ListOrgIssues fetches one page of issues across every project in an org.
func (c *Client) ListOrgIssues(ctx context.Context, org string, opts IssueListOptions) (*types.IssuesPage, error) {
	endpoint := "/organizations/" + url.PathEscape(org) + "/issues/"
	return c.issuesPage(ctx, endpoint, opts)
}

func (c *Client) issuesPage(ctx context.Context, endpoint string, opts IssueListOptions) (*types.IssuesPage, error) {
	var issues []types.Issue
	resp, err := c.Get(ctx, endpoint, opts.values(), &issues)
	if err != nil {
		return nil, err
	}
	page := &types.IssuesPage{Issues: issues}
	if cursor, ok := resp.NextCursor(); ok {
		page.NextCursor = cursor
	}
	return page, nil
}

// GetIssueByShortID resolves an issue by its org-unique short id.
func (c *Client) GetIssueByShortID(ctx context.Context, org, shortID string) (*types.Issue, error) {
	endpoint := "/organizations/" + url.PathEscape(org) + "/issues/" + url.PathEscape(shortID) + "/"
	var out types.Issue
	if _, err := c.Get(ctx, endpoint, nil, &out); err != nil {
		var apiErr *types.ApiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, &types.ResolutionError{Kind: "issue", Name: shortID}
		}
		return nil, err
	}
	return &out, nil
}

// UpdateIssueStatus flips an issue's status (resolved, ignored, unresolved).
func (c *Client) UpdateIssueStatus(ctx context.Context, org, issueID, status string) error {
	endpoint := "/organizations/" + url.PathEscape(org) + "/issues/" + url.PathEscape(issueID) + "/"
	_, err := c.Do(ctx, http.MethodPut, endpoint, nil, map[string]string{"status": status})
	return err
}

// listAll follows cursor pagination to exhaustion.
func listAll[T any](ctx context.Context, c *Client, endpoint string, params url.Values) ([]T, error) {
	var out []T
	cursor := ""
	for {
		page := url.Values{}
		for k, vs := range params {
			for _, v := range vs {
				page.Add(k, v)
			}
		}
		page.Set("per_page", strconv.Itoa(maxPageSize))
		if cursor != "" {
			page.Set("cursor", cursor)
		}
		var batch []T
		resp, err := c.Get(ctx, endpoint, page, &batch)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		next, ok := resp.NextCursor()
		if !ok {
			return out, nil
		}
		cursor = next
	}
}
