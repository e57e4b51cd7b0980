package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spyglass-cli/spyglass/internal/api"
	"github.com/spyglass-cli/spyglass/internal/config"
	"github.com/spyglass-cli/spyglass/internal/resolve"
	"github.com/spyglass-cli/spyglass/internal/store"
	"github.com/spyglass-cli/spyglass/internal/types"
)

// fakeService scripts both the project/org catalog and the issue pages.
type fakeService struct {
	mu       sync.Mutex
	projects []api.Project
	pages    map[string]scripted // "org/project@cursor" or "org@cursor"
	calls    []string
}

type scripted struct {
	issues []types.Issue
	next   string
	err    error
}

func newFakeService(projects ...api.Project) *fakeService {
	return &fakeService{projects: projects, pages: map[string]scripted{}}
}

func (f *fakeService) page(key string, next string, err error, ids ...string) {
	issues := make([]types.Issue, len(ids))
	for i, id := range ids {
		issues[i] = types.Issue{
			ID:       id,
			Title:    "issue " + id,
			LastSeen: fmt.Sprintf("2026-08-%02dT00:00:00Z", 25-i),
		}
	}
	f.pages[key] = scripted{issues: issues, next: next, err: err}
}

func (f *fakeService) serve(key string, limit int) (*types.IssuesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	p, ok := f.pages[key]
	if !ok {
		return nil, fmt.Errorf("unscripted request %q", key)
	}
	if p.err != nil {
		return nil, p.err
	}
	issues := p.issues
	if limit > 0 && len(issues) > limit {
		issues = issues[:limit]
	}
	return &types.IssuesPage{Issues: issues, NextCursor: p.next}, nil
}

func (f *fakeService) ListProjectIssues(_ context.Context, org, project string, opts api.IssueListOptions) (*types.IssuesPage, error) {
	return f.serve(org+"/"+project+"@"+opts.Cursor, opts.Limit)
}

func (f *fakeService) ListOrgIssues(_ context.Context, org string, opts api.IssueListOptions) (*types.IssuesPage, error) {
	return f.serve(org+"@"+opts.Cursor, opts.Limit)
}

func (f *fakeService) ListOrgProjects(_ context.Context, org string) ([]api.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []api.Project
	for _, p := range f.projects {
		if p.Organization != nil && p.Organization.Slug == org {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeService) ListAccessibleProjects(context.Context) ([]api.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projects, nil
}

func (f *fakeService) ListProjectKeys(context.Context, string, string) ([]api.ProjectKey, error) {
	return nil, nil
}

func proj(id, slug, orgID, orgSlug string) api.Project {
	return api.Project{
		ID: id, Slug: slug, Name: slug,
		Organization: &api.Organization{ID: orgID, Slug: orgSlug, Name: orgSlug},
	}
}

func newTestPipeline(t *testing.T, f *fakeService) *Pipeline {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return &Pipeline{
		Store: s,
		API:   f,
		Resolver: &resolve.Resolver{
			Store:   s,
			API:     f,
			Env:     &config.Config{},
			WorkDir: t.TempDir(),
			Environ: []string{},
		},
		BaseURL: "https://spyglass.io/api/0",
		Now:     func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) },
	}
}

func listReq(target string) Request {
	return Request{TargetArg: target, Limit: 10}
}

func TestValidateLimit(t *testing.T) {
	p := newTestPipeline(t, newFakeService())

	_, err := p.Run(context.Background(), Request{TargetArg: "acme/frontend", Limit: 0})
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = p.Run(context.Background(), Request{TargetArg: "acme/frontend", Limit: 1001})
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Hint, "-c last")
}

func TestValidateDigitCursor(t *testing.T) {
	p := newTestPipeline(t, newFakeService())
	_, err := p.Run(context.Background(), Request{TargetArg: "acme/frontend", Limit: 10, Cursor: "12345"})
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestValidateSort(t *testing.T) {
	p := newTestPipeline(t, newFakeService())
	_, err := p.Run(context.Background(), Request{TargetArg: "acme/frontend", Limit: 10, Sort: "alphabetical"})
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestRejectIssueIDTarget(t *testing.T) {
	p := newTestPipeline(t, newFakeService())
	_, err := p.Run(context.Background(), Request{TargetArg: "123456", Limit: 10})
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestSingleTargetListing(t *testing.T) {
	f := newFakeService()
	f.page("acme/frontend@", "", nil, "A1", "A2", "A3")
	p := newTestPipeline(t, f)
	ctx := context.Background()

	res, err := p.Run(ctx, listReq("acme/frontend"))
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	require.Equal(t, "A1", res.Rows[0].Issue.ID)
	require.Empty(t, res.Rows[0].Alias, "single target rows carry no alias")
	require.False(t, res.HasMore)
	require.Empty(t, res.Hint)

	// Single-target runs clear the alias table and leave no cursor behind.
	aliases, err := p.Store.ListProjectAliases(ctx)
	require.NoError(t, err)
	require.Empty(t, aliases)
}

func TestMultiTargetRedistributionAndCursor(t *testing.T) {
	f := newFakeService(
		proj("1", "frontend", "10", "acme"),
		proj("2", "backend", "10", "acme"),
	)
	f.page("acme/frontend@", "cF", nil, "F1", "F2")
	f.page("acme/frontend@cF", "cF2", nil, "F3")
	f.page("acme/backend@", "", nil, "B1")
	p := newTestPipeline(t, f)
	ctx := context.Background()

	req := listReq("acme/")
	req.Limit = 4
	res, err := p.Run(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)
	require.True(t, res.HasMore)
	require.Equal(t, "|cF2", res.Cursor, "backend sorts first and is exhausted")
	require.Contains(t, res.Footer, "2 projects")
	require.Contains(t, res.Hint, "-c last")

	// Aliases assigned for both targets.
	fr, err := p.Store.GetProjectAlias(ctx, "f", "")
	require.NoError(t, err)
	require.NotNil(t, fr)
	require.Equal(t, "frontend", fr.ProjectSlug)

	for _, row := range res.Rows {
		require.NotEmpty(t, row.Alias)
	}
}

func TestResumeSkipsExhaustedAndClears(t *testing.T) {
	f := newFakeService(
		proj("1", "frontend", "10", "acme"),
		proj("2", "backend", "10", "acme"),
	)
	f.page("acme/frontend@", "cF", nil, "F1", "F2")
	f.page("acme/frontend@cF", "cF2", nil, "F3")
	f.page("acme/backend@", "", nil, "B1")
	f.page("acme/frontend@cF2", "", nil, "F4")
	p := newTestPipeline(t, f)
	ctx := context.Background()

	req := listReq("acme/")
	req.Limit = 4
	_, err := p.Run(ctx, req)
	require.NoError(t, err)

	req.Cursor = "last"
	res, err := p.Run(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "F4", res.Rows[0].Issue.ID)
	require.False(t, res.HasMore)

	// Backend was never refetched on the resume.
	f.mu.Lock()
	backendCalls := 0
	for _, call := range f.calls {
		if call == "acme/backend@" {
			backendCalls++
		}
	}
	f.mu.Unlock()
	require.Equal(t, 1, backendCalls, "backend fetched only on the first run")

	// The chain is exhausted: a further -c last starts fresh.
	res, err = p.Run(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 4, "exhausted cursor was deleted, so the run restarts")
}

func TestCursorNotSharedAcrossSorts(t *testing.T) {
	f := newFakeService(
		proj("1", "frontend", "10", "acme"),
		proj("2", "backend", "10", "acme"),
	)
	f.page("acme/frontend@", "cF", nil, "F1", "F2")
	f.page("acme/frontend@cF", "cF2", nil, "F3")
	f.page("acme/backend@", "", nil, "B1")
	p := newTestPipeline(t, f)
	ctx := context.Background()

	req := listReq("acme/")
	req.Limit = 4
	_, err := p.Run(ctx, req)
	require.NoError(t, err)

	// Same targets, different sort: the stored cursor must not apply, so the
	// run starts fresh (first pages again).
	req.Cursor = "last"
	req.Sort = "freq"
	res, err := p.Run(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)
}

func TestAllTargetsFail(t *testing.T) {
	f := newFakeService(
		proj("1", "frontend", "10", "acme"),
		proj("2", "backend", "10", "acme"),
	)
	f.page("acme/frontend@", "", &types.ApiError{Status: 502, Endpoint: "/a"})
	f.page("acme/backend@", "", &types.ApiError{Status: 502, Endpoint: "/b"})
	p := newTestPipeline(t, f)

	req := listReq("acme/")
	_, err := p.Run(context.Background(), req)
	var multi *types.MultiFetchError
	require.ErrorAs(t, err, &multi)
	require.Equal(t, 502, multi.Status)
	require.Equal(t, types.ExitAPI, types.ExitCode(err))
}

func TestPartialFailureReported(t *testing.T) {
	f := newFakeService(
		proj("1", "frontend", "10", "acme"),
		proj("2", "backend", "10", "acme"),
	)
	f.page("acme/frontend@", "", nil, "F1")
	f.page("acme/backend@", "", &types.ApiError{Status: 500, Endpoint: "/b", Detail: "boom"})
	p := newTestPipeline(t, f)

	res, err := p.Run(context.Background(), listReq("acme/"))
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "acme/backend", res.Errors[0].Target)
	require.Equal(t, 500, res.Errors[0].Status)
}

func TestWideOrgUsesOrgEndpoint(t *testing.T) {
	projects := make([]api.Project, 0, maxOrgFanout+1)
	for i := 0; i <= maxOrgFanout; i++ {
		projects = append(projects, proj(fmt.Sprint(100+i), fmt.Sprintf("svc-%02d", i), "10", "acme"))
	}
	f := newFakeService(projects...)
	f.page("acme@", "cO", nil, "O1", "O2")
	f.page("acme@cO", "", nil, "O3")
	p := newTestPipeline(t, f)
	ctx := context.Background()

	req := listReq("acme/")
	req.Limit = 5
	res, err := p.Run(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	require.False(t, res.HasMore)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, call := range f.calls {
		require.NotContains(t, call, "/", "per-project endpoints must not be used for wide orgs")
	}
}

func TestWideOrgResumeReadsSinglePage(t *testing.T) {
	projects := make([]api.Project, 0, maxOrgFanout+1)
	for i := 0; i <= maxOrgFanout; i++ {
		projects = append(projects, proj(fmt.Sprint(100+i), fmt.Sprintf("svc-%02d", i), "10", "acme"))
	}
	f := newFakeService(projects...)
	f.page("acme@", "cO", nil, "O1", "O2", "O3", "O4", "O5")
	f.page("acme@cO", "cO2", nil, "O6")
	p := newTestPipeline(t, f)
	ctx := context.Background()

	req := listReq("acme/")
	req.Limit = 5
	_, err := p.Run(ctx, req)
	require.NoError(t, err)

	req.Cursor = "last"
	res, err := p.Run(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "O6", res.Rows[0].Issue.ID)
	require.True(t, res.HasMore)
}

func TestJSONOutput(t *testing.T) {
	f := newFakeService()
	f.page("acme/frontend@", "", nil, "A1")
	p := newTestPipeline(t, f)

	res, err := p.Run(context.Background(), listReq("acme/frontend"))
	require.NoError(t, err)

	data, err := res.JSON()
	require.NoError(t, err)
	require.Contains(t, string(data), `"hasMore": false`)
	require.Contains(t, string(data), `"A1"`)
}

func TestHintSuggestsDoubledLimit(t *testing.T) {
	f := newFakeService(
		proj("1", "frontend", "10", "acme"),
		proj("2", "backend", "10", "acme"),
	)
	// Both targets exhausted, but the per-target quotas fetch one more issue
	// than the limit allows to show.
	f.page("acme/frontend@", "", nil, "F1", "F2")
	f.page("acme/backend@", "", nil, "B1", "B2")
	p := newTestPipeline(t, f)

	req := listReq("acme/")
	req.Limit = 3
	res, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	require.Contains(t, res.Hint, "-n 6")
}
