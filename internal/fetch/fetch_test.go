package fetch

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spyglass-cli/spyglass/internal/api"
	"github.com/spyglass-cli/spyglass/internal/types"
)

// pageKey identifies one scripted response: target key plus the cursor the
// request arrives with.
type pageKey struct {
	target string
	cursor string
}

type scriptedPage struct {
	issues []types.Issue
	next   string
	err    error
}

// fakeLister serves scripted pages and records every request.
type fakeLister struct {
	mu    sync.Mutex
	pages map[pageKey]scriptedPage
	calls []pageKey
}

func newFakeLister() *fakeLister {
	return &fakeLister{pages: map[pageKey]scriptedPage{}}
}

func (f *fakeLister) page(target, cursor string, next string, err error, ids ...string) {
	issues := make([]types.Issue, len(ids))
	for i, id := range ids {
		issues[i] = types.Issue{ID: id, Title: "issue " + id}
	}
	f.pages[pageKey{target, cursor}] = scriptedPage{issues: issues, next: next, err: err}
}

func (f *fakeLister) ListProjectIssues(_ context.Context, org, project string, opts api.IssueListOptions) (*types.IssuesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pageKey{org + "/" + project, opts.Cursor}
	f.calls = append(f.calls, key)
	p, ok := f.pages[key]
	if !ok {
		return nil, fmt.Errorf("unscripted request: %v", key)
	}
	if p.err != nil {
		return nil, p.err
	}
	issues := p.issues
	if opts.Limit > 0 && len(issues) > opts.Limit {
		issues = issues[:opts.Limit]
	}
	return &types.IssuesPage{Issues: issues, NextCursor: p.next}, nil
}

func (f *fakeLister) callCount(target string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.target == target {
			n++
		}
	}
	return n
}

func tgt(org, project string) types.Target {
	return types.Target{OrgSlug: org, ProjectSlug: project}
}

func resultFor(t *testing.T, results []types.FetchResult, key string) types.FetchResult {
	t.Helper()
	for _, r := range results {
		if r.Target.Key() == key {
			return r
		}
	}
	t.Fatalf("no result for %s", key)
	return types.FetchResult{}
}

func issueIDs(issues []types.Issue) []string {
	out := make([]string, len(issues))
	for i, iss := range issues {
		out[i] = iss.ID
	}
	return out
}

func TestFetchSingleTargetNoCursor(t *testing.T) {
	f := newFakeLister()
	f.page("acme/frontend", "", "", nil, "A1", "A2", "A3")

	results, err := Fetch(context.Background(), f, []types.Target{tgt("acme", "frontend")}, Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, types.FetchOK, results[0].Outcome)
	require.Equal(t, []string{"A1", "A2", "A3"}, issueIDs(results[0].Issues))
	require.Empty(t, results[0].NextCursor)
}

func TestFetchRedistribution(t *testing.T) {
	// limit=4 over 2 targets: quota 2. Frontend fills its quota and has more;
	// backend is exhausted after one issue. Phase 2 gives frontend the
	// deficit of max(1, ceil(1/1)) = 1 extra.
	f := newFakeLister()
	f.page("acme/frontend", "", "cF", nil, "F1", "F2")
	f.page("acme/frontend", "cF", "cF2", nil, "F3")
	f.page("acme/backend", "", "", nil, "B1")

	var progress []int
	results, err := Fetch(context.Background(), f,
		[]types.Target{tgt("acme", "frontend"), tgt("acme", "backend")},
		Options{Limit: 4, OnProgress: func(n int) { progress = append(progress, n) }})
	require.NoError(t, err)

	front := resultFor(t, results, "acme/frontend")
	require.Equal(t, []string{"F1", "F2", "F3"}, issueIDs(front.Issues))
	require.Equal(t, "cF2", front.NextCursor)

	back := resultFor(t, results, "acme/backend")
	require.Equal(t, []string{"B1"}, issueIDs(back.Issues))
	require.Empty(t, back.NextCursor)

	require.Equal(t, []int{3, 4}, progress)
}

func TestFetchPhase2RunsAtMostOnce(t *testing.T) {
	// limit=8 over 2 targets: quota 4. Frontend fills its quota; backend is
	// exhausted early. Phase 2 asks frontend for the deficit but gets a short
	// page; the budget is still not met, and the coordinator must stop rather
	// than keep paginating.
	f := newFakeLister()
	f.page("acme/frontend", "", "c1", nil, "F1", "F2", "F3", "F4")
	f.page("acme/frontend", "c1", "c2", nil, "F5", "F6")
	f.page("acme/backend", "", "", nil, "B1")

	results, err := Fetch(context.Background(), f,
		[]types.Target{tgt("acme", "frontend"), tgt("acme", "backend")},
		Options{Limit: 8})
	require.NoError(t, err)
	require.Equal(t, 2, f.callCount("acme/frontend"))
	require.Equal(t, "c2", resultFor(t, results, "acme/frontend").NextCursor)
}

func TestFetchResumeSkipsExhausted(t *testing.T) {
	f := newFakeLister()
	f.page("acme/frontend", "cF2", "", nil, "F4")

	results, err := Fetch(context.Background(), f,
		[]types.Target{tgt("acme", "frontend"), tgt("acme", "backend")},
		Options{
			Limit:        4,
			Resuming:     true,
			StartCursors: map[string]string{"acme/frontend": "cF2"},
		})
	require.NoError(t, err)

	require.Zero(t, f.callCount("acme/backend"), "exhausted target must not be restarted")

	front := resultFor(t, results, "acme/frontend")
	require.Equal(t, []string{"F4"}, issueIDs(front.Issues))
	require.Empty(t, front.NextCursor)

	back := resultFor(t, results, "acme/backend")
	require.Equal(t, types.FetchOK, back.Outcome)
	require.Empty(t, back.Issues)
}

func TestFetchSingleFailureIsLocal(t *testing.T) {
	f := newFakeLister()
	f.page("acme/frontend", "", "", nil, "F1")
	f.page("acme/backend", "", "", &types.ApiError{Status: 500, Endpoint: "/x"})

	results, err := Fetch(context.Background(), f,
		[]types.Target{tgt("acme", "frontend"), tgt("acme", "backend")},
		Options{Limit: 10})
	require.NoError(t, err)

	require.Equal(t, types.FetchOK, resultFor(t, results, "acme/frontend").Outcome)
	back := resultFor(t, results, "acme/backend")
	require.Equal(t, types.FetchFailed, back.Outcome)
	require.Error(t, back.Err)
}

func TestFetchAllFail(t *testing.T) {
	f := newFakeLister()
	f.page("acme/frontend", "", "", &types.ApiError{Status: 502, Endpoint: "/a"})
	f.page("acme/backend", "", "", &types.ApiError{Status: 502, Endpoint: "/b"})

	_, err := Fetch(context.Background(), f,
		[]types.Target{tgt("acme", "frontend"), tgt("acme", "backend")},
		Options{Limit: 10})

	var multi *types.MultiFetchError
	require.ErrorAs(t, err, &multi)
	require.Equal(t, 2, multi.Count)
	require.Equal(t, 502, multi.Status)
	require.Contains(t, err.Error(), "Failed to fetch issues from 2 project(s)")
}

func TestFetchAuthErrorAborts(t *testing.T) {
	f := newFakeLister()
	f.page("acme/frontend", "", "", nil, "F1")
	f.page("acme/backend", "", "", &types.AuthError{Reason: "token expired"})

	_, err := Fetch(context.Background(), f,
		[]types.Target{tgt("acme", "frontend"), tgt("acme", "backend")},
		Options{Limit: 10})

	var authErr *types.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestFetchFailedResumeKeepsStartCursor(t *testing.T) {
	// A target that fails mid-chain keeps its start cursor so the next
	// -c last retries from the same position.
	f := newFakeLister()
	f.page("acme/frontend", "cF9", "", &types.ApiError{Status: 500, Endpoint: "/x"})
	f.page("acme/backend", "cB3", "", nil, "B4")

	results, err := Fetch(context.Background(), f,
		[]types.Target{tgt("acme", "frontend"), tgt("acme", "backend")},
		Options{
			Limit:    5,
			Resuming: true,
			StartCursors: map[string]string{
				"acme/frontend": "cF9",
				"acme/backend":  "cB3",
			},
		})
	require.NoError(t, err)

	front := resultFor(t, results, "acme/frontend")
	require.Equal(t, types.FetchFailed, front.Outcome)
	require.Equal(t, "cF9", front.StartCursor)
}

func TestFlattenDedupsByID(t *testing.T) {
	results := []types.FetchResult{
		{Outcome: types.FetchOK, Target: tgt("acme", "frontend"), Issues: []types.Issue{{ID: "1"}, {ID: "2"}}},
		{Outcome: types.FetchOK, Target: tgt("acme", "frontend-dup"), Issues: []types.Issue{{ID: "2"}, {ID: "3"}}},
		{Outcome: types.FetchFailed, Target: tgt("acme", "broken"), Err: fmt.Errorf("boom")},
	}
	items := Flatten(results)
	require.Equal(t, []string{"1", "2", "3"}, func() []string {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = it.Issue.ID
		}
		return out
	}())
	require.Equal(t, "acme/frontend", items[1].Target.Key(), "first occurrence wins")
}

func TestSortItems(t *testing.T) {
	mk := func(id, lastSeen, firstSeen, count string, users int) Item {
		return Item{Issue: types.Issue{ID: id, LastSeen: lastSeen, FirstSeen: firstSeen, Count: count, UserCount: users}}
	}
	base := []Item{
		mk("a", "2026-08-20T10:00:00Z", "2026-08-01T00:00:00Z", "5", 1),
		mk("b", "2026-08-25T10:00:00Z", "2026-07-01T00:00:00Z", "50", 9),
		mk("c", "", "2026-08-10T00:00:00Z", "bogus", 3),
	}

	order := func(sortKey string) []string {
		items := append([]Item(nil), base...)
		SortItems(items, sortKey)
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = it.Issue.ID
		}
		return out
	}

	require.Equal(t, []string{"b", "a", "c"}, order("date"), "missing last_seen sorts as epoch")
	require.Equal(t, []string{"c", "a", "b"}, order("new"))
	require.Equal(t, []string{"b", "a", "c"}, order("freq"), "malformed count sorts as zero")
	require.Equal(t, []string{"b", "c", "a"}, order("user"))
}

func TestSortTiesKeepDiscoveryOrder(t *testing.T) {
	items := []Item{
		{Issue: types.Issue{ID: "x", LastSeen: "2026-08-25T10:00:00Z"}, Target: tgt("acme", "frontend")},
		{Issue: types.Issue{ID: "y", LastSeen: "2026-08-25T10:00:00Z"}, Target: tgt("acme", "backend")},
	}
	SortItems(items, "date")
	require.Equal(t, "x", items[0].Issue.ID)
	require.Equal(t, "y", items[1].Issue.ID)
}

func TestTrimFairOnePerProject(t *testing.T) {
	// Three targets with five issues each, limit 3: exactly one issue per
	// target, each the project's highest-ranked in the global order.
	var items []Item
	for p, project := range []string{"alpha", "beta", "gamma"} {
		for i := 0; i < 5; i++ {
			items = append(items, Item{
				Issue:  types.Issue{ID: fmt.Sprintf("%s-%d", project, i), LastSeen: fmt.Sprintf("2026-08-%02dT00:00:00Z", 20-p-i*3)},
				Target: tgt("acme", project),
			})
		}
	}
	SortItems(items, "date")
	trimmed := TrimFair(items, 3)

	require.Len(t, trimmed, 3)
	seen := map[string]bool{}
	for _, it := range trimmed {
		require.False(t, seen[it.Target.Key()])
		seen[it.Target.Key()] = true
		require.Equal(t, it.Target.ProjectSlug+"-0", it.Issue.ID, "each project's top-ranked issue wins")
	}
}

func TestTrimFairFillsFromTop(t *testing.T) {
	mk := func(id, project, lastSeen string) Item {
		return Item{Issue: types.Issue{ID: id, LastSeen: lastSeen}, Target: tgt("acme", project)}
	}
	items := []Item{
		mk("a1", "alpha", "2026-08-25T00:00:00Z"),
		mk("a2", "alpha", "2026-08-24T00:00:00Z"),
		mk("a3", "alpha", "2026-08-23T00:00:00Z"),
		mk("b1", "beta", "2026-08-22T00:00:00Z"),
	}
	trimmed := TrimFair(items, 3)
	require.Equal(t, []string{"a1", "a2", "b1"}, func() []string {
		out := make([]string, len(trimmed))
		for i, it := range trimmed {
			out[i] = it.Issue.ID
		}
		return out
	}())
}

func TestTrimFairNoTrimNeeded(t *testing.T) {
	items := []Item{{Issue: types.Issue{ID: "only"}}}
	require.Len(t, TrimFair(items, 5), 1)
}
