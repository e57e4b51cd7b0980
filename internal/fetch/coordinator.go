// Package fetch implements the concurrent multi-target issue fetch: a
// two-phase budgeted pull across targets, followed by merged ordering and a
// fairness-aware trim.
package fetch

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/spyglass-cli/spyglass/internal/api"
	"github.com/spyglass-cli/spyglass/internal/types"
)

// Lister is the slice of the API client the coordinator needs. *api.Client
// satisfies it.
type Lister interface {
	ListProjectIssues(ctx context.Context, org, project string, opts api.IssueListOptions) (*types.IssuesPage, error)
}

// Progress is called after each phase with the total issues fetched so far.
type Progress func(fetched int)

// Options configure one coordinator run.
type Options struct {
	Query  string
	Sort   string
	Period string

	// Limit is the global issue budget L across all targets.
	Limit int

	// StartCursors maps "org/project" to the cursor each target resumes
	// from. Nil means a fresh run.
	StartCursors map[string]string

	// Resuming marks a -c last run: targets with no entry in StartCursors
	// were exhausted by an earlier invocation and are skipped, not restarted.
	Resuming bool

	OnProgress Progress
}

// Fetch runs the two-phase fetch over targets.
//
// Phase 1 gives every active target a quota of max(1, ceil(L/|active|)) and
// auto-paginates each up to that quota, concurrently. Phase 2 runs at most
// once: if the total is still under L, targets that filled their quota and
// have a next page each fetch one extra page of max(1, ceil(deficit/n)).
//
// One target failing does not fail the run; its result carries the error. An
// AuthError anywhere aborts immediately. When every active target fails the
// run returns a MultiFetchError preserving the first ApiError status.
func Fetch(ctx context.Context, lister Lister, targets []types.Target, opts Options) ([]types.FetchResult, error) {
	results := make([]types.FetchResult, len(targets))
	active := make([]int, 0, len(targets))
	for i, t := range targets {
		start := opts.StartCursors[t.Key()]
		results[i] = types.FetchResult{Outcome: types.FetchOK, Target: t, StartCursor: start}
		if opts.Resuming && start == "" {
			continue // exhausted on a previous run
		}
		active = append(active, i)
	}
	if len(active) == 0 {
		return results, nil
	}

	quota := ceilDiv(opts.Limit, len(active))

	g, gctx := errgroup.WithContext(ctx)
	for _, i := range active {
		i := i
		g.Go(func() error {
			r := &results[i]
			issues, next, err := fetchUpTo(gctx, lister, r.Target, opts, quota, r.StartCursor)
			if err != nil {
				var authErr *types.AuthError
				if errors.As(err, &authErr) {
					return err
				}
				r.Outcome = types.FetchFailed
				r.Err = err
				return nil
			}
			r.Issues = issues
			r.NextCursor = next
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fetched := countFetched(results)
	if opts.OnProgress != nil {
		opts.OnProgress(fetched)
	}

	if err := allFailed(results, active); err != nil {
		return nil, err
	}

	// Phase 2: one redistribution pass.
	if fetched < opts.Limit {
		expandable := make([]int, 0, len(active))
		for _, i := range active {
			r := results[i]
			if r.Outcome == types.FetchOK && len(r.Issues) == quota && r.NextCursor != "" {
				expandable = append(expandable, i)
			}
		}
		if len(expandable) > 0 {
			extra := ceilDiv(opts.Limit-fetched, len(expandable))
			g, gctx := errgroup.WithContext(ctx)
			for _, i := range expandable {
				i := i
				g.Go(func() error {
					r := &results[i]
					page, err := lister.ListProjectIssues(gctx, r.Target.OrgSlug, r.Target.ProjectSlug, api.IssueListOptions{
						Query:  opts.Query,
						Sort:   opts.Sort,
						Period: opts.Period,
						Cursor: r.NextCursor,
						Limit:  extra,
					})
					if err != nil {
						var authErr *types.AuthError
						if errors.As(err, &authErr) {
							return err
						}
						// The Phase-1 batch and its cursor stand; the extra
						// page is retried naturally on the next resume.
						return nil
					}
					r.Issues = append(r.Issues, page.Issues...)
					r.NextCursor = page.NextCursor
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return nil, err
			}
			if opts.OnProgress != nil {
				opts.OnProgress(countFetched(results))
			}
		}
	}

	return results, nil
}

// fetchUpTo auto-paginates one target until quota issues are collected or the
// listing is exhausted, returning the cursor for the page after the last one
// read.
func fetchUpTo(ctx context.Context, lister Lister, t types.Target, opts Options, quota int, cursor string) ([]types.Issue, string, error) {
	var out []types.Issue
	for len(out) < quota {
		page, err := lister.ListProjectIssues(ctx, t.OrgSlug, t.ProjectSlug, api.IssueListOptions{
			Query:  opts.Query,
			Sort:   opts.Sort,
			Period: opts.Period,
			Cursor: cursor,
			Limit:  quota - len(out),
		})
		if err != nil {
			return nil, "", err
		}
		out = append(out, page.Issues...)
		cursor = page.NextCursor
		if cursor == "" || len(page.Issues) == 0 {
			return out, "", nil
		}
	}
	return out, cursor, nil
}

// allFailed returns the composite error when every active target failed.
func allFailed(results []types.FetchResult, active []int) error {
	var first error
	status := 0
	for _, i := range active {
		r := results[i]
		if r.Outcome != types.FetchFailed {
			return nil
		}
		if first == nil {
			first = r.Err
		}
		var apiErr *types.ApiError
		if status == 0 && errors.As(r.Err, &apiErr) {
			status = apiErr.Status
		}
	}
	return &types.MultiFetchError{Count: len(active), Status: status, First: first}
}

func countFetched(results []types.FetchResult) int {
	n := 0
	for _, r := range results {
		if r.Outcome == types.FetchOK {
			n += len(r.Issues)
		}
	}
	return n
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 1
	}
	return (a + b - 1) / b
}
