// Package pipeline composes the issue listing end to end: parse the target
// argument, resolve targets, fetch concurrently, assign aliases, persist
// cursors, and sort/trim the merged result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spyglass-cli/spyglass/internal/alias"
	"github.com/spyglass-cli/spyglass/internal/api"
	"github.com/spyglass-cli/spyglass/internal/cursor"
	"github.com/spyglass-cli/spyglass/internal/fetch"
	"github.com/spyglass-cli/spyglass/internal/resolve"
	"github.com/spyglass-cli/spyglass/internal/store"
	"github.com/spyglass-cli/spyglass/internal/timeparsing"
	"github.com/spyglass-cli/spyglass/internal/types"
)

// MaxLimit caps -n; deeper listings continue via -c last.
const MaxLimit = 1000

// maxOrgFanout bounds how many per-project fetches an org/ target may fan out
// to. Larger orgs go through the org-level issues endpoint with a single
// cursor instead.
const maxOrgFanout = 20

// IssueAPI is the slice of the API client the pipeline needs. *api.Client
// satisfies it.
type IssueAPI interface {
	fetch.Lister
	ListOrgIssues(ctx context.Context, org string, opts api.IssueListOptions) (*types.IssuesPage, error)
}

// Pipeline wires the listing stages together.
type Pipeline struct {
	Store    *store.Store
	API      IssueAPI
	Resolver *resolve.Resolver

	// BaseURL scopes context keys to the deployment they were created
	// against.
	BaseURL string

	// Progress, when set, receives the running fetched-issue count after
	// each coordinator phase.
	Progress func(fetched int)

	// Now is the clock used for period parsing; defaults to time.Now.
	Now func() time.Time
}

// Request is one issue listing invocation.
type Request struct {
	TargetArg string
	Flags     resolve.Flags

	Query  string
	Sort   string // date | new | freq | user
	Period string // compact ("14d") or natural language ("2 weeks ago")
	Limit  int
	Cursor string // "last" to resume, or a previously printed cursor
}

// Row is one output line: the issue plus its display tags.
type Row struct {
	Alias   string
	Project string
	Issue   types.Issue
}

// TargetError describes one target whose fetch failed while others
// succeeded.
type TargetError struct {
	Target  string
	Status  int
	Message string
}

// Result is the listing outcome.
type Result struct {
	Rows    []Row
	Footer  string
	Hint    string
	HasMore bool

	// Cursor is the encoded continuation cursor when HasMore.
	Cursor string

	// Errors lists targets that failed but were locally recovered.
	Errors []TargetError

	// Warnings are non-fatal persistence problems.
	Warnings []string
}

var validSorts = map[string]bool{"date": true, "new": true, "freq": true, "user": true}

// Run executes one listing.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := p.validate(&req); err != nil {
		return nil, err
	}

	parsed, err := resolve.ParseTargetArg(req.TargetArg)
	if err != nil {
		return nil, err
	}
	if parsed.Mode == types.ModeIssueID {
		return nil, types.NewValidationError(
			"a numeric issue id is not a listing target",
			"use spy issues update for single issues, or pass org/project")
	}

	res, err := p.Resolver.Resolve(ctx, parsed, req.Flags)
	if err != nil {
		return nil, err
	}

	params := cursor.ContextParams{
		Host:   p.BaseURL,
		Sort:   req.Sort,
		Period: req.Period,
		Query:  req.Query,
	}

	if parsed.Mode == types.ModeOrgAll && len(res.Targets) > maxOrgFanout {
		return p.runOrgAll(ctx, parsed.Org, req, params)
	}
	return p.runMultiTarget(ctx, req, res, params)
}

func (p *Pipeline) validate(req *Request) error {
	if req.Limit < 1 {
		return types.NewValidationError("limit must be at least 1", "")
	}
	if req.Limit > MaxLimit {
		return types.NewValidationError(
			fmt.Sprintf("limit must be at most %d", MaxLimit),
			"use -c last to page through more results")
	}
	if req.Sort == "" {
		req.Sort = "date"
	}
	if !validSorts[req.Sort] {
		return types.NewValidationError(
			fmt.Sprintf("invalid sort %q", req.Sort), "one of: date, new, freq, user")
	}
	if resolve.IsAllDigits(req.Cursor) {
		return types.NewValidationError(
			fmt.Sprintf("%q is not a valid cursor", req.Cursor),
			"use -c last to resume the previous listing")
	}

	if req.Period == "" {
		req.Period = timeparsing.DefaultPeriod
		return nil
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	period, err := timeparsing.ParsePeriod(req.Period, now())
	if err != nil {
		return err
	}
	req.Period = period
	return nil
}

// runMultiTarget is the coordinator path: explicit targets, project search,
// detection, and small org-all fanouts.
func (p *Pipeline) runMultiTarget(ctx context.Context, req Request, res *types.TargetResolution, params cursor.ContextParams) (*Result, error) {
	targets := res.Targets
	sortedKeys := cursor.SortedTargetKeys(targets)
	ctxKey := cursor.MultiTargetContextKey(targets, params)

	starts, resuming, err := p.startCursors(ctx, req.Cursor, ctxKey, sortedKeys)
	if err != nil {
		return nil, err
	}

	results, err := fetch.Fetch(ctx, p.API, targets, fetch.Options{
		Query:        req.Query,
		Sort:         req.Sort,
		Period:       req.Period,
		Limit:        req.Limit,
		StartCursors: starts,
		Resuming:     resuming,
		OnProgress:   p.Progress,
	})
	if err != nil {
		return nil, err
	}

	out := &Result{Footer: res.Footer}

	aliases := p.persistAliases(ctx, out, targets, res.Fingerprint)
	encoded := p.persistCursor(ctx, out, ctxKey, sortedKeys, results)

	items := fetch.Flatten(results)
	fetch.SortItems(items, req.Sort)
	trimmed := fetch.TrimFair(items, req.Limit)

	multi := len(targets) >= 2
	for _, it := range trimmed {
		row := Row{Project: it.Target.ProjectSlug, Issue: it.Issue}
		if multi {
			row.Alias = aliases[it.Target.Key()]
		}
		out.Rows = append(out.Rows, row)
	}

	for _, r := range results {
		if r.Outcome != types.FetchFailed {
			continue
		}
		te := TargetError{Target: r.Target.Key(), Message: r.Err.Error()}
		var apiErr *types.ApiError
		if errors.As(r.Err, &apiErr) {
			te.Status = apiErr.Status
		}
		out.Errors = append(out.Errors, te)
	}

	out.HasMore = cursor.HasNext(encoded)
	if out.HasMore {
		out.Cursor = encoded
	}
	out.Hint = continuationHint(req.Limit, len(items) > len(trimmed), out.HasMore)
	return out, nil
}

// runOrgAll is the wide-org path: one cursor against the org-level issues
// endpoint.
func (p *Pipeline) runOrgAll(ctx context.Context, org string, req Request, params cursor.ContextParams) (*Result, error) {
	ctxKey := cursor.OrgContextKey(org, params)

	start := ""
	resuming := false
	switch {
	case req.Cursor == "last":
		stored, err := cursor.LoadRaw(ctx, p.Store, ctxKey)
		if err != nil {
			return nil, err
		}
		start = stored
		resuming = stored != ""
	case req.Cursor != "":
		start = req.Cursor
		resuming = true
	}

	var issues []types.Issue
	next := start
	for {
		page, err := p.API.ListOrgIssues(ctx, org, api.IssueListOptions{
			Query:  req.Query,
			Sort:   req.Sort,
			Period: req.Period,
			Cursor: next,
			Limit:  req.Limit - len(issues),
		})
		if err != nil {
			return nil, err
		}
		issues = append(issues, page.Issues...)
		next = page.NextCursor
		// Resuming reads a single page; fresh runs paginate up to the limit.
		if resuming || next == "" || len(issues) >= req.Limit || len(page.Issues) == 0 {
			break
		}
	}
	if len(issues) > req.Limit {
		issues = issues[:req.Limit]
	}

	out := &Result{}
	if err := cursor.Save(ctx, p.Store, ctxKey, next); err != nil {
		out.Warnings = append(out.Warnings, "could not persist pagination cursor: "+err.Error())
	}
	if err := p.Store.ClearProjectAliases(ctx); err != nil {
		out.Warnings = append(out.Warnings, "could not clear alias table: "+err.Error())
	}

	for _, iss := range issues {
		out.Rows = append(out.Rows, Row{Project: iss.Project.Slug, Issue: iss})
	}
	out.HasMore = next != ""
	if out.HasMore {
		out.Cursor = next
	}
	out.Hint = continuationHint(req.Limit, false, out.HasMore)
	return out, nil
}

// startCursors resolves the -c flag into per-target start cursors.
func (p *Pipeline) startCursors(ctx context.Context, flag, ctxKey string, sortedKeys []string) (map[string]string, bool, error) {
	switch {
	case flag == "":
		return nil, false, nil
	case flag == "last":
		starts, err := cursor.Load(ctx, p.Store, ctxKey, sortedKeys)
		if err != nil {
			return nil, false, err
		}
		return starts, starts != nil, nil
	default:
		starts := cursor.DecodeCompound(flag, sortedKeys)
		if starts == nil {
			return nil, false, types.NewValidationError(
				"cursor does not match the current target set",
				"use -c last to resume the previous listing")
		}
		return starts, true, nil
	}
}

// persistAliases stores (or clears) the alias table and returns the
// assignment for row tagging.
func (p *Pipeline) persistAliases(ctx context.Context, out *Result, targets []types.Target, fingerprint string) alias.Assignment {
	if len(targets) < 2 {
		if err := p.Store.ClearProjectAliases(ctx); err != nil {
			out.Warnings = append(out.Warnings, "could not clear alias table: "+err.Error())
		}
		return nil
	}
	assignment := alias.Assign(targets)
	if err := p.Store.SetProjectAliases(ctx, alias.Entries(targets, assignment), fingerprint); err != nil {
		out.Warnings = append(out.Warnings, "could not persist alias table: "+err.Error())
	}
	return assignment
}

// persistCursor encodes and stores the compound cursor. Failed targets keep
// the cursor they started from so the next resume retries the same position;
// first-page failures store the empty segment.
func (p *Pipeline) persistCursor(ctx context.Context, out *Result, ctxKey string, sortedKeys []string, results []types.FetchResult) string {
	cursors := make(map[string]string, len(results))
	for _, r := range results {
		switch r.Outcome {
		case types.FetchOK:
			cursors[r.Target.Key()] = r.NextCursor
		case types.FetchFailed:
			cursors[r.Target.Key()] = r.StartCursor
		}
	}
	encoded := cursor.EncodeCompound(sortedKeys, cursors)
	if err := cursor.Save(ctx, p.Store, ctxKey, encoded); err != nil {
		out.Warnings = append(out.Warnings, "could not persist pagination cursor: "+err.Error())
	}
	return encoded
}

// continuationHint suggests the actionable way to see more results.
func continuationHint(limit int, trimmed, hasMore bool) string {
	if trimmed && limit*2 <= MaxLimit {
		return fmt.Sprintf("more results available; re-run with -n %d", limit*2)
	}
	if hasMore || trimmed {
		return "more results available; re-run with -c last"
	}
	return ""
}
