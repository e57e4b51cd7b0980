package types

// Target identifies one (org, project) pair to list issues from. Equality is
// on the slug pair; display names and the detection source are informational.
type Target struct {
	OrgSlug     string
	ProjectSlug string
	OrgName     string
	ProjectName string

	// Source describes how the target was discovered, e.g. "argument",
	// "environment", "detected from .env.local", "directory name".
	Source string
}

// Key returns the canonical "org/project" identity used for dedup, cursor
// maps, and alias tables.
func (t Target) Key() string {
	return t.OrgSlug + "/" + t.ProjectSlug
}

// TargetMode tags the variants of a parsed positional target argument.
type TargetMode int

const (
	// ModeAutoDetect means no positional argument was given.
	ModeAutoDetect TargetMode = iota
	// ModeExplicit is "org/project".
	ModeExplicit
	// ModeOrgAll is "org/" - every project in the org.
	ModeOrgAll
	// ModeProjectSearch is "/project" or a bare slug - search across orgs.
	ModeProjectSearch
	// ModeIssueID is an all-digits numeric issue id.
	ModeIssueID
	// ModeURL is a service UI URL with org/project/issue components.
	ModeURL
)

func (m TargetMode) String() string {
	switch m {
	case ModeAutoDetect:
		return "auto"
	case ModeExplicit:
		return "explicit"
	case ModeOrgAll:
		return "org-all"
	case ModeProjectSearch:
		return "project-search"
	case ModeIssueID:
		return "issue-id"
	case ModeURL:
		return "url"
	}
	return "unknown"
}

// ParsedTarget is the discriminated result of parsing a positional target
// argument. Which fields are meaningful depends on Mode.
type ParsedTarget struct {
	Mode    TargetMode
	Org     string
	Project string
	IssueID string // ModeIssueID and ModeURL only
}

// TargetResolution is the outcome of target auto-detection: the ordered,
// deduplicated targets plus bookkeeping the pipeline reports to the user.
type TargetResolution struct {
	Targets []Target

	// SkippedSelfHosted counts embedded identifiers that could not be
	// resolved against the configured service (typically DSNs pointing at
	// another deployment).
	SkippedSelfHosted int

	// Fingerprint is derived from the set of detected identifiers and gates
	// validity of the persisted alias table.
	Fingerprint string

	// Footer is a human-readable note emitted when more than one distinct
	// target was resolved.
	Footer string
}

// FetchOutcome tags a per-target fetch result.
type FetchOutcome int

const (
	// FetchOK means the target's page(s) were retrieved.
	FetchOK FetchOutcome = iota
	// FetchFailed means the target's fetch errored; Err carries the cause.
	FetchFailed
)

// FetchResult is the per-target result of the coordinator: either a batch of
// issues with an optional continuation cursor, or a failure. A failed target
// never fails the whole fetch on its own.
type FetchResult struct {
	Outcome    FetchOutcome
	Target     Target
	Issues     []Issue
	NextCursor string

	// StartCursor is the cursor this target resumed from, if any. Kept so a
	// failed resume can retry from the same position on the next -c last.
	StartCursor string

	Err error
}
