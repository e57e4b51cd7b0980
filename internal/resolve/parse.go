// Package resolve turns a positional target argument - or nothing at all -
// into the list of (org, project) pairs an invocation operates on. The
// auto-detect path scans the working tree for embedded client-key identifiers
// and falls back to directory-name inference.
package resolve

import (
	"net/url"
	"strings"

	"github.com/spyglass-cli/spyglass/internal/types"
)

// ParseTargetArg interprets a positional target argument. Patterns are tried
// in order; the first match wins:
//
//	""            auto-detect
//	org/project   explicit
//	org/          org-all
//	/project      project-search
//	project       project-search (no slash, not all digits)
//	123456        numeric issue id
//	https://...   service UI URL
func ParseTargetArg(arg string) (types.ParsedTarget, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return types.ParsedTarget{Mode: types.ModeAutoDetect}, nil
	}
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return parseServiceURL(arg)
	}
	if IsAllDigits(arg) {
		return types.ParsedTarget{Mode: types.ModeIssueID, IssueID: arg}, nil
	}

	switch i := strings.Index(arg, "/"); {
	case i < 0:
		return types.ParsedTarget{Mode: types.ModeProjectSearch, Project: arg}, nil
	case i == 0:
		project := arg[1:]
		if project == "" || strings.Contains(project, "/") {
			return types.ParsedTarget{}, types.NewValidationError(
				"invalid target "+quote(arg),
				"expected org/project, org/, /project, or a project slug")
		}
		return types.ParsedTarget{Mode: types.ModeProjectSearch, Project: project}, nil
	case i == len(arg)-1:
		return types.ParsedTarget{Mode: types.ModeOrgAll, Org: arg[:i]}, nil
	default:
		org, project := arg[:i], arg[i+1:]
		if strings.Contains(project, "/") {
			return types.ParsedTarget{}, types.NewValidationError(
				"invalid target "+quote(arg),
				"expected org/project, org/, /project, or a project slug")
		}
		return types.ParsedTarget{Mode: types.ModeExplicit, Org: org, Project: project}, nil
	}
}

// FormatTargetArg renders a parsed target back to its positional form.
// Round-trips with ParseTargetArg for explicit, org-all, and project-search.
func FormatTargetArg(p types.ParsedTarget) string {
	switch p.Mode {
	case types.ModeExplicit:
		return p.Org + "/" + p.Project
	case types.ModeOrgAll:
		return p.Org + "/"
	case types.ModeProjectSearch:
		return "/" + p.Project
	case types.ModeIssueID:
		return p.IssueID
	}
	return ""
}

// IsAllDigits reports whether s is non-empty and consists solely of ASCII
// digits. The empty string is not all-digits.
func IsAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseServiceURL extracts org/project/issue from a service UI URL. Supported
// shapes:
//
//	https://host/organizations/{org}/issues/{id}/
//	https://host/organizations/{org}/projects/{project}/
//	https://{org}.host/issues/{id}/
//	https://host/organizations/{org}/
//
// Trace URLs and org-only URLs still parse; issue-scoped callers reject them
// when IssueID is empty.
func parseServiceURL(raw string) (types.ParsedTarget, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return types.ParsedTarget{}, types.NewValidationError("invalid URL "+quote(raw), "")
	}

	out := types.ParsedTarget{Mode: types.ModeURL}
	segments := splitPath(u.Path)

	for i := 0; i < len(segments); i++ {
		switch segments[i] {
		case "organizations":
			if i+1 < len(segments) {
				out.Org = segments[i+1]
				i++
			}
		case "projects":
			if i+1 < len(segments) {
				out.Project = segments[i+1]
				i++
			}
		case "issues":
			if i+1 < len(segments) && IsAllDigits(segments[i+1]) {
				out.IssueID = segments[i+1]
				i++
			}
		case "trace", "performance":
			// Trace URLs carry no issue identity.
			return types.ParsedTarget{}, types.NewValidationError(
				"trace URLs do not identify an issue", "pass an issue URL or a numeric issue id")
		}
	}

	// Org-scoped subdomain form: {org}.host.
	if out.Org == "" {
		if labels := strings.Split(u.Hostname(), "."); len(labels) > 2 {
			out.Org = labels[0]
		}
	}

	if out.Org == "" && out.Project == "" && out.IssueID == "" {
		return types.ParsedTarget{}, types.NewValidationError(
			"could not extract a target from URL "+quote(raw), "")
	}
	return out, nil
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func quote(s string) string { return "\"" + s + "\"" }
