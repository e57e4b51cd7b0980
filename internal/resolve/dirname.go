package resolve

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spyglass-cli/spyglass/internal/types"
)

// minDirNameLength rejects directory names too short to be meaningful slugs.
const minDirNameLength = 3

// inferFromDirName is the last detection resort: match the project root's
// basename against accessible project slugs. Returns nil when the name is
// unusable or nothing matches.
func (r *Resolver) inferFromDirName(ctx context.Context) (*types.TargetResolution, error) {
	name := strings.ToLower(filepath.Base(findProjectRoot(r.workDir())))
	if strings.HasPrefix(name, ".") || len(name) < minDirNameLength {
		return nil, nil
	}

	projects, err := r.API.ListAccessibleProjects(ctx)
	if err != nil {
		return nil, err
	}

	res := &types.TargetResolution{}
	for _, p := range projects {
		if p.Organization == nil || !wordBoundaryMatch(strings.ToLower(p.Slug), name) {
			continue
		}
		res.Targets = append(res.Targets, types.Target{
			OrgSlug:     p.Organization.Slug,
			OrgName:     p.Organization.Name,
			ProjectSlug: p.Slug,
			ProjectName: p.Name,
			Source:      "directory name",
		})
	}
	if len(res.Targets) == 0 {
		return nil, nil
	}
	dedupeTargets(res)
	return res, nil
}

// wordBoundaryMatch reports whether name occurs in slug on word boundaries.
// A boundary is the string start, the string end, or a non-word character.
// Underscore counts as a word character, so "front" does not match
// "front_end" but does match "front-end".
func wordBoundaryMatch(slug, name string) bool {
	for from := 0; ; {
		i := strings.Index(slug[from:], name)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(name)
		if (start == 0 || !isWordChar(slug[start-1])) &&
			(end == len(slug) || !isWordChar(slug[end])) {
			return true
		}
		from = start + 1
	}
}

func isWordChar(c byte) bool {
	return c == '_' ||
		c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9'
}
