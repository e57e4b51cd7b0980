// Package alias assigns short, stable aliases to the projects of a
// multi-target listing so users can reference results without typing full
// org/project pairs.
package alias

import (
	"sort"
	"strings"

	"github.com/spyglass-cli/spyglass/internal/store"
	"github.com/spyglass-cli/spyglass/internal/types"
)

// Assignment maps "org/project" keys to their alias.
type Assignment map[string]string

// Assign computes aliases for the given targets:
//
//   - Within one org, each project gets the shortest unique prefix of its
//     slug, computed after stripping any hyphen-token prefix common to all
//     slugs in that org (so spotlight-electron / spotlight-website /
//     spotlight become e / w / s, not s / s / s).
//   - When the same alias would appear under two orgs, the colliding entries
//     are qualified with the shortest unique prefix of their org slug plus
//     "/".
//
// Aliases are lowercase and pairwise distinct across the result set.
func Assign(targets []types.Target) Assignment {
	byOrg := make(map[string][]string)
	for _, t := range targets {
		byOrg[t.OrgSlug] = append(byOrg[t.OrgSlug], t.ProjectSlug)
	}

	// Per-org project aliases.
	perOrg := make(map[string]map[string]string, len(byOrg)) // org -> project -> alias
	for org, slugs := range byOrg {
		perOrg[org] = projectAliases(slugs)
	}

	// Cross-org collision pass.
	uses := make(map[string][]string) // alias -> orgs using it
	for org, aliases := range perOrg {
		for _, a := range aliases {
			uses[a] = appendUnique(uses[a], org)
		}
	}
	orgSlugs := make([]string, 0, len(byOrg))
	for org := range byOrg {
		orgSlugs = append(orgSlugs, org)
	}
	orgPrefix := shortestUniquePrefixes(orgSlugs)

	out := make(Assignment, len(targets))
	for _, t := range targets {
		a := perOrg[t.OrgSlug][t.ProjectSlug]
		if len(uses[a]) > 1 {
			a = orgPrefix[t.OrgSlug] + "/" + a
		}
		out[t.Key()] = strings.ToLower(a)
	}
	return out
}

// projectAliases computes aliases for one org's project slugs.
func projectAliases(slugs []string) map[string]string {
	common := commonTokenPrefix(slugs)
	stripped := make([]string, len(slugs))
	for i, slug := range slugs {
		s := strings.TrimPrefix(slug, common)
		if s == "" {
			s = slug // aliases must be non-empty
		}
		stripped[i] = s
	}

	prefixes := shortestUniquePrefixes(stripped)
	out := make(map[string]string, len(slugs))
	for i, slug := range slugs {
		out[slug] = prefixes[stripped[i]]
	}
	return out
}

// commonTokenPrefix returns the hyphen-token prefix shared by every slug,
// including the trailing hyphen ("spotlight-"), or "" when the slugs share
// nothing. Alignment is on token boundaries: "spot" is not a token prefix of
// "spotlight-web".
func commonTokenPrefix(slugs []string) string {
	if len(slugs) < 2 {
		return ""
	}
	first := strings.Split(slugs[0], "-")
	shared := len(first)
	for _, slug := range slugs[1:] {
		tokens := strings.Split(slug, "-")
		n := 0
		for n < shared && n < len(tokens) && tokens[n] == first[n] {
			n++
		}
		shared = n
		if shared == 0 {
			return ""
		}
	}
	// The trailing hyphen keeps a slug that IS the common prefix from being
	// stripped: "spotlight" has no "spotlight-" prefix and survives intact.
	return strings.Join(first[:shared], "-") + "-"
}

// shortestUniquePrefixes returns, for each distinct string, its shortest
// prefix not shared with any other distinct string in the set. Strings that
// are prefixes of other entries fall back to themselves.
func shortestUniquePrefixes(values []string) map[string]string {
	distinct := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			distinct = append(distinct, v)
		}
	}

	out := make(map[string]string, len(distinct))
	for _, v := range distinct {
		out[v] = v
		for n := 1; n <= len(v); n++ {
			prefix := v[:n]
			unique := true
			for _, other := range distinct {
				if other == v {
					continue
				}
				if strings.HasPrefix(other, prefix) {
					unique = false
					break
				}
			}
			if unique {
				out[v] = prefix
				break
			}
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// Entries converts an assignment into store rows, in stable alias order.
func Entries(targets []types.Target, a Assignment) []store.AliasEntry {
	out := make([]store.AliasEntry, 0, len(targets))
	for _, t := range targets {
		out = append(out, store.AliasEntry{
			Alias:       a[t.Key()],
			OrgSlug:     t.OrgSlug,
			ProjectSlug: t.ProjectSlug,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

// SortedKeys returns the assignment's keys in stable order, for output.
func (a Assignment) SortedKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
