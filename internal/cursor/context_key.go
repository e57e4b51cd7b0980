// Package cursor implements cross-invocation pagination state: context keys
// that fingerprint a query, compound cursors that carry one position per
// target, and their persistence in the store.
package cursor

import (
	"sort"
	"strings"

	"github.com/spyglass-cli/spyglass/internal/types"
)

// CommandKey namespaces the issue-listing cursor chain in the store.
const CommandKey = "issues.list"

// escape makes a value safe to embed in a pipe-delimited key. Deterministic
// and reversible; only encoding is ever needed.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `|`, `\|`)
}

// ContextParams are the query parameters that decide whether two invocations
// share a cursor chain.
type ContextParams struct {
	Host   string // API base URL
	Sort   string
	Period string
	Query  string
}

// MultiTargetContextKey builds the context key for a multi-target listing.
// The target fingerprint is sorted, so the key is invariant under permutation
// of the target list.
func MultiTargetContextKey(targets []types.Target, p ContextParams) string {
	keys := SortedTargetKeys(targets)
	return buildKey("type:multi:"+strings.Join(keys, ","), p)
}

// OrgContextKey builds the context key for an org-all listing.
func OrgContextKey(org string, p ContextParams) string {
	return buildKey("type:org:"+escape(org), p)
}

func buildKey(typePart string, p ContextParams) string {
	parts := []string{
		"host:" + p.Host,
		typePart,
		"sort:" + p.Sort,
		"period:" + escape(p.Period),
	}
	if p.Query != "" {
		parts = append(parts, "q:"+escape(p.Query))
	}
	return strings.Join(parts, "|")
}

// SortedTargetKeys returns the targets' "org/project" keys in the stable
// lexicographic order that compound cursor segments align to.
func SortedTargetKeys(targets []types.Target) []string {
	keys := make([]string, len(targets))
	for i, t := range targets {
		keys[i] = t.Key()
	}
	sort.Strings(keys)
	return keys
}
