package fetch

import (
	"sort"

	"github.com/spyglass-cli/spyglass/internal/types"
)

// Item is one issue tagged with the target that produced it.
type Item struct {
	Issue  types.Issue
	Target types.Target
}

// Flatten turns per-target results into a single sequence in discovery order
// (target index, then response order), dropping duplicate issue ids. The same
// issue can arrive from two targets when detection resolves one project under
// two sources.
func Flatten(results []types.FetchResult) []Item {
	var out []Item
	seen := make(map[string]bool)
	for _, r := range results {
		if r.Outcome != types.FetchOK {
			continue
		}
		for _, iss := range r.Issues {
			if iss.ID != "" && seen[iss.ID] {
				continue
			}
			seen[iss.ID] = true
			out = append(out, Item{Issue: iss, Target: r.Target})
		}
	}
	return out
}

// SortItems orders items by the listing sort key, descending, ties broken by
// discovery order. Sort keys are the CLI names: date (last seen), new (first
// seen), freq (event count), user (affected users).
func SortItems(items []Item, sortKey string) {
	less := func(a, b types.Issue) bool {
		switch sortKey {
		case "new":
			return types.SeenTime(a.FirstSeen).After(types.SeenTime(b.FirstSeen))
		case "freq":
			return a.CountValue() > b.CountValue()
		case "user":
			return a.UserCount > b.UserCount
		default: // date
			return types.SeenTime(a.LastSeen).After(types.SeenTime(b.LastSeen))
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return less(items[i].Issue, items[j].Issue)
	})
}

// TrimFair trims a sorted item list to limit, guaranteeing every project with
// at least one issue a slot whenever limit allows:
//
//  1. Walk the sorted list, marking the first item of each not-yet-seen
//     project "guaranteed" until all projects are covered or limit guarantees
//     are taken.
//  2. Fill the remaining slots from the top of the sorted list.
//  3. Emit in the original sorted order.
func TrimFair(items []Item, limit int) []Item {
	if len(items) <= limit {
		return items
	}

	selected := make([]bool, len(items))
	taken := 0
	covered := make(map[string]bool)
	for i, it := range items {
		if taken >= limit {
			break
		}
		key := it.Target.Key()
		if covered[key] {
			continue
		}
		covered[key] = true
		selected[i] = true
		taken++
	}
	for i := range items {
		if taken >= limit {
			break
		}
		if !selected[i] {
			selected[i] = true
			taken++
		}
	}

	out := make([]Item, 0, limit)
	for i, it := range items {
		if selected[i] {
			out = append(out, it)
		}
	}
	return out
}
