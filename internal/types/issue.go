// Package types defines the shared data model for spyglass: issues as
// returned by the tracker API, resolved list targets, and the error kinds
// the CLI maps to exit codes.
package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// IssueProject is the project stanza embedded in an issue payload.
type IssueProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Issue is one error-tracker issue as returned by the service. Fields we
// never touch are preserved verbatim in Raw so --json output can round-trip
// the server payload.
type Issue struct {
	ID        string       `json:"id"`
	ShortID   string       `json:"shortId"`
	Title     string       `json:"title"`
	Culprit   string       `json:"culprit,omitempty"`
	Level     string       `json:"level"`
	Status    string       `json:"status,omitempty"`
	Count     string       `json:"count"`
	UserCount int          `json:"userCount"`
	FirstSeen string       `json:"firstSeen,omitempty"`
	LastSeen  string       `json:"lastSeen,omitempty"`
	Project   IssueProject `json:"project"`
	Permalink string       `json:"permalink,omitempty"`

	// Raw is the untouched server payload for this issue. Populated on
	// unmarshal; nil for issues constructed in tests.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the raw payload.
func (i *Issue) UnmarshalJSON(data []byte) error {
	type plain Issue
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*i = Issue(p)
	i.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON emits the raw server payload when present so machine output
// matches what the service returned.
func (i Issue) MarshalJSON() ([]byte, error) {
	if len(i.Raw) > 0 {
		return i.Raw, nil
	}
	type plain Issue
	return json.Marshal(plain(i))
}

// CountValue returns the numeric event count, zero when absent or malformed.
func (i Issue) CountValue() int64 {
	n, err := strconv.ParseInt(i.Count, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// SeenTime parses an RFC 3339 seen timestamp. Missing or malformed
// timestamps sort as the epoch.
func SeenTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IssuesPage is one page of issues plus the cursor for the next page.
// An empty NextCursor means the listing is exhausted.
type IssuesPage struct {
	Issues     []Issue
	NextCursor string
}
