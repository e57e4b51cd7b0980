package pipeline

import (
	"encoding/json"

	"github.com/spyglass-cli/spyglass/internal/types"
)

type jsonError struct {
	Target  string `json:"target"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

type jsonResult struct {
	Data       []types.Issue `json:"data"`
	HasMore    bool          `json:"hasMore"`
	NextCursor string        `json:"nextCursor,omitempty"`
	Errors     []jsonError   `json:"errors,omitempty"`
}

// JSON renders the machine-readable result. Issues round-trip the raw server
// payloads, so fields spy never interprets survive.
func (r *Result) JSON() ([]byte, error) {
	out := jsonResult{
		Data:    make([]types.Issue, 0, len(r.Rows)),
		HasMore: r.HasMore,
	}
	if r.HasMore {
		out.NextCursor = r.Cursor
	}
	for _, row := range r.Rows {
		out.Data = append(out.Data, row.Issue)
	}
	for _, te := range r.Errors {
		out.Errors = append(out.Errors, jsonError(te))
	}
	return json.MarshalIndent(out, "", "  ")
}
