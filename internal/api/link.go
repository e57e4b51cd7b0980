package api

import (
	"strings"
)

// parseNextCursor extracts the next-page cursor from an RFC-5988 Link header.
//
// The service emits entries like:
//
//	<https://host/api/0/...>; rel="next"; results="true"; cursor="150:1:0"
//
// Only the rel="next" section matters. The non-standard results parameter
// says whether following the cursor yields anything: absent or "false" means
// exhausted.
func parseNextCursor(link string) (string, bool) {
	if link == "" {
		return "", false
	}
	for _, section := range strings.Split(link, ",") {
		params := strings.Split(section, ";")
		var rel, results, cursor string
		for _, p := range params[1:] {
			key, value, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok {
				continue
			}
			value = strings.Trim(value, `"`)
			switch key {
			case "rel":
				rel = value
			case "results":
				results = value
			case "cursor":
				cursor = value
			}
		}
		if rel != "next" {
			continue
		}
		if results != "true" || cursor == "" {
			return "", false
		}
		return cursor, true
	}
	return "", false
}
