package cursor

import (
	"strings"
)

// Compound cursors pack one per-target cursor per segment, pipe-separated,
// aligned to the sorted target key order. The service's cursor values never
// contain a pipe, which is why pipe is the separator. An empty segment means
// that target is exhausted.

// EncodeCompound joins per-target cursors in sorted target order. cursors is
// keyed by "org/project"; absent keys encode as exhausted.
func EncodeCompound(sortedKeys []string, cursors map[string]string) string {
	segments := make([]string, len(sortedKeys))
	for i, key := range sortedKeys {
		segments[i] = cursors[key]
	}
	return strings.Join(segments, "|")
}

// DecodeCompound splits a stored compound cursor into per-target cursors
// aligned to sortedKeys. Legacy values (JSON arrays from old builds, which
// begin with '[') are discarded: the caller sees no stored cursor.
//
// A segment-count mismatch also decodes to nothing: the target set changed
// since the cursor was stored, so no segment can be trusted.
func DecodeCompound(stored string, sortedKeys []string) map[string]string {
	if stored == "" || strings.HasPrefix(stored, "[") {
		return nil
	}
	segments := strings.Split(stored, "|")
	if len(segments) != len(sortedKeys) {
		return nil
	}
	out := make(map[string]string, len(sortedKeys))
	for i, key := range sortedKeys {
		if segments[i] != "" {
			out[key] = segments[i]
		}
	}
	return out
}

// HasNext reports whether any segment of an encoded compound cursor is
// non-empty, i.e. whether a next page exists anywhere.
func HasNext(encoded string) bool {
	for _, seg := range strings.Split(encoded, "|") {
		if seg != "" {
			return true
		}
	}
	return false
}
