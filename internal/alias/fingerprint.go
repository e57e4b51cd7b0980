package alias

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint derives a stable string from the set of detected identifiers
// that produced a multi-target resolution. Order-insensitive: the same set of
// identifiers always fingerprints the same, so alias tables survive re-runs
// but are invalidated the moment detection finds a different set.
func Fingerprint(identifiers []string) string {
	if len(identifiers) == 0 {
		return ""
	}
	sorted := make([]string, len(identifiers))
	copy(sorted, identifiers)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:8])
}
