package alias

import "strings"

// ExtractSegmentToken picks the most informative path segment from a
// transaction name, for use as the seed of a transaction alias. Route
// placeholders ({org}, :id, <project_id>) and purely numeric segments carry
// no meaning across transactions and are skipped; the scan runs from the end
// of the path so the most specific segment wins.
//
// Returns "" when no usable segment exists.
func ExtractSegmentToken(transaction string) string {
	// Transaction names often carry a method prefix ("GET /orgs/{org}/...").
	if i := strings.LastIndexByte(transaction, ' '); i >= 0 {
		transaction = transaction[i+1:]
	}
	segments := strings.Split(transaction, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg == "" || isPlaceholder(seg) || isNumeric(seg) {
			continue
		}
		return strings.ToLower(seg)
	}
	return ""
}

// AssignTransactions computes pairwise-distinct lowercase aliases for a set
// of transaction names, keyed by full transaction name. Transactions whose
// segment tokens collide fall back to the full (lowercased) name to stay
// distinct.
func AssignTransactions(transactions []string) map[string]string {
	tokens := make([]string, len(transactions))
	counts := make(map[string]int, len(transactions))
	for i, txn := range transactions {
		tok := ExtractSegmentToken(txn)
		if tok == "" {
			tok = strings.ToLower(txn)
		}
		tokens[i] = tok
		counts[tok]++
	}

	out := make(map[string]string, len(transactions))
	for i, txn := range transactions {
		tok := tokens[i]
		if counts[tok] > 1 {
			out[txn] = strings.ToLower(txn)
			continue
		}
		out[txn] = tok
	}
	prefixes := shortestUniquePrefixes(valuesOf(out))
	for txn, a := range out {
		out[txn] = prefixes[a]
	}
	return out
}

func valuesOf(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func isPlaceholder(seg string) bool {
	if len(seg) < 2 {
		return false
	}
	switch {
	case seg[0] == '{' && seg[len(seg)-1] == '}':
		return true
	case seg[0] == ':':
		return true
	case seg[0] == '<' && seg[len(seg)-1] == '>':
		return true
	}
	return false
}

func isNumeric(seg string) bool {
	if seg == "" {
		return false
	}
	for i := 0; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return false
		}
	}
	return true
}
