// Package timeparsing normalizes --period values into the relative-period
// syntax the tracker API accepts.
//
// Parsing is layered:
//  1. Compact period (90d, 24h, 2w, 6m)
//  2. Natural language ("2 weeks ago", "yesterday") via olebedev/when
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// compactPeriodRe matches the API's native relative-period syntax.
var compactPeriodRe = regexp.MustCompile(`^(\d+)([hdwm])$`)

// DefaultPeriod is the listing window when the user passes nothing.
const DefaultPeriod = "90d"

var nlParser = func() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return p
}()

// IsCompactPeriod reports whether s is already in API period syntax.
func IsCompactPeriod(s string) bool {
	return compactPeriodRe.MatchString(s)
}

// ParsePeriod normalizes a user-supplied period into API syntax. Compact
// values pass through unchanged; natural-language phrases are resolved
// against now and converted to a whole-hour (or whole-day) period.
func ParsePeriod(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPeriod, nil
	}
	if IsCompactPeriod(s) {
		return normalizeCompact(s), nil
	}

	result, err := nlParser.Parse(s, now)
	if err != nil || result == nil {
		return "", fmt.Errorf("invalid period %q (use forms like 90d, 24h, 2w, or \"2 weeks ago\")", s)
	}
	delta := now.Sub(result.Time)
	if delta <= 0 {
		return "", fmt.Errorf("period %q resolves to the future", s)
	}
	hours := int(delta.Round(time.Hour) / time.Hour)
	if hours < 1 {
		hours = 1
	}
	if hours%24 == 0 {
		return fmt.Sprintf("%dd", hours/24), nil
	}
	return fmt.Sprintf("%dh", hours), nil
}

// normalizeCompact strips redundant leading zeros so context keys stay
// stable across equivalent spellings.
func normalizeCompact(s string) string {
	m := compactPeriodRe.FindStringSubmatch(s)
	n, _ := strconv.Atoi(m[1])
	return fmt.Sprintf("%d%s", n, m[2])
}
