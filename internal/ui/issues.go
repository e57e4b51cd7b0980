package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/spyglass-cli/spyglass/internal/types"
)

// maxTitleWidth bounds the title column so rows stay on one line in common
// terminal widths.
const maxTitleWidth = 70

// IssueRow is one rendered listing line.
type IssueRow struct {
	Alias   string
	Project string
	Issue   types.Issue
}

// RenderIssueTable renders listing rows as an aligned table. The alias column
// appears only when at least one row has an alias; the project column only
// when rows span more than one project.
func RenderIssueTable(rows []IssueRow, now time.Time) string {
	if len(rows) == 0 {
		return RenderMuted("No issues found.")
	}

	withAlias := false
	projects := map[string]bool{}
	for _, r := range rows {
		if r.Alias != "" {
			withAlias = true
		}
		projects[r.Project] = true
	}
	withProject := len(projects) > 1

	plain := lipgloss.NewStyle()
	type column struct {
		name  string
		style lipgloss.Style
		cell  func(r IssueRow) string
	}
	var cols []column
	if withAlias {
		cols = append(cols, column{"ALIAS", AliasStyle, func(r IssueRow) string { return r.Alias }})
	}
	cols = append(cols,
		column{"SHORT-ID", plain, func(r IssueRow) string { return r.Issue.ShortID }},
		column{"LEVEL", plain, func(r IssueRow) string { return r.Issue.Level }},
	)
	if withProject {
		cols = append(cols, column{"PROJECT", MutedStyle, func(r IssueRow) string { return r.Project }})
	}
	cols = append(cols,
		column{"TITLE", plain, func(r IssueRow) string { return truncate(r.Issue.Title, maxTitleWidth) }},
		column{"EVENTS", plain, func(r IssueRow) string { return r.Issue.Count }},
		column{"USERS", plain, func(r IssueRow) string { return fmt.Sprint(r.Issue.UserCount) }},
		column{"LAST SEEN", MutedStyle, func(r IssueRow) string {
			return RelativeTime(types.SeenTime(r.Issue.LastSeen), now)
		}},
	)

	widths := make([]int, len(cols))
	cells := make([][]string, len(rows))
	for i, c := range cols {
		widths[i] = utf8.RuneCountInString(c.name)
	}
	for ri, r := range rows {
		cells[ri] = make([]string, len(cols))
		for ci, c := range cols {
			cells[ri][ci] = c.cell(r)
			if w := utf8.RuneCountInString(cells[ri][ci]); w > widths[ci] {
				widths[ci] = w
			}
		}
	}

	var b strings.Builder
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = pad(c.name, widths[i])
	}
	b.WriteString(HeaderStyle.Render(strings.TrimRight(strings.Join(headers, "  "), " ")))
	b.WriteString("\n")

	for ri, r := range rows {
		line := make([]string, len(cols))
		for ci, c := range cols {
			cell := pad(cells[ri][ci], widths[ci])
			if c.name == "LEVEL" {
				line[ci] = RenderLevel(r.Issue.Level) + cell[utf8.RuneCountInString(r.Issue.Level):]
				continue
			}
			line[ci] = c.style.Render(cell)
		}
		b.WriteString(strings.TrimRight(strings.Join(line, "  "), " "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func pad(s string, width int) string {
	if n := width - utf8.RuneCountInString(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}

// RelativeTime renders a timestamp as a compact age ("3h ago"). Zero times
// render as a dash.
func RelativeTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
