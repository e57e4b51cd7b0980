package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/spyglass-cli/spyglass/internal/types"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func row(alias, project, shortID, title string) IssueRow {
	return IssueRow{
		Alias:   alias,
		Project: project,
		Issue: types.Issue{
			ShortID:  shortID,
			Level:    "error",
			Title:    title,
			Count:    "12",
			LastSeen: "2026-08-25T09:00:00Z",
		},
	}
}

func TestRenderIssueTableSingleProject(t *testing.T) {
	out := RenderIssueTable([]IssueRow{
		row("", "frontend", "FRONTEND-1", "TypeError: x is undefined"),
		row("", "frontend", "FRONTEND-2", "Connection reset"),
	}, testNow)

	require.NotContains(t, out, "ALIAS")
	require.NotContains(t, out, "PROJECT", "single-project listings omit the project column")
	require.Contains(t, out, "FRONTEND-1")
	require.Contains(t, out, "3h ago")
}

func TestRenderIssueTableMultiProject(t *testing.T) {
	out := RenderIssueTable([]IssueRow{
		row("f", "frontend", "FRONTEND-1", "TypeError"),
		row("b", "backend", "BACKEND-9", "panic: nil deref"),
	}, testNow)

	lines := strings.Split(out, "\n")
	require.Contains(t, lines[0], "ALIAS")
	require.Contains(t, lines[0], "PROJECT")
	require.Contains(t, out, "backend")
}

func TestRenderIssueTableEmpty(t *testing.T) {
	require.Contains(t, RenderIssueTable(nil, testNow), "No issues")
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("x", 80)
	got := truncate(long, 70)
	require.Equal(t, 70, len([]rune(got)))
	require.True(t, strings.HasSuffix(got, "…"))
}

func TestRelativeTime(t *testing.T) {
	require.Equal(t, "-", RelativeTime(time.Time{}, testNow))
	require.Equal(t, "just now", RelativeTime(testNow.Add(-30*time.Second), testNow))
	require.Equal(t, "5m ago", RelativeTime(testNow.Add(-5*time.Minute), testNow))
	require.Equal(t, "3h ago", RelativeTime(testNow.Add(-3*time.Hour), testNow))
	require.Equal(t, "4d ago", RelativeTime(testNow.Add(-4*24*time.Hour), testNow))
	require.Equal(t, "2026-02-25", RelativeTime(testNow.Add(-181*24*time.Hour), testNow))
}
