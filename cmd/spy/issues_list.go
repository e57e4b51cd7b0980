package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/spyglass-cli/spyglass/internal/pipeline"
	"github.com/spyglass-cli/spyglass/internal/resolve"
	"github.com/spyglass-cli/spyglass/internal/telemetry"
	"github.com/spyglass-cli/spyglass/internal/timeparsing"
	"github.com/spyglass-cli/spyglass/internal/ui"
)

var (
	listQuery  string
	listLimit  int
	listSort   string
	listPeriod string
	listCursor string
)

var issuesListCmd = &cobra.Command{
	Use:   "list [target]",
	Short: "List issues across one or more projects",
	Long: `List issues for a target. The target can be org/project, org/ for a
whole organization, /project to search across orgs, a service URL, or
nothing at all to auto-detect from the working tree.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIssuesList,
}

func init() {
	issuesListCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Search query (e.g. \"is:unresolved browser:firefox\")")
	issuesListCmd.Flags().IntVarP(&listLimit, "limit", "n", 30, "Maximum issues to show")
	issuesListCmd.Flags().StringVarP(&listSort, "sort", "s", "date", "Sort order: date, new, freq, user")
	issuesListCmd.Flags().StringVarP(&listPeriod, "period", "t", "", "Time period (e.g. 14d, \"2 weeks ago\"; default "+timeparsing.DefaultPeriod+")")
	issuesListCmd.Flags().StringVarP(&listCursor, "cursor", "c", "", "Pagination cursor; \"last\" resumes the previous listing")
	issuesCmd.AddCommand(issuesListCmd)
}

func runIssuesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, s, err := newClient(ctx)
	if err != nil {
		return err
	}

	target := ""
	if len(args) == 1 {
		target = args[0]
	}

	ctx, span := telemetry.Tracer("").Start(ctx, "issues.list")
	defer span.End()
	span.SetAttributes(
		attribute.String("list.sort", listSort),
		attribute.Int("list.limit", listLimit),
	)

	p := &pipeline.Pipeline{
		Store:    s,
		API:      client,
		Resolver: newResolver(client, s),
		BaseURL:  client.BaseURL(),
	}
	if !jsonOutput {
		p.Progress = func(fetched int) {
			fmt.Fprintf(os.Stderr, "\rFetched %d issues...", fetched)
		}
	}

	res, err := p.Run(ctx, pipeline.Request{
		TargetArg: target,
		Flags:     resolve.Flags{Org: orgFlag, Project: projectFlag},
		Query:     listQuery,
		Sort:      listSort,
		Period:    listPeriod,
		Limit:     listLimit,
		Cursor:    listCursor,
	})
	if !jsonOutput && p.Progress != nil {
		fmt.Fprint(os.Stderr, "\r\033[K")
	}
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("list.rows", len(res.Rows)))

	for _, w := range res.Warnings {
		warn("%s", w)
	}

	if jsonOutput {
		data, jerr := res.JSON()
		if jerr != nil {
			return jerr
		}
		fmt.Println(string(data))
		return nil
	}

	rows := make([]ui.IssueRow, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = ui.IssueRow{Alias: r.Alias, Project: r.Project, Issue: r.Issue}
	}
	fmt.Println(ui.RenderIssueTable(rows, time.Now()))

	for _, te := range res.Errors {
		warn("could not fetch %s: %s", te.Target, te.Message)
	}
	if res.Footer != "" {
		fmt.Fprintln(os.Stderr, ui.RenderMuted(res.Footer))
	}
	if res.Hint != "" {
		fmt.Fprintln(os.Stderr, ui.RenderMuted(res.Hint))
	}
	return nil
}
