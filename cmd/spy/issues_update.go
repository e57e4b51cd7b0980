package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spyglass-cli/spyglass/internal/api"
	"github.com/spyglass-cli/spyglass/internal/resolve"
	"github.com/spyglass-cli/spyglass/internal/store"
	"github.com/spyglass-cli/spyglass/internal/types"
	"github.com/spyglass-cli/spyglass/internal/ui"
)

var updateStatus string

var validStatuses = map[string]bool{"resolved": true, "unresolved": true, "ignored": true}

var issuesUpdateCmd = &cobra.Command{
	Use:   "update <issue>",
	Short: "Change an issue's status",
	Long: `Change an issue's status. The issue can be a numeric id, an
org-qualified short id (FRONTEND-5J), or an issue URL.`,
	Args: cobra.ExactArgs(1),
	RunE: runIssuesUpdate,
}

func init() {
	issuesUpdateCmd.Flags().StringVar(&updateStatus, "status", "", "New status: resolved, unresolved, ignored")
	_ = issuesUpdateCmd.MarkFlagRequired("status")
	issuesCmd.AddCommand(issuesUpdateCmd)
}

func runIssuesUpdate(cmd *cobra.Command, args []string) error {
	if !validStatuses[updateStatus] {
		return types.NewValidationError(
			fmt.Sprintf("invalid status %q", updateStatus), "one of: resolved, unresolved, ignored")
	}

	ctx := cmd.Context()
	client, s, err := newClient(ctx)
	if err != nil {
		return err
	}

	org, issueID, err := resolveIssueRef(ctx, client, s, args[0])
	if err != nil {
		return err
	}

	if err := client.UpdateIssueStatus(ctx, org, issueID, updateStatus); err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(map[string]string{"id": issueID, "status": updateStatus})
	}
	fmt.Printf("%s Issue %s marked %s\n", ui.RenderGood("✓"), issueID, updateStatus)
	return nil
}

// resolveIssueRef turns an issue argument into (org, numeric id).
func resolveIssueRef(ctx context.Context, client *api.Client, s *store.Store, arg string) (string, string, error) {
	parsed, err := resolve.ParseTargetArg(arg)
	if err != nil {
		return "", "", err
	}

	switch parsed.Mode {
	case types.ModeURL:
		if parsed.IssueID == "" {
			return "", "", types.NewValidationError(
				"URL does not identify an issue", "pass an issue URL or a numeric issue id")
		}
		org := parsed.Org
		if org == "" {
			org, err = currentOrg(ctx, client, s)
			if err != nil {
				return "", "", err
			}
		}
		return org, parsed.IssueID, nil

	case types.ModeIssueID:
		org, err := currentOrg(ctx, client, s)
		if err != nil {
			return "", "", err
		}
		return org, parsed.IssueID, nil

	case types.ModeProjectSearch:
		// A bare argument that is not all digits is a short id.
		org, err := currentOrg(ctx, client, s)
		if err != nil {
			return "", "", err
		}
		issue, err := client.GetIssueByShortID(ctx, org, arg)
		if err != nil {
			return "", "", err
		}
		return org, issue.ID, nil
	}
	return "", "", types.NewValidationError(
		fmt.Sprintf("%q does not identify an issue", arg),
		"pass a numeric id, a short id, or an issue URL")
}

// currentOrg resolves the org for issue-scoped operations from flags,
// environment, and detection.
func currentOrg(ctx context.Context, client *api.Client, s *store.Store) (string, error) {
	if orgFlag != "" {
		return orgFlag, nil
	}
	r := newResolver(client, s)
	res, err := r.Resolve(ctx, types.ParsedTarget{Mode: types.ModeAutoDetect}, resolve.Flags{})
	if err != nil {
		return "", &types.ContextError{
			Msg: "could not determine the organization for this issue",
		}
	}
	return res.Targets[0].OrgSlug, nil
}
