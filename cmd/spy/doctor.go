package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spyglass-cli/spyglass/internal/ui"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local database schema",
	Long: `Check the local database for missing tables or columns left behind by
older versions, and optionally repair them in place.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Repair detected schema problems")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}

	issues, err := s.SchemaIssues(ctx)
	if err != nil {
		return err
	}

	if len(issues) == 0 {
		if jsonOutput {
			return outputJSON(map[string]any{"ok": true})
		}
		fmt.Printf("%s Database schema is healthy\n", ui.RenderGood("✓"))
		return nil
	}

	if !doctorFix {
		if jsonOutput {
			names := make([]string, len(issues))
			for i, is := range issues {
				names[i] = is.String()
			}
			return outputJSON(map[string]any{"ok": false, "issues": names})
		}
		for _, is := range issues {
			fmt.Printf("%s %s\n", ui.RenderBad("✗"), is)
		}
		fmt.Println(ui.RenderMuted("Run `spy doctor --fix` to repair."))
		return nil
	}

	report, err := s.RepairSchema(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(map[string]any{
			"ok":     len(report.Failed) == 0,
			"fixed":  report.Fixed,
			"failed": report.Failed,
		})
	}
	for _, fixed := range report.Fixed {
		fmt.Printf("%s fixed: %s\n", ui.RenderGood("✓"), fixed)
	}
	for _, failed := range report.Failed {
		fmt.Printf("%s could not fix: %s\n", ui.RenderBad("✗"), failed)
	}
	return nil
}
