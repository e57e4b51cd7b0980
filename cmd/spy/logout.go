package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spyglass-cli/spyglass/internal/ui"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		// ClearAuth also drops cached org->region mappings, which are
		// account-specific.
		if err := s.ClearAuth(ctx); err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(map[string]bool{"authenticated": false})
		}
		fmt.Printf("%s Logged out\n", ui.RenderGood("✓"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
