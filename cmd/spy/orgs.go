package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/spyglass-cli/spyglass/internal/region"
	"github.com/spyglass-cli/spyglass/internal/ui"
)

var orgsCmd = &cobra.Command{
	Use:     "orgs",
	Aliases: []string{"organizations"},
	Short:   "List accessible organizations by region",
	RunE:    runOrgs,
}

func init() {
	rootCmd.AddCommand(orgsCmd)
}

func runOrgs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, s, err := newClient(ctx)
	if err != nil {
		return err
	}

	byRegion, err := region.New(s, client).Refresh(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(byRegion)
	}

	regions := make([]string, 0, len(byRegion))
	for name := range byRegion {
		regions = append(regions, name)
	}
	sort.Strings(regions)

	total := 0
	for _, name := range regions {
		orgs := byRegion[name]
		fmt.Println(ui.RenderHeader(name))
		for _, org := range orgs {
			label := org.Slug
			if org.Name != "" && org.Name != org.Slug {
				label += " " + ui.RenderMuted("("+org.Name+")")
			}
			fmt.Println("  " + label)
		}
		total += len(orgs)
	}
	if total == 0 {
		fmt.Println("No organizations accessible.")
	}
	return nil
}
