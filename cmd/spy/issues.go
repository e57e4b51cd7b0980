package main

import (
	"github.com/spf13/cobra"
)

var issuesCmd = &cobra.Command{
	Use:     "issues",
	Aliases: []string{"issue"},
	Short:   "List and manage tracked issues",
}

func init() {
	rootCmd.AddCommand(issuesCmd)
}
