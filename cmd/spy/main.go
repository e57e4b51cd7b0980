// Command spy is a terminal client for the Spyglass error tracker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spyglass-cli/spyglass/internal/store"
	"github.com/spyglass-cli/spyglass/internal/telemetry"
	"github.com/spyglass-cli/spyglass/internal/types"
)

var (
	jsonOutput  bool
	orgFlag     string
	projectFlag string

	// Signal-aware context for graceful cancellation.
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "spy",
	Short: "Spyglass from the command line",
	Long: `spy lists and manages error-tracker issues from the terminal.

Run it inside a project to auto-detect which Spyglass projects the code
reports to, or name targets explicitly:

  spy issues list                  auto-detect from the working tree
  spy issues list acme/frontend    one explicit project
  spy issues list acme/            every project in an org
  spy issues list /frontend        find "frontend" across your orgs`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return telemetry.Init(cmd.Context(), "spy", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&orgFlag, "org", "", "Organization slug (requires --project)")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "Project slug (requires --org)")
}

func main() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer rootCancel()

	err := rootCmd.ExecuteContext(rootCtx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	telemetry.Shutdown(shutdownCtx)
	cancel()
	if cerr := store.CloseDefault(); cerr != nil && err == nil {
		err = cerr
	}

	if err != nil {
		printError(err)
		os.Exit(types.ExitCode(err))
	}
}

// printError writes the error plus any actionable hint to stderr.
func printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if hint := errorHint(err); hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
}
