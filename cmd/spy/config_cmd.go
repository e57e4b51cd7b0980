package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spyglass-cli/spyglass/internal/types"
	"github.com/spyglass-cli/spyglass/internal/ui"
)

// configKeys are the defaults commands read during target resolution.
var configKeys = map[string]bool{"org": true, "project": true}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage stored defaults",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a stored default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := validateConfigKey(key); err != nil {
			return err
		}
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		value, ok, err := s.GetDefault(cmd.Context(), key)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(map[string]any{"key": key, "value": value, "set": ok})
		}
		if !ok {
			fmt.Println(ui.RenderMuted("(unset)"))
			return nil
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a default",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := validateConfigKey(key); err != nil {
			return err
		}
		if value == "" {
			return types.NewValidationError("value must not be empty", "use `spy config unset "+key+"` to clear it")
		}
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		if err := s.SetDefault(cmd.Context(), key, value); err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(map[string]string{"key": key, "value": value})
		}
		fmt.Printf("%s %s = %s\n", ui.RenderGood("✓"), key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a stored default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := validateConfigKey(key); err != nil {
			return err
		}
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		if err := s.UnsetDefault(cmd.Context(), key); err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(map[string]string{"key": key})
		}
		fmt.Printf("%s unset %s\n", ui.RenderGood("✓"), key)
		return nil
	},
}

func validateConfigKey(key string) error {
	if !configKeys[key] {
		return types.NewValidationError(
			fmt.Sprintf("unknown config key %q", key), "valid keys: org, project")
	}
	return nil
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}
